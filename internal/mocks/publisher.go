package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"collab-service/internal/rabbitmq"
	"collab-service/internal/telemetry"
)

var (
	_ rabbitmq.Publisher  = (*PublisherMock)(nil)
	_ telemetry.Publisher = (*PublisherMock)(nil)
)

// PublisherMock stands in for the broker in handler and audit tests.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) PublishJSON(ctx context.Context, routingKey string, msg any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, msg, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
