package rabbitmq

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collab-service/internal/models"
)

type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAcknowledger) Ack(uint64, bool) error { f.acked = true; return nil }
func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked, f.requeue = true, requeue
	return nil
}
func (f *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	f.nacked, f.requeue = true, requeue
	return nil
}

type fakeEnroller struct {
	users []models.User
	err   error
}

func (f *fakeEnroller) EnrollTeamMember(_ context.Context, user models.User) error {
	f.users = append(f.users, user)
	return f.err
}

func deliver(c *MemberConsumer, body string, redelivered bool) *fakeAcknowledger {
	ack := &fakeAcknowledger{}
	c.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body), Redelivered: redelivered})
	return ack
}

func TestHandleDeliveryEnrollsAndAcks(t *testing.T) {
	enroller := &fakeEnroller{}
	c := NewMemberConsumer(enroller, zap.NewNop())

	ack := deliver(c, `{"user_id":"u9","team_id":"t1","name":"Zoe","role":"admin"}`, false)
	assert.True(t, ack.acked)
	require.Len(t, enroller.users, 1)
	assert.Equal(t, models.User{ID: "u9", TeamID: "t1", Name: "Zoe", Role: models.RoleAdmin}, enroller.users[0])
}

func TestHandleDeliveryDropsMalformed(t *testing.T) {
	enroller := &fakeEnroller{}
	c := NewMemberConsumer(enroller, zap.NewNop())

	for _, body := range []string{`not json`, `{"user_id":"u9"}`} {
		ack := deliver(c, body, false)
		assert.True(t, ack.nacked, body)
		assert.False(t, ack.requeue, body)
	}
	assert.Empty(t, enroller.users)
}

func TestHandleDeliveryRequeuesOnce(t *testing.T) {
	enroller := &fakeEnroller{err: errors.New("db down")}
	c := NewMemberConsumer(enroller, zap.NewNop())
	body := `{"user_id":"u9","team_id":"t1","name":"Zoe"}`

	first := deliver(c, body, false)
	assert.True(t, first.nacked)
	assert.True(t, first.requeue)

	second := deliver(c, body, true)
	assert.True(t, second.nacked)
	assert.False(t, second.requeue)
}

func TestNoopPublisher(t *testing.T) {
	p := NewPublisher("", "collab.events", zap.NewNop())
	assert.Equal(t, "noop", PublisherMode(p))
	assert.Equal(t, "empty amqp url", PublisherNoopReason(p))
	assert.Nil(t, ChannelOf(p))
	assert.NoError(t, p.PublishJSON(context.Background(), "chat.message_sent", map[string]string{"id": "m1"}, nil))
	assert.NoError(t, p.Close())
}
