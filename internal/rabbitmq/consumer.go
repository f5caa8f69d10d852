package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"collab-service/internal/models"
)

// MemberCreatedKey is the routing key the account service uses for new team members.
const MemberCreatedKey = "team.member_created"

// MemberCreated is the payload of a team.member_created event.
type MemberCreated struct {
	UserID    string `json:"user_id"`
	TeamID    string `json:"team_id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Role      string `json:"role,omitempty"`
}

func (m MemberCreated) user() models.User {
	role := models.RoleMember
	if models.Role(m.Role) == models.RoleAdmin {
		role = models.RoleAdmin
	}
	return models.User{ID: m.UserID, TeamID: m.TeamID, Name: m.Name, AvatarURL: m.AvatarURL, Role: role}
}

// MemberEnroller registers a new account with the chat layer.
type MemberEnroller interface {
	EnrollTeamMember(ctx context.Context, user models.User) error
}

var errBadPayload = errors.New("malformed member event")

// MemberConsumer feeds team.member_created deliveries to a MemberEnroller.
type MemberConsumer struct {
	enroller MemberEnroller
	logger   *zap.Logger
}

func NewMemberConsumer(enroller MemberEnroller, logger *zap.Logger) *MemberConsumer {
	return &MemberConsumer{enroller: enroller, logger: logger}
}

// Start declares and binds the queue, then consumes until ctx is done or the
// channel closes.
func (c *MemberConsumer) Start(ctx context.Context, ch *amqp.Channel, exchange, queue string) error {
	if ch == nil {
		return errors.New("amqp channel is nil")
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, MemberCreatedKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.Info("member consumer started", zap.String("queue", q.Name))
	go func() {
		defer c.logger.Info("member consumer stopped")
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				c.handleDelivery(ctx, d)
			}
		}
	}()
	return nil
}

func (c *MemberConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	err := c.process(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, errBadPayload):
		c.logger.Warn("dropping member event", zap.Error(err))
		_ = d.Nack(false, false)
	default:
		// retry once through the broker, then give up
		c.logger.Error("enroll member failed", zap.Bool("redelivered", d.Redelivered), zap.Error(err))
		_ = d.Nack(false, !d.Redelivered)
	}
}

func (c *MemberConsumer) process(ctx context.Context, body []byte) error {
	var evt MemberCreated
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	if evt.UserID == "" || evt.TeamID == "" {
		return fmt.Errorf("%w: user_id and team_id are required", errBadPayload)
	}
	return c.enroller.EnrollTeamMember(ctx, evt.user())
}
