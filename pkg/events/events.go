package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gatehouse-io/gatehouse/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	// Signup lifecycle events
	SignupStarted  = "signup.started"
	SignupRejected = "signup.rejected"
	SignupVerified = "signup.verified"
	SignupExpired  = "signup.expired"

	// Profile extraction events
	ProfileExtractRequested = "profile.extract.requested"
	ProfileExtracted        = "profile.extracted"
	ProfileExtractFailed    = "profile.extract.failed"
)

// Event payloads
type SignupStartedEvent struct {
	PendingID string    `json:"pending_id"`
	Email     string    `json:"email"`
	Domain    string    `json:"domain"`
	StartedAt time.Time `json:"started_at"`
}

type SignupExpiredEvent struct {
	PendingID string    `json:"pending_id"`
	Email     string    `json:"email"`
	Domain    string    `json:"domain"`
	ExpiredAt time.Time `json:"expired_at"`
}

type SignupRejectedEvent struct {
	Email      string    `json:"email"`
	Domain     string    `json:"domain"`
	Code       string    `json:"code"`
	RejectedAt time.Time `json:"rejected_at"`
}

type SignupVerifiedEvent struct {
	PendingID  string    `json:"pending_id"`
	AccountID  string    `json:"account_id"`
	Email      string    `json:"email"`
	Domain     string    `json:"domain"`
	VerifiedAt time.Time `json:"verified_at"`
}

type ProfileExtractRequestedEvent struct {
	PendingID   string    `json:"pending_id"`
	AccountID   string    `json:"account_id"`
	Domain      string    `json:"domain"`
	RequestedAt time.Time `json:"requested_at"`
}

type ProfileExtractedEvent struct {
	AccountID   string    `json:"account_id"`
	Domain      string    `json:"domain"`
	Tier        string    `json:"tier"`
	Confidence  float64   `json:"confidence"`
	Cost        float64   `json:"cost"`
	ExtractedAt time.Time `json:"extracted_at"`
}

type ProfileExtractFailedEvent struct {
	AccountID string    `json:"account_id"`
	Domain    string    `json:"domain"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}
