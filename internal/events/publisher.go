package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"ai-integration/internal/models"
)

// Subjects published by the service. All of them live under "chats.>".
const (
	subjectPrefix = "chats"
	streamSubject = subjectPrefix + ".>"
)

// LiveSubject is the subject announcing a live session on channel.
func LiveSubject(channel models.ChannelType) string {
	return fmt.Sprintf("%s.live.%s", subjectPrefix, channel)
}

// ReloadSubject is the subject telling clients to reload chat id.
func ReloadSubject(id uuid.UUID) string {
	return fmt.Sprintf("%s.reload.%s", subjectPrefix, id)
}

// LiveSessionEvent is published after a session went live.
type LiveSessionEvent struct {
	ChatID      uuid.UUID          `json:"chat_id"`
	ChannelType models.ChannelType `json:"channel_type"`
	URL         string             `json:"url"`
	Timestamp   time.Time          `json:"timestamp"`
}

// ReloadEvent is published once a cleared session should be reloaded.
type ReloadEvent struct {
	ChatID    uuid.UUID `json:"chat_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher announces chat lifecycle events.
type Publisher interface {
	PublishLive(ctx context.Context, event LiveSessionEvent) error
	PublishReload(ctx context.Context, event ReloadEvent) error
}

// JetStream is the subset of nats.JetStreamContext the publisher uses.
type JetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// NATSPublisher publishes events to a JetStream stream, creating the stream
// on first use.
type NATSPublisher struct {
	js         JetStream
	streamName string
	logger     *zap.Logger

	streamOnce sync.Once
	streamErr  error
}

// NewNATSPublisher creates a publisher on streamName.
func NewNATSPublisher(js JetStream, streamName string, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{js: js, streamName: streamName, logger: logger}
}

// PublishLive implements Publisher.
func (p *NATSPublisher) PublishLive(ctx context.Context, event LiveSessionEvent) error {
	return p.publish(ctx, LiveSubject(event.ChannelType), event)
}

// PublishReload implements Publisher.
func (p *NATSPublisher) PublishReload(ctx context.Context, event ReloadEvent) error {
	return p.publish(ctx, ReloadSubject(event.ChatID), event)
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, event interface{}) error {
	if err := p.ensureStream(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}

	ack, err := p.js.Publish(subject, payload, nats.Context(ctx))
	if err != nil {
		p.logger.Error("Failed to publish event", zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	p.logger.Debug("Published event",
		zap.String("subject", subject),
		zap.String("stream", ack.Stream),
		zap.Uint64("sequence", ack.Sequence))
	return nil
}

func (p *NATSPublisher) ensureStream() error {
	p.streamOnce.Do(func() {
		if _, err := p.js.StreamInfo(p.streamName); err == nil {
			return
		}
		p.logger.Info("Stream not found, creating it", zap.String("stream", p.streamName), zap.String("subjects", streamSubject))
		_, err := p.js.AddStream(&nats.StreamConfig{
			Name:     p.streamName,
			Subjects: []string{streamSubject},
			Storage:  nats.FileStorage,
		})
		if err != nil {
			p.streamErr = fmt.Errorf("failed to create NATS stream %s: %w", p.streamName, err)
		}
	})
	return p.streamErr
}

// Connect dials url and returns its JetStream context. The caller closes
// the connection.
func Connect(url string) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(url,
		nats.Timeout(10*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return nc, js, nil
}

// Nop discards every event. Used when NATS is disabled.
type Nop struct {
	Logger *zap.Logger
}

// PublishLive implements Publisher.
func (n Nop) PublishLive(_ context.Context, event LiveSessionEvent) error {
	n.log(LiveSubject(event.ChannelType))
	return nil
}

// PublishReload implements Publisher.
func (n Nop) PublishReload(_ context.Context, event ReloadEvent) error {
	n.log(ReloadSubject(event.ChatID))
	return nil
}

func (n Nop) log(subject string) {
	if n.Logger != nil {
		n.Logger.Debug("Event publishing disabled, dropping event", zap.String("subject", subject))
	}
}
