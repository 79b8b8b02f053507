package channels

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ai-integration/internal/models"
)

// LiveSession is the answer of a live-session initiator.
type LiveSession struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
}

// Initiator starts a live session for a chat on one channel provider.
type Initiator interface {
	StartLiveSession(ctx context.Context, sessionID uuid.UUID) (LiveSession, error)
}

// Dispatcher routes a chat's channel type to the initiator responsible for
// it. WhatsApp and Facebook share the WhatsApp initiator.
type Dispatcher struct {
	whatsapp  Initiator
	instagram Initiator
	logger    *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(whatsapp, instagram Initiator, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{whatsapp: whatsapp, instagram: instagram, logger: logger}
}

// initiatorFor maps channel to its initiator. Unknown channel values read
// from storage are a configuration error.
func (d *Dispatcher) initiatorFor(channel models.ChannelType) (Initiator, error) {
	var in Initiator
	switch channel {
	case models.ChannelWhatsApp, models.ChannelFacebook:
		in = d.whatsapp
	case models.ChannelInstagram:
		in = d.instagram
	default:
		return nil, &models.ConfigurationError{Setting: "channel type", Value: string(channel)}
	}
	if in == nil {
		return nil, &models.ConfigurationError{Setting: "live session initiator for channel", Value: string(channel)}
	}
	return in, nil
}

// GoLive asks the channel's initiator to start a live session. It makes a
// single attempt. A reply without success, or without a URL, is reported as
// ProviderUnavailable.
func (d *Dispatcher) GoLive(ctx context.Context, sessionID uuid.UUID, channel models.ChannelType) (LiveSession, error) {
	in, err := d.initiatorFor(channel)
	if err != nil {
		d.logger.Error("Cannot dispatch live session", zap.String("chat", sessionID.String()), zap.Error(err))
		return LiveSession{}, err
	}

	live, err := in.StartLiveSession(ctx, sessionID)
	if err != nil {
		return LiveSession{}, models.Unavailable(string(channel), err)
	}
	if !live.Success {
		return live, models.Unavailable(string(channel), fmt.Errorf("live session was not started"))
	}
	if live.URL == "" {
		return LiveSession{}, models.Unavailable(string(channel), fmt.Errorf("live session started without a URL"))
	}

	d.logger.Info("Live session started",
		zap.String("chat", sessionID.String()),
		zap.String("channel", string(channel)),
		zap.String("url", live.URL))
	return live, nil
}
