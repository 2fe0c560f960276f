package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the subscription.
const (
	JobWidgetRefresh = "widget_refresh"
	JobHealthCheck   = "health_check"
)

// ErrUnknownJob is returned for messages with an unsupported job type.
var ErrUnknownJob = errors.New("unknown job type")

// RefreshMessage is a cache refresh request.
type RefreshMessage struct {
	JobType string `json:"job_type"`

	// Profiles overrides the configured profiles.
	Profiles []string `json:"profiles,omitempty"`

	// Days overrides the configured number of days.
	Days int `json:"days,omitempty"`
}

// Dispatcher runs the job a message names.
type Dispatcher struct {
	refreshJob *RefreshJob
	logger     zerolog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(refreshJob *RefreshJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{refreshJob: refreshJob, logger: logger}
}

// Dispatch decodes data and runs its job. A widget refresh fails when more
// profiles failed than were refreshed. A health check refreshes a single day
// of the first configured profile.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parsing message: %w", err)
	}

	switch msg.JobType {
	case JobWidgetRefresh:
		profiles := msg.Profiles
		if len(profiles) == 0 {
			profiles = d.refreshJob.Config().Profiles
		}
		result := d.refreshJob.RunProfiles(ctx, profiles, msg.Days)
		if result.Failed > result.Refreshed {
			return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.Total)
		}
		return nil

	case JobHealthCheck:
		profiles := d.refreshJob.Config().Profiles
		result := d.refreshJob.RunProfiles(ctx, profiles[:1], 1)
		if result.Failed > 0 {
			return fmt.Errorf("health check failed: %s", result.Profiles[0].Error)
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

// PubSubHandler receives refresh requests from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	// Refreshes hit the Traewelling API, keep them few.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 2
	subscriber.ReceiveSettings.MaxExtension = 15 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       NewDispatcher(cfg.RefreshJob, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.dispatcher.Dispatch(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrUnknownJob):
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	default:
		logger.Info().Dur("duration", time.Since(startTime)).Msg("job completed successfully")
		msg.Ack()
	}
}
