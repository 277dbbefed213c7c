package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aura-webinar/relay/internal/models"
	"github.com/aura-webinar/relay/internal/zoom"
)

// ErrMalformedPayload is returned when a session event lacks payload.object.id.
var ErrMalformedPayload = errors.New("enrichment: malformed payload")

const sinkTimeout = 10 * time.Second

// TokenProvider obtains a fresh Zoom access token.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Fetcher retrieves every page of a Zoom listing.
type Fetcher interface {
	FetchResource(ctx context.Context, r zoom.Resource, webinarID, accessToken string) ([]models.Record, error)
}

// Deliverer posts a payload to the automation endpoint.
type Deliverer interface {
	Deliver(ctx context.Context, payload any, targetURL string) error
}

// Publisher announces a completed run, e.g. on a Redis channel.
type Publisher interface {
	PublishRun(ctx context.Context, summary RunSummary) error
}

// Archiver stores a copy of a delivered report.
type Archiver interface {
	ArchiveReport(ctx context.Context, webinarID, runID string, report any) error
}

// RunSummary describes one delivered run to the optional sinks.
type RunSummary struct {
	RunID                 string    `json:"run_id"`
	Event                 string    `json:"event"`
	WebinarID             string    `json:"webinar_id"`
	Topic                 string    `json:"topic,omitempty"`
	Participants          int       `json:"participants"`
	Registrants           int       `json:"registrants"`
	NoShows               int       `json:"no_shows"`
	AttendanceRatePercent int       `json:"attendance_rate_percent"`
	DeliveredAt           time.Time `json:"delivered_at"`
}

// Config holds delivery targets and bounds.
type Config struct {
	EndedURL        string
	StartedURL      string
	DeliveryTimeout time.Duration
	StartTimeout    time.Duration
}

// Pipeline turns session lifecycle events into downstream deliveries.
type Pipeline struct {
	cfg       Config
	tokens    TokenProvider
	fetcher   Fetcher
	deliverer Deliverer
	publisher Publisher
	archiver  Archiver
	logger    *zap.Logger
}

// New creates a pipeline.
func New(cfg Config, tokens TokenProvider, fetcher Fetcher, deliverer Deliverer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 30 * time.Second
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 10 * time.Second
	}
	if cfg.StartedURL == "" {
		cfg.StartedURL = cfg.EndedURL
	}
	return &Pipeline{cfg: cfg, tokens: tokens, fetcher: fetcher, deliverer: deliverer, logger: logger}
}

// SetPublisher attaches the optional run publisher.
func (p *Pipeline) SetPublisher(pub Publisher) { p.publisher = pub }

// SetArchiver attaches the optional report archiver.
func (p *Pipeline) SetArchiver(a Archiver) { p.archiver = a }

// Started forwards the minimal session-start notification.
func (p *Pipeline) Started(ctx context.Context, raw json.RawMessage) error {
	obj, err := decodeSession(raw)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StartTimeout)
	defer cancel()
	if err := p.deliverer.Deliver(ctx, BuildStartedEvent(*obj), p.cfg.StartedURL); err != nil {
		return fmt.Errorf("webinar %s: %w", obj.WebinarID(), err)
	}
	p.logger.Info("webinar start forwarded", zap.String("webinar_id", obj.WebinarID()), zap.String("topic", obj.Topic))
	return nil
}

// Ended fetches participants and registrants, derives attendance and delivers the report.
// Any failure ends the run; nothing partial is ever delivered.
func (p *Pipeline) Ended(ctx context.Context, raw json.RawMessage) error {
	obj, err := decodeSession(raw)
	if err != nil {
		return err
	}
	webinarID := obj.WebinarID()
	runID := uuid.New().String()
	logger := p.logger.With(zap.String("run_id", runID), zap.String("webinar_id", webinarID))

	participants, registrants, err := p.collect(ctx, webinarID)
	if err != nil {
		return fmt.Errorf("run %s webinar %s: %w", runID, webinarID, err)
	}
	event := BuildEndedEvent(*obj, participants, registrants)
	stats := event.Payload.Statistics
	logger.Info("webinar enriched",
		zap.Int("participants", stats.TotalParticipants),
		zap.Int("registrants", stats.TotalRegistrants),
		zap.Int("no_shows", stats.NoShowsCount),
		zap.Int("attendance_rate_percent", stats.AttendanceRatePercent),
	)

	deliverCtx, cancel := context.WithTimeout(ctx, p.cfg.DeliveryTimeout)
	defer cancel()
	if err := p.deliverer.Deliver(deliverCtx, event, p.cfg.EndedURL); err != nil {
		return fmt.Errorf("run %s webinar %s: %w", runID, webinarID, err)
	}
	logger.Info("webinar report delivered")

	p.afterDelivery(ctx, logger, event, RunSummary{
		RunID:                 runID,
		Event:                 event.Event,
		WebinarID:             webinarID,
		Topic:                 obj.Topic,
		Participants:          stats.TotalParticipants,
		Registrants:           stats.TotalRegistrants,
		NoShows:               stats.NoShowsCount,
		AttendanceRatePercent: stats.AttendanceRatePercent,
		DeliveredAt:           time.Now().UTC(),
	})
	return nil
}

// collect runs both listings concurrently; the first failure cancels the other branch.
func (p *Pipeline) collect(ctx context.Context, webinarID string) (participants, registrants []models.Record, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = p.fetch(gctx, zoom.Participants, webinarID)
		return err
	})
	g.Go(func() error {
		var err error
		registrants, err = p.fetch(gctx, zoom.Registrants, webinarID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return participants, registrants, nil
}

func (p *Pipeline) fetch(ctx context.Context, r zoom.Resource, webinarID string) ([]models.Record, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Name, err)
	}
	recs, err := p.fetcher.FetchResource(ctx, r, webinarID, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Name, err)
	}
	return recs, nil
}

// afterDelivery feeds the optional sinks. Their failures never change the run's outcome.
func (p *Pipeline) afterDelivery(ctx context.Context, logger *zap.Logger, event models.EndedEvent, summary RunSummary) {
	if p.archiver != nil {
		actx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := p.archiver.ArchiveReport(actx, summary.WebinarID, summary.RunID, event); err != nil {
			logger.Warn("report archive failed", zap.Error(err))
		}
		cancel()
	}
	if p.publisher != nil {
		pctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := p.publisher.PublishRun(pctx, summary); err != nil {
			logger.Warn("run publish failed", zap.Error(err))
		}
		cancel()
	}
}

func decodeSession(raw json.RawMessage) (*models.WebinarObject, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}
	var p models.SessionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.Object == nil {
		return nil, fmt.Errorf("%w: missing payload.object", ErrMalformedPayload)
	}
	if p.Object.WebinarID() == "" {
		return nil, fmt.Errorf("%w: missing payload.object.id", ErrMalformedPayload)
	}
	return p.Object, nil
}
