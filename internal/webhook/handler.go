package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/relay/internal/models"
	"github.com/aura-webinar/relay/internal/worker"
	"github.com/aura-webinar/relay/pkg/response"
)

// EventURLValidation is Zoom's endpoint-ownership challenge.
const EventURLValidation = "endpoint.url_validation"

const maxBodyBytes = 1 << 20

// Event is the inbound Zoom webhook envelope.
type Event struct {
	Event   string          `json:"event"`
	EventTS int64           `json:"event_ts,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type validationPayload struct {
	PlainToken string `json:"plainToken"`
}

// Processor performs the background work behind session lifecycle events.
// Both methods receive the raw payload and own its validation.
type Processor interface {
	Started(ctx context.Context, payload json.RawMessage) error
	Ended(ctx context.Context, payload json.RawMessage) error
}

// Handler serves POST /webhook.
type Handler struct {
	verifier  *Verifier
	processor Processor
	tasks     *worker.Tasks
	logger    *zap.Logger
}

// NewHandler creates the webhook handler.
func NewHandler(verifier *Verifier, processor Processor, tasks *worker.Tasks, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{verifier: verifier, processor: processor, tasks: tasks, logger: logger}
}

// Handle verifies the request, then routes on the event type. Session events are acknowledged
// before any upstream work starts; Zoom treats slow responses as failed deliveries.
func (h *Handler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	if !h.verifier.Verify(c.Request.Header, body) {
		h.logger.Warn("webhook rejected", zap.Error(ErrSignatureMismatch), zap.String("client_ip", c.ClientIP()))
		response.Unauthorized(c, "invalid signature")
		return
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		response.BadRequest(c, "invalid json")
		return
	}

	switch ev.Event {
	case EventURLValidation:
		h.challenge(c, ev)
	case models.EventWebinarStarted:
		h.acknowledge(c, ev, h.processor.Started)
	case models.EventWebinarEnded:
		h.acknowledge(c, ev, h.processor.Ended)
	default:
		h.logger.Debug("webhook event ignored", zap.String("event", ev.Event))
		c.Status(http.StatusOK)
	}
}

func (h *Handler) challenge(c *gin.Context, ev Event) {
	var p validationPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil || p.PlainToken == "" {
		response.BadRequest(c, "plainToken required")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plainToken":     p.PlainToken,
		"encryptedToken": h.verifier.ChallengeResponse(p.PlainToken),
	})
}

func (h *Handler) acknowledge(c *gin.Context, ev Event, run func(context.Context, json.RawMessage) error) {
	response.Ack(c)
	c.Writer.Flush()

	payload := ev.Payload
	h.tasks.Go(ev.Event, func(ctx context.Context) error {
		return run(ctx, payload)
	}, zap.String("event", ev.Event))
}
