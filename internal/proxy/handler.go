package proxy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/relay/internal/zoom"
	"github.com/aura-webinar/relay/pkg/response"
)

const (
	maxRequestBytes = 1 << 20
	upstreamTimeout = 15 * time.Second
)

// Route maps one local endpoint onto a Zoom management API call.
// Upstream may reference gin path params as {name}.
type Route struct {
	Method   string
	Path     string
	Upstream string
}

// WebinarRoutes are the webinar CRUD endpoints exposed under /api.
var WebinarRoutes = []Route{
	{Method: http.MethodGet, Path: "/webinars", Upstream: "/users/me/webinars"},
	{Method: http.MethodPost, Path: "/webinars", Upstream: "/users/me/webinars"},
	{Method: http.MethodGet, Path: "/webinars/:id", Upstream: "/webinars/{id}"},
	{Method: http.MethodPatch, Path: "/webinars/:id", Upstream: "/webinars/{id}"},
	{Method: http.MethodDelete, Path: "/webinars/:id", Upstream: "/webinars/{id}"},
}

// TokenProvider obtains a fresh Zoom access token.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Caller sends one request to the Zoom API.
type Caller interface {
	Do(ctx context.Context, method, path string, query url.Values, body io.Reader, accessToken string) (*zoom.Response, error)
}

// Handler forwards authenticated requests to Zoom with the relay's own credentials.
type Handler struct {
	tokens TokenProvider
	caller Caller
	logger *zap.Logger
}

// NewHandler creates a proxy handler.
func NewHandler(tokens TokenProvider, caller Caller, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{tokens: tokens, caller: caller, logger: logger}
}

// Register mounts routes on group.
func (h *Handler) Register(group *gin.RouterGroup, routes []Route) {
	for _, rt := range routes {
		group.Handle(rt.Method, rt.Path, h.Forward(rt))
	}
}

// Forward returns the gin handler for one route. The upstream status and body are relayed as-is.
func (h *Handler) Forward(rt Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), upstreamTimeout)
		defer cancel()

		var body io.Reader
		if rt.Method == http.MethodPost || rt.Method == http.MethodPatch || rt.Method == http.MethodPut {
			buf, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBytes))
			if err != nil {
				response.BadRequest(c, "unreadable body")
				return
			}
			body = bytes.NewReader(buf)
		}

		token, err := h.tokens.Token(ctx)
		if err != nil {
			h.logger.Error("proxy token exchange failed", zap.Error(err), zap.String("route", rt.Path))
			response.BadGateway(c, "zoom authentication failed")
			return
		}

		upstream := expand(rt.Upstream, c.Params)
		resp, err := h.caller.Do(ctx, rt.Method, upstream, c.Request.URL.Query(), body, token)
		if err != nil {
			h.logger.Error("proxy upstream call failed", zap.Error(err), zap.String("upstream", upstream))
			response.BadGateway(c, "zoom request failed")
			return
		}

		if len(resp.Body) == 0 {
			c.Status(resp.StatusCode)
			return
		}
		contentType := resp.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		c.Data(resp.StatusCode, contentType, resp.Body)
	}
}

func expand(template string, params gin.Params) string {
	out := template
	for _, p := range params {
		out = strings.ReplaceAll(out, "{"+p.Key+"}", url.PathEscape(p.Value))
	}
	return out
}
