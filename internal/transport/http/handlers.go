// Package transporthttp serves the gateway over HTTP.
package transporthttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bunrouter"

	"github.com/miladsoleymani/eventgate/core"
)

const (
	publishPath = "/publish"
	healthPath  = "/healthz"
	readyPath   = "/readyz"
	metricsPath = "/metrics"

	readyTimeout = 2 * time.Second
)

// Gateway is the part of core.Gateway the HTTP layer uses.
type Gateway interface {
	Publish(ctx context.Context, topic, name string) (core.Receipt, error)
	Ping(ctx context.Context) error
}

type (
	ServerOpts struct {
		Gateway  Gateway
		Gatherer prometheus.Gatherer
		APIKeys  []string
		Logg     *slog.Logger
	}

	server struct {
		gateway Gateway
		logg    *slog.Logger
	}
)

// PublishResponse is the body of a successful publish.
type PublishResponse struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Partition int       `json:"partition"`
	Offset    int64     `json:"offset"`
	AckID     string    `json:"ack_id,omitempty"`
}

// New creates the router with all endpoints registered.
func New(o ServerOpts) *bunrouter.Router {
	s := &server{gateway: o.Gateway, logg: o.Logg}
	if s.logg == nil {
		s.logg = slog.Default()
	}

	router := bunrouter.New()

	publish := router.NewGroup(publishPath, bunrouter.WithMiddleware(APIKeyAuth(o.APIKeys)))
	publish.GET("/:topic/:name", s.handlePublish)
	publish.POST("/:topic/:name", s.handlePublish)

	router.GET(healthPath, s.handleHealth)
	router.GET(readyPath, s.handleReady)

	if o.Gatherer != nil {
		router.GET(metricsPath, bunrouter.HTTPHandler(promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{})))
	}

	return router
}

func (s *server) handlePublish(w http.ResponseWriter, req bunrouter.Request) error {
	topic := pathParam(req, "topic")
	name := pathParam(req, "name")

	rcpt, err := s.gateway.Publish(req.Context(), topic, name)
	if err != nil {
		WritePublishError(w, err)
		return nil
	}

	return writeJSON(w, http.StatusOK, PublishResponse{
		ID:        rcpt.Event.ID,
		Topic:     rcpt.Event.Topic,
		Name:      rcpt.Event.Name,
		Timestamp: rcpt.Event.Timestamp,
		Partition: rcpt.Ack.Partition,
		Offset:    rcpt.Ack.Offset,
		AckID:     rcpt.Ack.ID,
	})
}

func (s *server) handleHealth(w http.ResponseWriter, _ bunrouter.Request) error {
	return writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *server) handleReady(w http.ResponseWriter, req bunrouter.Request) error {
	ctx, cancel := context.WithTimeout(req.Context(), readyTimeout)
	defer cancel()

	if err := s.gateway.Ping(ctx); err != nil {
		s.logg.Warn("readiness check failed", "error", err)
		WriteProblem(w, Problem{
			Title:  "not ready",
			Status: http.StatusServiceUnavailable,
			Detail: "broker not reachable",
		})
		return nil
	}
	return writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// pathParam returns a route parameter, unescaped when the request path
// carried escapes the router matched on.
func pathParam(req bunrouter.Request, name string) string {
	v := req.Param(name)
	if req.URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
