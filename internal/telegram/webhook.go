package telegram

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Rooyande/eclis-ninja/internal/platform/metrics"
	"github.com/Rooyande/eclis-ninja/internal/platform/middleware"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Webhook is the server-mode HTTP surface: the Bot API callback plus
// the operational endpoints.
type Webhook struct {
	handler UpdateHandler
	secret  string
	health  func() error
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewWebhook builds the webhook surface. health may be nil; m may be
// nil to disable counters.
func NewWebhook(handler UpdateHandler, secret string, health func() error,
	m *metrics.Metrics, logger *slog.Logger) *Webhook {
	return &Webhook{
		handler: handler,
		secret:  secret,
		health:  health,
		metrics: m,
		logger:  logger,
	}
}

// Router assembles the chi router with the middleware chain.
func (wh *Webhook) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(wh.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(wh.logger))

	r.Post("/telegram/webhook", wh.handleUpdate)
	r.Get("/healthz", wh.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// OpsRouter serves only /healthz and /metrics, for local mode where
// updates arrive over long polling instead of the webhook.
func (wh *Webhook) OpsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(wh.logger))
	r.Get("/healthz", wh.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (wh *Webhook) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(secretTokenHeader) != wh.secret {
		if wh.metrics != nil {
			wh.metrics.WebhookRejected.Inc()
		}
		wh.logger.WarnContext(r.Context(), "webhook secret mismatch")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		wh.logger.WarnContext(r.Context(), "webhook decode failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	wh.handler.HandleUpdate(r.Context(), update)
	w.WriteHeader(http.StatusOK)
}

func (wh *Webhook) handleHealth(w http.ResponseWriter, r *http.Request) {
	if wh.health != nil {
		if err := wh.health(); err != nil {
			wh.logger.WarnContext(r.Context(), "health check failed", "error", err)
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
