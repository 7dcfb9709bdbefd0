package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/Rooyande/eclis-ninja/pkg/testutil"
)

type recordingHandler struct {
	updates []Update
}

func (h *recordingHandler) HandleUpdate(ctx context.Context, update Update) {
	h.updates = append(h.updates, update)
}

type WebhookSuite struct {
	suite.Suite
	handler *recordingHandler
	router  http.Handler
	healthy bool
}

func TestWebhookSuite(t *testing.T) {
	suite.Run(t, new(WebhookSuite))
}

func (s *WebhookSuite) SetupTest() {
	s.handler = &recordingHandler{}
	s.healthy = true
	health := func() error {
		if !s.healthy {
			return errors.New("store down")
		}
		return nil
	}
	wh := NewWebhook(s.handler, "hook-secret", health, nil, slog.Default())
	s.router = wh.Router()
}

func (s *WebhookSuite) TestDeliversUpdate() {
	update := Update{UpdateID: 9, Message: &Message{Chat: Chat{ID: -5}, Text: "/start"}}
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/telegram/webhook", update)
	req.Header.Set(secretTokenHeader, "hook-secret")

	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	s.Require().Len(s.handler.updates, 1)
	s.Equal(int64(9), s.handler.updates[0].UpdateID)
}

func (s *WebhookSuite) TestRejectsBadSecret() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/telegram/webhook", Update{UpdateID: 1})
	req.Header.Set(secretTokenHeader, "wrong")

	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	s.Empty(s.handler.updates)
}

func (s *WebhookSuite) TestRejectsMissingSecret() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/telegram/webhook", Update{UpdateID: 1})

	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *WebhookSuite) TestRejectsMalformedBody() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/telegram/webhook", "{not json")
	req.Header.Set(secretTokenHeader, "hook-secret")

	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	s.Empty(s.handler.updates)
}

func (s *WebhookSuite) TestHealthz() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/healthz")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "ok")

	s.healthy = false
	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	testutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)
}

func (s *WebhookSuite) TestMetricsEndpoint() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/metrics")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
}
