package webhooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftmart/craftmart-backend/pkg/lemonsqueezy"
	"github.com/craftmart/craftmart-backend/pkg/logger"
)

const testSecret = "whsec_test"

const orderCreatedBody = `{"meta":{"event_name":"order_created","custom_data":{"order_id":"3"}},"data":{"type":"orders","id":"ls-1","attributes":{"status":"paid","total":2000}}}`

type recordingService struct {
	calls   int
	payload []byte
	event   *lemonsqueezy.Event
	err     error
}

func (s *recordingService) HandleEvent(_ context.Context, payload []byte, event *lemonsqueezy.Event) error {
	s.calls++
	s.payload = payload
	s.event = event
	return s.err
}

func signedRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/lemonsqueezy", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(lemonsqueezy.SignatureHeader, signature)
	}
	return req
}

func TestLemonSqueezyWebhookAcceptsSignedEvent(t *testing.T) {
	svc := &recordingService{}
	handler := LemonSqueezyWebhook(svc, testSecret, logger.Nop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(orderCreatedBody, lemonsqueezy.Sign([]byte(orderCreatedBody), testSecret)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"received":true}}`, rec.Body.String())
	require.Equal(t, 1, svc.calls)
	assert.Equal(t, orderCreatedBody, string(svc.payload))
	assert.Equal(t, lemonsqueezy.EventOrderCreated, svc.event.Meta.EventName)
	assert.Equal(t, "ls-1", svc.event.Data.ID)
}

func TestLemonSqueezyWebhookRejectsMissingSignature(t *testing.T) {
	svc := &recordingService{}
	handler := LemonSqueezyWebhook(svc, testSecret, logger.Nop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(orderCreatedBody, ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestLemonSqueezyWebhookRejectsEmptyBody(t *testing.T) {
	svc := &recordingService{}
	handler := LemonSqueezyWebhook(svc, testSecret, logger.Nop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest("", "abc"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestLemonSqueezyWebhookRejectsBadSignature(t *testing.T) {
	svc := &recordingService{}
	handler := LemonSqueezyWebhook(svc, testSecret, logger.Nop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(orderCreatedBody, lemonsqueezy.Sign([]byte(orderCreatedBody), "other")))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestLemonSqueezyWebhookRejectsMalformedJSON(t *testing.T) {
	svc := &recordingService{}
	handler := LemonSqueezyWebhook(svc, testSecret, logger.Nop())

	body := `{"meta":`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(body, lemonsqueezy.Sign([]byte(body), testSecret)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestLemonSqueezyWebhookProcessingFailureAnswers500(t *testing.T) {
	svc := &recordingService{err: errors.New("db down")}
	handler := LemonSqueezyWebhook(svc, testSecret, logger.Nop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(orderCreatedBody, lemonsqueezy.Sign([]byte(orderCreatedBody), testSecret)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, svc.calls)
}

func TestLemonSqueezyWebhookWithoutSecretAnswers500(t *testing.T) {
	svc := &recordingService{}
	handler := LemonSqueezyWebhook(svc, "", logger.Nop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(orderCreatedBody, "whatever"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestLemonSqueezyWebhookRejectsOversizedBody(t *testing.T) {
	svc := &recordingService{}
	handler := LemonSqueezyWebhook(svc, testSecret, logger.Nop())
	body := `{"meta":{"event_name":"order_created"},"pad":"` + strings.Repeat("x", maxWebhookBytes) + `"}`

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(body, lemonsqueezy.Sign([]byte(body), testSecret)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "too large")
	assert.Zero(t, svc.calls)
}

func TestLemonSqueezyWebhookAcceptsBodyAtLimit(t *testing.T) {
	svc := &recordingService{}
	handler := LemonSqueezyWebhook(svc, testSecret, logger.Nop())
	prefix := `{"meta":{"event_name":"order_created"},"pad":"`
	suffix := `"}`
	body := prefix + strings.Repeat("x", maxWebhookBytes-len(prefix)-len(suffix)) + suffix
	require.Len(t, body, maxWebhookBytes)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(body, lemonsqueezy.Sign([]byte(body), testSecret)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.calls)
}
