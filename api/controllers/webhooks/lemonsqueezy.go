package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/craftmart/craftmart-backend/api/responses"
	pkgerrors "github.com/craftmart/craftmart-backend/pkg/errors"
	"github.com/craftmart/craftmart-backend/pkg/lemonsqueezy"
	"github.com/craftmart/craftmart-backend/pkg/logger"
)

const maxWebhookBytes = 1 << 20

type LemonSqueezyWebhookService interface {
	HandleEvent(ctx context.Context, payload []byte, event *lemonsqueezy.Event) error
}

type ackResponse struct {
	Received bool `json:"received"`
}

// LemonSqueezyWebhook verifies X-Signature over the raw body before decoding.
// Verification and parse failures answer 4xx so the provider stops retrying;
// processing failures answer 500 so it retries.
func LemonSqueezyWebhook(svc LemonSqueezyWebhookService, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if secret == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured"))
			return
		}

		var payload []byte
		if r.Body != nil {
			raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes+1))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			if len(raw) > maxWebhookBytes {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body too large").
					WithDetails(map[string]any{"limit_bytes": maxWebhookBytes}))
				return
			}
			payload = raw
		}
		signature := r.Header.Get(lemonsqueezy.SignatureHeader)
		if len(payload) == 0 || signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing body or signature"))
			return
		}
		if !lemonsqueezy.VerifySignature(payload, secret, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid signature"))
			return
		}

		event, err := lemonsqueezy.ParseEvent(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload"))
			return
		}

		if err := svc.HandleEvent(ctx, payload, event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "webhook processing failed"))
			return
		}
		responses.WriteSuccess(w, ackResponse{Received: true})
	}
}
