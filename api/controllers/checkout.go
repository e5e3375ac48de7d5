package controllers

import (
	"net/http"
	"strings"

	"github.com/craftmart/craftmart-backend/api/middleware"
	"github.com/craftmart/craftmart-backend/api/responses"
	"github.com/craftmart/craftmart-backend/api/validators"
	"github.com/craftmart/craftmart-backend/internal/checkout"
	pkgerrors "github.com/craftmart/craftmart-backend/pkg/errors"
	"github.com/craftmart/craftmart-backend/pkg/logger"
)

type checkoutRequest struct {
	SessionID   string `json:"sessionId" validate:"omitempty,max=64"`
	UserID      string `json:"userId" validate:"omitempty,max=128"`
	Email       string `json:"email" validate:"omitempty,email,max=255"`
	Name        string `json:"name" validate:"omitempty,max=255"`
	RedirectURL string `json:"redirectUrl" validate:"omitempty,url,max=2048"`
	PlayerName  string `json:"playerName" validate:"omitempty,mcname"`
}

// CheckoutCreate converts the session cart into a pending order and returns
// the hosted checkout URL. A body sessionId wins over the X-Cart-Session header.
func CheckoutCreate(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sessionID := strings.TrimSpace(req.SessionID)
		if sessionID == "" {
			sessionID = middleware.CartSessionFromContext(ctx)
		}
		input := checkout.Input{
			SessionID:   sessionID,
			Email:       validators.SanitizeString(req.Email, 255),
			Name:        validators.SanitizeString(req.Name, 255),
			PlayerName:  req.PlayerName,
			RedirectURL: req.RedirectURL,
		}
		if userID := strings.TrimSpace(req.UserID); userID != "" {
			input.UserID = &userID
		}

		result, err := svc.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
