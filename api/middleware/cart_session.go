package middleware

import (
	"net/http"
	"strings"

	"github.com/craftmart/craftmart-backend/pkg/logger"
	"github.com/craftmart/craftmart-backend/pkg/sessionid"
)

// CartSessionHeader carries the opaque cart session between browser and API.
const CartSessionHeader = "X-Cart-Session"

// CartSession resolves the cart session from the request header. Requests
// without a usable id get a new one, echoed back in the response header so the
// storefront can persist it.
func CartSession(gen sessionid.Generator, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(CartSessionHeader))
			if !sessionid.Valid(sessionID) {
				sessionID = gen()
			}
			w.Header().Set(CartSessionHeader, sessionID)

			ctx := WithCartSession(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
