package controllers

import (
	"net/http"
	"strings"

	"github.com/craftmart/craftmart-backend/api/responses"
	"github.com/craftmart/craftmart-backend/api/validators"
	internalorders "github.com/craftmart/craftmart-backend/internal/orders"
	"github.com/craftmart/craftmart-backend/pkg/enums"
	pkgerrors "github.com/craftmart/craftmart-backend/pkg/errors"
	"github.com/craftmart/craftmart-backend/pkg/logger"
	"github.com/craftmart/craftmart-backend/pkg/pagination"
)

type updateDeliveryRequest struct {
	Status string  `json:"status" validate:"required,oneof=pending processing delivered failed"`
	Error  *string `json:"error" validate:"omitempty,max=2000"`
}

// AdminListOrders serves the paginated, filterable order console.
func AdminListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		input, err := parseOrderListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseOrderListQuery(r *http.Request) (internalorders.ListInput, error) {
	var input internalorders.ListInput

	page, err := validators.ParseQueryInt(r, "page", 1, 1, 1_000_000)
	if err != nil {
		return input, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return input, err
	}
	testMode, err := validators.ParseQueryBool(r, "testMode")
	if err != nil {
		return input, err
	}

	q := r.URL.Query()
	input.Page = page
	input.Limit = limit
	input.Filters.Search = strings.TrimSpace(q.Get("search"))
	input.Filters.TestMode = testMode

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").WithDetails(map[string]any{"field": "status"})
		}
		input.Filters.Status = &status
	}
	if raw := strings.TrimSpace(q.Get("deliveryStatus")); raw != "" {
		status, err := enums.ParseDeliveryStatus(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery status filter").WithDetails(map[string]any{"field": "deliveryStatus"})
		}
		input.Filters.DeliveryStatus = &status
	}
	return input, nil
}

// AdminGetOrder returns one order with its line items.
func AdminGetOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminUpdateOrderDelivery is the manual delivery override, also used by the
// game-server plugin to acknowledge dispatched commands.
func AdminUpdateOrderDelivery(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateDeliveryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseDeliveryStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery status"))
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID)
		order, err := svc.UpdateDelivery(ctx, internalorders.UpdateDeliveryInput{
			OrderID: orderID,
			Status:  status,
			Error:   req.Error,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logg.Info(logg.WithField(ctx, "delivery_status", status), "admin.order_delivery_updated")
		responses.WriteSuccess(w, order)
	}
}
