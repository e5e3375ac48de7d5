package orders

import (
	"github.com/craftmart/craftmart-backend/pkg/db/models"
	"github.com/craftmart/craftmart-backend/pkg/enums"
	"github.com/craftmart/craftmart-backend/pkg/types"
)

// ListFilters narrows the admin order listing. Nil fields are ignored.
type ListFilters struct {
	Search         string
	Status         *enums.OrderStatus
	DeliveryStatus *enums.DeliveryStatus
	TestMode       *bool
}

// ListInput is the admin list request after query parsing.
type ListInput struct {
	Page    int
	Limit   int
	Filters ListFilters
}

// ListResult is one page of orders plus pagination metadata.
type ListResult = types.ListResponse[models.Order]

// UpdateDeliveryInput is a manual override of the fulfillment sub-state.
type UpdateDeliveryInput struct {
	OrderID uint64
	Status  enums.DeliveryStatus
	Error   *string
}
