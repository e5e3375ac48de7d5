package checkout

import (
	"context"

	pkgerrors "github.com/craftmart/craftmart-backend/pkg/errors"
	"github.com/craftmart/craftmart-backend/pkg/lemonsqueezy"
)

// UnavailableProvider stands in when payment credentials are missing so the
// storefront still boots; every checkout fails with a dependency error.
func UnavailableProvider(reason error) CheckoutProvider {
	return unavailableProvider{reason: reason}
}

type unavailableProvider struct {
	reason error
}

func (p unavailableProvider) CreateCheckout(context.Context, lemonsqueezy.CheckoutParams) (*lemonsqueezy.Checkout, error) {
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, p.reason, "payment provider not configured")
}

func (unavailableProvider) TestMode() bool { return false }
