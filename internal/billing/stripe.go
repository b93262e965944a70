package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

var ErrNotConfigured = errors.New("stripe secret key not configured")

// Provider answers whether an e-mail address belongs to a paying customer.
type Provider interface {
	HasActiveSubscription(ctx context.Context, email string) (bool, error)
}

type StripeProvider struct {
	api *client.API
}

// NewStripeProvider returns a provider bound to secretKey. backends may be nil
// to use Stripe's default endpoints. An empty key yields a provider that
// always fails with ErrNotConfigured.
func NewStripeProvider(secretKey string, backends *stripe.Backends) *StripeProvider {
	if secretKey == "" {
		return &StripeProvider{}
	}
	return &StripeProvider{api: client.New(secretKey, backends)}
}

// HasActiveSubscription looks up the first customer with the given e-mail and
// reports whether it has at least one active subscription.
func (p *StripeProvider) HasActiveSubscription(ctx context.Context, email string) (bool, error) {
	if p == nil || p.api == nil {
		return false, ErrNotConfigured
	}

	customerParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	customerParams.Limit = stripe.Int64(1)
	customerParams.Context = ctx

	customers := p.api.Customers.List(customerParams)
	if !customers.Next() {
		if err := customers.Err(); err != nil {
			return false, fmt.Errorf("list customers: %w", err)
		}
		return false, nil
	}
	customer := customers.Customer()

	subParams := &stripe.SubscriptionListParams{
		Customer: stripe.String(customer.ID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	subParams.Limit = stripe.Int64(1)
	subParams.Context = ctx

	subs := p.api.Subscriptions.List(subParams)
	if subs.Next() {
		return true, nil
	}
	if err := subs.Err(); err != nil {
		return false, fmt.Errorf("list subscriptions: %w", err)
	}
	return false, nil
}
