package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stripe/stripe-go/v76"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStripe struct {
	customers     string
	subscriptions string
	status        int
	queries       []string
}

func (f *fakeStripe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.queries = append(f.queries, r.URL.Path+"?"+r.URL.RawQuery)
	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		w.Write([]byte(`{"error":{"type":"api_error","message":"boom"}}`))
		return
	}
	switch r.URL.Path {
	case "/v1/customers":
		w.Write([]byte(f.customers))
	case "/v1/subscriptions":
		w.Write([]byte(f.subscriptions))
	default:
		http.NotFound(w, r)
	}
}

func newTestProvider(t *testing.T, fake *fakeStripe) *StripeProvider {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeProvider("sk_test_123", &stripe.Backends{API: backend})
}

const emptyList = `{"object":"list","data":[],"has_more":false}`

func TestStripeProvider_ActiveSubscription(t *testing.T) {
	fake := &fakeStripe{
		customers:     `{"object":"list","data":[{"id":"cus_1","object":"customer","email":"baker@example.com"}],"has_more":false}`,
		subscriptions: `{"object":"list","data":[{"id":"sub_1","object":"subscription","status":"active"}],"has_more":false}`,
	}
	p := newTestProvider(t, fake)

	active, err := p.HasActiveSubscription(context.Background(), "baker@example.com")
	require.NoError(t, err)
	assert.True(t, active)
	require.Len(t, fake.queries, 2)
	assert.Contains(t, fake.queries[0], "email=baker%40example.com")
	assert.Contains(t, fake.queries[0], "limit=1")
	assert.Contains(t, fake.queries[1], "customer=cus_1")
	assert.Contains(t, fake.queries[1], "status=active")
}

func TestStripeProvider_NoCustomer(t *testing.T) {
	fake := &fakeStripe{customers: emptyList}
	p := newTestProvider(t, fake)

	active, err := p.HasActiveSubscription(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, active)
	assert.Len(t, fake.queries, 1)
}

func TestStripeProvider_NoActiveSubscription(t *testing.T) {
	fake := &fakeStripe{
		customers:     `{"object":"list","data":[{"id":"cus_1","object":"customer"}],"has_more":false}`,
		subscriptions: emptyList,
	}
	p := newTestProvider(t, fake)

	active, err := p.HasActiveSubscription(context.Background(), "baker@example.com")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestStripeProvider_APIError(t *testing.T) {
	p := newTestProvider(t, &fakeStripe{status: http.StatusInternalServerError})

	active, err := p.HasActiveSubscription(context.Background(), "baker@example.com")
	assert.Error(t, err)
	assert.False(t, active)
}

func TestStripeProvider_NotConfigured(t *testing.T) {
	p := NewStripeProvider("", nil)

	active, err := p.HasActiveSubscription(context.Background(), "baker@example.com")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, active)
}
