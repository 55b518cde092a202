// Package checkout turns cart data coming from the checkout screen into
// payment descriptors.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yourorg/wallet-checkout/internal/payment"
)

// Line item ids of the sample cart.
const (
	ItemProduct  = "PRODUCT_ITEM_ID"
	ItemTax      = "PRODUCT_TAX_ID"
	ItemShipping = "PRODUCT_SHIPPING_ID"
)

// CheckoutRequest is the body of a pay tap.
type CheckoutRequest struct {
	Amount         int64              `json:"amount"`
	Currency       string             `json:"currency"`
	OrderReference string             `json:"order_reference,omitempty"`
	LineItems      []payment.LineItem `json:"line_items,omitempty"`
}

// SampleCart returns the cart the demo screen shows for provider: a $1.20
// product on the generic wallet and an INR 1205.00 breakdown on the device
// wallet sheet.
func SampleCart(provider payment.Provider) CheckoutRequest {
	if provider == payment.DeviceWallet {
		return CheckoutRequest{
			Amount:         120500,
			Currency:       "INR",
			OrderReference: "AMZ007MAR",
			LineItems: []payment.LineItem{
				{ID: ItemProduct, Label: "Item", Amount: 119900},
				{ID: ItemTax, Label: "Tax", Amount: 500},
				{ID: ItemShipping, Label: "Shipping", Amount: 100},
			},
		}
	}
	return CheckoutRequest{Amount: 120, Currency: "USD", OrderReference: "AMZ007MAR"}
}

// Builder constructs descriptors for one merchant.
type Builder struct {
	merchantRepo MerchantConfigRepository
	merchantID   string
}

func NewBuilder(repo MerchantConfigRepository, merchantID string) (*Builder, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout: merchant config repository cannot be nil")
	}
	if _, err := repo.Get(merchantID); err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	return &Builder{merchantRepo: repo, merchantID: merchantID}, nil
}

// Merchant returns the current merchant configuration.
func (b *Builder) Merchant() (MerchantConfig, error) {
	return b.merchantRepo.Get(b.merchantID)
}

// Build validates req and returns a descriptor for provider. A missing
// currency falls back to the merchant default and a missing order reference
// is generated.
func (b *Builder) Build(ctx context.Context, provider payment.Provider, req CheckoutRequest) (payment.Descriptor, error) {
	_, span := otel.Tracer("checkout").Start(ctx, "Builder.Build")
	defer span.End()
	span.SetAttributes(attribute.String("provider", provider.String()))

	start := time.Now()
	defer func() { buildDurationSeconds.Observe(time.Since(start).Seconds()) }()

	merchant, err := b.merchantRepo.Get(b.merchantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "merchant lookup failed")
		checkoutRequestsTotal.WithLabelValues(provider.String(), "error").Inc()
		return payment.Descriptor{}, fmt.Errorf("checkout: %w", err)
	}

	currency := req.Currency
	if currency == "" {
		currency = merchant.DefaultCurrency
	}
	ref := req.OrderReference
	if ref == "" {
		ref = newOrderReference(merchant.OrderPrefix)
	}

	d, err := payment.NewDescriptor(provider, req.Amount, currency, ref, req.LineItems...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid checkout request")
		checkoutRequestsTotal.WithLabelValues(provider.String(), "invalid").Inc()
		return payment.Descriptor{}, err
	}
	checkoutRequestsTotal.WithLabelValues(provider.String(), "ok").Inc()
	span.SetAttributes(
		attribute.String("request_id", d.RequestID()),
		attribute.String("order_reference", ref),
	)
	return d, nil
}

func newOrderReference(prefix string) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
