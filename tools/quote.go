package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Quote is a delivery quote for a built order.
type Quote struct {
	QuoteID           string    `json:"quote_id"`
	FeeCents          int       `json:"fee_cents"`
	EstimatedPickup   time.Time `json:"estimated_pickup"`
	EstimatedDropoff  time.Time `json:"estimated_dropoff"`
	TrackingURL       string    `json:"tracking_url,omitempty"`
	ExpiresAt         time.Time `json:"expires_at"`
	DeliveryAddress   string    `json:"delivery_address"`
	VendorDisplayName string    `json:"vendor_display_name,omitempty"`
}

// QuoteSource produces delivery quotes for orders about to be submitted.
type QuoteSource interface {
	Name() string
	CreateQuote(ctx context.Context, vendorID, address string, subtotalCents int) (*Quote, error)
}

// QuoteTool adapts a QuoteSource to the Tool interface. Args: "vendor_id",
// "address", "subtotal_cents".
type QuoteTool struct {
	source QuoteSource
}

// NewQuoteTool wraps a quote source as a dispatchable tool.
func NewQuoteTool(source QuoteSource) *QuoteTool {
	return &QuoteTool{source: source}
}

func (t *QuoteTool) Name() string {
	return t.source.Name()
}

func (t *QuoteTool) Call(ctx context.Context, args map[string]any) (any, error) {
	vendorID, _ := args["vendor_id"].(string)
	address, _ := args["address"].(string)
	subtotalCents, _ := args["subtotal_cents"].(int)
	if vendorID == "" || address == "" {
		return nil, fmt.Errorf("vendor_id and address required")
	}
	return t.source.CreateQuote(ctx, vendorID, address, subtotalCents)
}

// FlatRateQuotes produces quotes with a fixed delivery fee and lead times.
// It stands in for a real delivery API in local use and in tests.
type FlatRateQuotes struct {
	name         string
	feeCents     int
	pickupLead   time.Duration
	deliveryLead time.Duration
	now          func() time.Time
}

// NewFlatRateQuotes creates a flat-rate quote source.
func NewFlatRateQuotes(name string, feeCents int) *FlatRateQuotes {
	return &FlatRateQuotes{
		name:         name,
		feeCents:     feeCents,
		pickupLead:   30 * time.Minute,
		deliveryLead: 55 * time.Minute,
		now:          time.Now,
	}
}

func (s *FlatRateQuotes) Name() string {
	return s.name
}

func (s *FlatRateQuotes) CreateQuote(ctx context.Context, vendorID, address string, subtotalCents int) (*Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	quoteID := uuid.NewString()
	return &Quote{
		QuoteID:          quoteID,
		FeeCents:         s.feeCents,
		EstimatedPickup:  now.Add(s.pickupLead),
		EstimatedDropoff: now.Add(s.deliveryLead),
		TrackingURL:      fmt.Sprintf("https://track.forkline.dev/%s", quoteID),
		ExpiresAt:        now.Add(10 * time.Minute),
		DeliveryAddress:  address,
	}, nil
}
