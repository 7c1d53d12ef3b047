// Package checkout places storefront orders in the CRM.
//
// A checkout is a saga of dependent record writes with no enclosing
// transaction:
//
//	resolve account → standard price book → create Draft order
//	  → per item: find-or-create price-book entry, create order item
//	  → activate order                         (commit point)
//	  → loyalty accrual, order number fetch    (best effort)
//
// Any failure before activation aborts the checkout. Already-created
// records are left in Draft for manual cleanup unless compensation is
// enabled, in which case the order is moved to a cancelled status.
// Nothing after activation can fail the checkout.
package checkout

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"commerce-gateway/internal/crm"
	"commerce-gateway/internal/model"
)

// Config tunes saga behavior.
type Config struct {
	// Compensate moves a half-built order to CancelledStatus when a step
	// before activation fails.
	Compensate      bool
	CancelledStatus string

	// DeliveryDays is added to today for the estimated delivery date.
	DeliveryDays int

	// LoyaltyRate is the share of the order total credited as points.
	LoyaltyRate decimal.Decimal
}

// DefaultConfig returns the demo defaults: no compensation, five-day
// delivery, 10% loyalty accrual.
func DefaultConfig() Config {
	return Config{
		CancelledStatus: "Cancelled",
		DeliveryDays:    5,
		LoyaltyRate:     decimal.NewFromFloat(0.10),
	}
}

// Service runs checkouts against one CRM org.
type Service struct {
	crm    *crm.Client
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	pick   func(n int) int
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPicker replaces the random carrier picker. pick returns a value in [0,n).
func WithPicker(pick func(n int) int) Option {
	return func(s *Service) { s.pick = pick }
}

// New creates a checkout service.
func New(client *crm.Client, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	defaults := DefaultConfig()
	if cfg.CancelledStatus == "" {
		cfg.CancelledStatus = defaults.CancelledStatus
	}
	if cfg.DeliveryDays <= 0 {
		cfg.DeliveryDays = defaults.DeliveryDays
	}
	if cfg.LoyaltyRate.IsZero() {
		cfg.LoyaltyRate = defaults.LoyaltyRate
	}

	s := &Service{
		crm:    client,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		pick:   rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// state carries step outputs through one checkout.
type state struct {
	token string
	req   *model.CheckoutRequest
	today time.Time

	accountID   string
	priceBookID string
	orderID     string
	shipment    shipment
	entries     map[string]string // product ID → price-book entry ID
	itemIDs     []string
	activated   bool

	pointsEarned int64
	orderNumber  string
}

// Checkout places the order described by req.
// The result is returned only once the order has been activated.
func (s *Service) Checkout(ctx context.Context, token string, req *model.CheckoutRequest) (*model.CheckoutResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, model.NewAuthFailure("CRM token required for checkout", nil)
	}

	st := &state{
		token:   token,
		req:     req,
		today:   s.now().UTC(),
		entries: make(map[string]string),
	}

	critical := []step{
		{"resolve account", s.resolveAccount},
		{"resolve price book", s.resolvePriceBook},
		{"create order", s.createOrder},
		{"add line items", s.addLineItems},
		{"activate order", s.activateOrder},
	}
	if err := runSteps(ctx, s.logger, critical, st); err != nil {
		s.compensate(ctx, st)
		return nil, err
	}

	s.logger.InfoContext(ctx, "order activated",
		slog.String("order_id", st.orderID),
		slog.String("account_id", st.accountID),
		slog.Int("line_items", len(st.itemIDs)),
	)

	// The order is placed; a disconnected client must not stop enrichment.
	tailCtx := context.WithoutCancel(ctx)
	runBestEffort(tailCtx, s.logger, []step{
		{"accrue loyalty", s.accrueLoyalty},
		{"fetch order number", s.fetchOrderNumber},
	}, st)

	return &model.CheckoutResult{
		Success:           true,
		OrderID:           st.orderID,
		OrderNumber:       st.orderNumber,
		TrackingNumber:    st.shipment.trackingNumber,
		Carrier:           st.shipment.carrier,
		EstimatedDelivery: st.shipment.estimatedDelivery,
		ShippingStatus:    st.shipment.status,
		PointsEarned:      st.pointsEarned,
	}, nil
}

// compensate cancels a Draft order left behind by a failed checkout.
func (s *Service) compensate(ctx context.Context, st *state) {
	if st.orderID == "" || st.activated {
		return
	}
	if !s.cfg.Compensate {
		s.logger.WarnContext(ctx, "checkout aborted, draft order left for cleanup",
			slog.String("order_id", st.orderID),
			slog.Int("line_items_created", len(st.itemIDs)),
		)
		return
	}

	err := s.crm.Update(context.WithoutCancel(ctx), st.token, objectOrder, st.orderID, map[string]interface{}{
		"Status": s.cfg.CancelledStatus,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "compensation failed",
			slog.String("order_id", st.orderID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "draft order cancelled after failed checkout",
		slog.String("order_id", st.orderID),
	)
}
