package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/shop"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CheckoutService drives the payment flow and records completed purchases
type CheckoutService struct {
	state     *State
	store     *store.Store
	publisher EventPublisher
	logger    *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(state *State, store *store.Store, integrations Integrations) *CheckoutService {
	integrations = integrations.withDefaults()
	return &CheckoutService{
		state:     state,
		store:     store,
		publisher: integrations.Publisher,
		logger:    util.GetLogger(),
	}
}

// CheckoutStatus describes where the flow stands
type CheckoutStatus struct {
	State  shop.CheckoutState   `json:"state"`
	Method models.PaymentMethod `json:"method,omitempty"`
	Total  int64                `json:"total"`
}

// CheckoutRequest is the one-shot form of the flow
type CheckoutRequest struct {
	Method string `json:"method" binding:"required"`
	shop.CardDetails
}

// Status returns the current step of the flow
func (s *CheckoutService) Status(ctx context.Context) (CheckoutStatus, error) {
	_, span := util.StartSpan(ctx, "CheckoutService.Status")
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if _, err := s.state.requireSession(); err != nil {
		return CheckoutStatus{}, err
	}
	return s.status(), nil
}

// SelectMethod starts or restarts the flow with a payment method
func (s *CheckoutService) SelectMethod(ctx context.Context, method string) (CheckoutStatus, error) {
	_, span := util.StartSpan(ctx, "CheckoutService.SelectMethod")
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if _, err := s.state.requireSession(); err != nil {
		return CheckoutStatus{}, err
	}
	if err := s.selectMethod(method); err != nil {
		return CheckoutStatus{}, err
	}
	return s.status(), nil
}

// EnterDetails records card details for a card method
func (s *CheckoutService) EnterDetails(ctx context.Context, card shop.CardDetails) (CheckoutStatus, error) {
	_, span := util.StartSpan(ctx, "CheckoutService.EnterDetails")
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if _, err := s.state.requireSession(); err != nil {
		return CheckoutStatus{}, err
	}
	if err := s.state.checkout.EnterDetails(card); err != nil {
		return CheckoutStatus{}, err
	}
	return s.status(), nil
}

// Confirm validates the flow and turns the cart into a purchase record
func (s *CheckoutService) Confirm(ctx context.Context) (models.PurchaseRecord, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Confirm")
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	return s.confirm(ctx)
}

// Checkout runs select, details and confirm in one call
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (models.PurchaseRecord, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if _, err := s.state.requireSession(); err != nil {
		return models.PurchaseRecord{}, err
	}
	if err := s.selectMethod(req.Method); err != nil {
		return models.PurchaseRecord{}, err
	}
	if s.state.checkout.Method().IsCard() {
		if err := s.state.checkout.EnterDetails(req.CardDetails); err != nil {
			return models.PurchaseRecord{}, err
		}
	}
	return s.confirm(ctx)
}

func (s *CheckoutService) selectMethod(method string) error {
	m, err := models.ParsePaymentMethod(method)
	if err != nil {
		return fmt.Errorf("%w: %s", shop.ErrUnknownMethod, method)
	}
	return s.state.checkout.SelectMethod(m)
}

// confirm must be called with mu held
func (s *CheckoutService) confirm(ctx context.Context) (models.PurchaseRecord, error) {
	session, err := s.state.requireSession()
	if err != nil {
		return models.PurchaseRecord{}, err
	}

	start := time.Now()
	rec, err := s.state.checkout.Confirm(
		&s.state.cart,
		s.state.catalog,
		session.Username,
		&s.state.txIDs,
		s.state.now(),
		func(rec models.PurchaseRecord) error { return s.persist(ctx, rec) },
	)
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues(failureReason(err)).Inc()
		s.logger.Info("Checkout rejected", zap.String("username", session.Username), zap.Error(err))
		return models.PurchaseRecord{}, err
	}
	util.CheckoutLatency.Observe(time.Since(start).Seconds())

	util.PurchasesTotal.WithLabelValues(string(rec.PaymentMethod)).Inc()
	util.PurchaseRevenueTotal.Add(float64(rec.TotalPaid))
	util.CartUnits.Set(0)

	if err := s.publisher.PublishPurchaseCompleted(ctx, rec); err != nil {
		s.logger.Warn("Failed to publish purchase event",
			zap.String("transaction_id", rec.TransactionID),
			zap.Error(err),
		)
	}

	s.logger.Info("Purchase completed",
		zap.String("transaction_id", rec.TransactionID),
		zap.String("username", rec.Username),
		zap.String("method", string(rec.PaymentMethod)),
		zap.Int64("total", rec.TotalPaid),
	)
	return rec, nil
}

// persist appends the record to the history, which is the commit point, then rewrites the
// products file so it no longer counts the sold units as reserved.
func (s *CheckoutService) persist(ctx context.Context, rec models.PurchaseRecord) error {
	warning, err := s.store.AppendPurchase(ctx, rec)
	if err != nil {
		util.StoreErrorsTotal.WithLabelValues("history", string(shop.KindOf(err))).Inc()
		return fmt.Errorf("failed to append purchase: %w", err)
	}
	if warning != nil {
		util.StoreErrorsTotal.WithLabelValues("history", string(shop.KindOf(warning))).Inc()
		s.logger.Warn("Purchase history was corrupt and has been restarted", zap.Error(warning))
	}

	if err := s.store.SaveProducts(ctx, s.state.catalog.List()); err != nil {
		util.StoreErrorsTotal.WithLabelValues("products", string(shop.KindOf(err))).Inc()
		s.logger.Error("Purchase recorded but products file not updated",
			zap.String("transaction_id", rec.TransactionID),
			zap.Error(err),
		)
	}
	return nil
}

func (s *CheckoutService) status() CheckoutStatus {
	return CheckoutStatus{
		State:  s.state.checkout.State(),
		Method: s.state.checkout.Method(),
		Total:  s.state.cart.Total(s.state.catalog),
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, shop.ErrCardNumber):
		return "card_number"
	case errors.Is(err, shop.ErrCardExpiry):
		return "card_expiry"
	case errors.Is(err, shop.ErrCardCVV):
		return "card_cvv"
	case errors.Is(err, shop.ErrCardDetailsMissing):
		return "card_missing"
	case errors.Is(err, shop.ErrEmptyCart):
		return "empty_cart"
	}
	return string(shop.KindOf(err))
}
