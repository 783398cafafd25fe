package service

import (
	"context"

	"storefront/internal/models"
	"storefront/internal/shop"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// ReportService aggregates the purchase history. It never fails: unreadable history
// is logged and reported as no data.
type ReportService struct {
	store    *store.Store
	topLimit int
	logger   *zap.Logger
}

// NewReportService creates a new report service. topLimit is the default size of TopProducts.
func NewReportService(store *store.Store, topLimit int) *ReportService {
	if topLimit <= 0 {
		topLimit = 5
	}
	return &ReportService{
		store:    store,
		topLimit: topLimit,
		logger:   util.GetLogger(),
	}
}

// Summary returns totals over the whole history
func (s *ReportService) Summary(ctx context.Context) shop.Summary {
	ctx, span := util.StartSpan(ctx, "ReportService.Summary")
	defer span.End()

	records, dropped := s.history(ctx)
	return shop.Summarize(records, dropped)
}

// PaymentMethods counts purchases per payment method
func (s *ReportService) PaymentMethods(ctx context.Context) []shop.MethodCount {
	ctx, span := util.StartSpan(ctx, "ReportService.PaymentMethods")
	defer span.End()

	records, _ := s.history(ctx)
	return nonNil(shop.PaymentMethodCounts(records))
}

// TopProducts returns the n best selling products; n <= 0 uses the configured default
func (s *ReportService) TopProducts(ctx context.Context, n int) []shop.ProductSales {
	ctx, span := util.StartSpan(ctx, "ReportService.TopProducts")
	defer span.End()

	if n <= 0 {
		n = s.topLimit
	}
	records, _ := s.history(ctx)
	return nonNil(shop.TopProducts(records, n))
}

// DailySales returns revenue per calendar day
func (s *ReportService) DailySales(ctx context.Context) []shop.DailySales {
	ctx, span := util.StartSpan(ctx, "ReportService.DailySales")
	defer span.End()

	records, _ := s.history(ctx)
	return nonNil(shop.DailyRevenue(records))
}

func (s *ReportService) history(ctx context.Context) ([]models.PurchaseRecord, int) {
	records, dropped, err := s.store.LoadHistory(ctx)
	if err != nil {
		util.StoreErrorsTotal.WithLabelValues("history", string(shop.KindOf(err))).Inc()
		s.logger.Warn("Purchase history unavailable, reporting no data", zap.Error(err))
		return nil, 0
	}
	if dropped > 0 {
		s.logger.Debug("Skipped unreadable history rows", zap.Int("dropped", dropped))
	}
	return records, dropped
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
