package worker

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/shop"
	"storefront/internal/util"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// StockSyncer pushes the catalog stock to the mirror
type StockSyncer interface {
	SyncMirror(ctx context.Context) error
}

// SalesReporter summarizes the purchase history
type SalesReporter interface {
	Summary(ctx context.Context) shop.Summary
	DailySales(ctx context.Context) []shop.DailySales
}

// Scheduler runs the periodic housekeeping jobs
type Scheduler struct {
	cron     *gocron.Scheduler
	stock    StockSyncer
	reports  SalesReporter
	interval time.Duration
	dailyAt  string
	logger   *zap.Logger
}

// NewScheduler creates a scheduler in local time. A zero interval disables the stock sync job.
func NewScheduler(stock StockSyncer, reports SalesReporter, interval time.Duration, dailyAt string) *Scheduler {
	return &Scheduler{
		cron:     gocron.NewScheduler(time.Local),
		stock:    stock,
		reports:  reports,
		interval: interval,
		dailyAt:  dailyAt,
		logger:   util.GetLogger(),
	}
}

// Start registers the jobs and starts the scheduler in the background
func (s *Scheduler) Start() error {
	if s.interval > 0 {
		if _, err := s.cron.Every(s.interval).WaitForSchedule().Do(s.SyncStock); err != nil {
			return fmt.Errorf("failed to schedule stock sync: %w", err)
		}
	}
	if s.dailyAt != "" {
		if _, err := s.cron.Every(1).Day().At(s.dailyAt).Do(s.DailyReport); err != nil {
			return fmt.Errorf("failed to schedule daily report: %w", err)
		}
	}

	s.cron.StartAsync()
	s.logger.Info("Scheduler started",
		zap.Duration("stock_sync_interval", s.interval),
		zap.String("daily_report_at", s.dailyAt),
		zap.Int("jobs", len(s.cron.Jobs())),
	)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("Scheduler stopped")
}

// SyncStock re-publishes every product's stock to the mirror
func (s *Scheduler) SyncStock() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.stock.SyncMirror(ctx); err != nil {
		s.logger.Warn("Stock sync failed", zap.Error(err))
		return
	}
	s.logger.Debug("Stock mirror synced")
}

// DailyReport logs today's revenue and the running totals
func (s *Scheduler) DailyReport() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	summary := s.reports.Summary(ctx)
	if !summary.HasData {
		s.logger.Info("Daily sales report: no purchases recorded")
		return
	}

	var today int64
	now := time.Now()
	for _, day := range s.reports.DailySales(ctx) {
		if sameDay(day.Day, now) {
			today = day.Revenue
		}
	}

	s.logger.Info("Daily sales report",
		zap.Int64("revenue_today", today),
		zap.Int64("revenue_total", summary.TotalRevenue),
		zap.Int("transactions", summary.Transactions),
		zap.String("top_payment_method", string(summary.TopPaymentMethod)),
		zap.Int("dropped_rows", summary.DroppedRows),
	)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
