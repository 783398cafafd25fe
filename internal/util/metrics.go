package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UsersRegisteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_users_registered_total",
		Help: "Total number of accounts registered",
	})

	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_logins_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_active_sessions",
		Help: "Number of logged-in sessions",
	})

	CartOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_operations_total",
		Help: "Cart add and remove operations by outcome",
	}, []string{"operation", "outcome"})

	CartUnits = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_cart_units",
		Help: "Units currently reserved in the cart",
	})

	PurchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_purchases_total",
		Help: "Completed purchases by payment method",
	}, []string{"method"})

	PurchaseRevenueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_purchase_revenue_total",
		Help: "Sum of total_pagado over completed purchases",
	})

	CheckoutFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_failed_total",
		Help: "Rejected checkout confirmations",
	}, []string{"reason"})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_checkout_latency_seconds",
		Help:    "Latency of checkout confirmation including persistence",
		Buckets: prometheus.DefBuckets,
	})

	CatalogChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_catalog_changes_total",
		Help: "Admin catalog mutations",
	}, []string{"action"})

	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_store_errors_total",
		Help: "Record store failures by file and kind",
	}, []string{"file", "kind"})

	ArchivedPurchasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_archived_purchases_total",
		Help: "Purchases written to the sales archive",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
