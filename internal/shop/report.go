package shop

import (
	"sort"
	"time"

	"storefront/internal/models"
)

// Summary is the headline view of the purchase history.
type Summary struct {
	HasData          bool                 `json:"has_data"`
	TotalRevenue     int64                `json:"total_revenue"`
	Transactions     int                  `json:"transactions"`
	TopPaymentMethod models.PaymentMethod `json:"top_payment_method,omitempty"`
	DroppedRows      int                  `json:"dropped_rows"`
}

// MethodCount is the number of purchases paid with a method.
type MethodCount struct {
	Method models.PaymentMethod `json:"method"`
	Count  int                  `json:"count"`
}

// ProductSales is the number of units sold of a product.
type ProductSales struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// DailySales is the revenue of one calendar day.
type DailySales struct {
	Day     time.Time `json:"day"`
	Revenue int64     `json:"revenue"`
}

// Summarize computes totals. An empty history yields HasData=false rather than an error.
func Summarize(records []models.PurchaseRecord, dropped int) Summary {
	s := Summary{DroppedRows: dropped}
	if len(records) == 0 {
		return s
	}

	s.HasData = true
	s.Transactions = len(records)
	for _, r := range records {
		s.TotalRevenue += r.TotalPaid
	}
	if counts := PaymentMethodCounts(records); len(counts) > 0 {
		s.TopPaymentMethod = counts[0].Method
	}
	return s
}

// PaymentMethodCounts counts purchases per method, most used first; ties sort by method label.
func PaymentMethodCounts(records []models.PurchaseRecord) []MethodCount {
	counts := make(map[models.PaymentMethod]int)
	for _, r := range records {
		if r.PaymentMethod == "" {
			continue
		}
		counts[r.PaymentMethod]++
	}

	out := make([]MethodCount, 0, len(counts))
	for m, n := range counts {
		out = append(out, MethodCount{Method: m, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// TopProducts sums sold quantities per product name and keeps the n best sellers.
// Line items with a non-positive quantity are ignored.
func TopProducts(records []models.PurchaseRecord, n int) []ProductSales {
	totals := make(map[string]int)
	for _, r := range records {
		for _, item := range r.Items {
			if item.Name == "" || item.Quantity <= 0 {
				continue
			}
			totals[item.Name] += item.Quantity
		}
	}

	out := make([]ProductSales, 0, len(totals))
	for name, q := range totals {
		out = append(out, ProductSales{Name: name, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// DailyRevenue sums revenue per calendar day in chronological order.
func DailyRevenue(records []models.PurchaseRecord) []DailySales {
	totals := make(map[time.Time]int64)
	for _, r := range records {
		totals[r.Timestamp.Day()] += r.TotalPaid
	}

	out := make([]DailySales, 0, len(totals))
	for day, revenue := range totals {
		out = append(out, DailySales{Day: day, Revenue: revenue})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}
