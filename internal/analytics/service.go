// Package analytics summarises sales for the admin back office.
package analytics

import (
	"context"
	"sort"
	"time"

	"ms-storefront/internal/models"
	"ms-storefront/internal/store"
)

type Store interface {
	CountOrdersByStatus(ctx context.Context, since time.Time) ([]store.StatusCount, error)
	ListOrderSales(ctx context.Context, since time.Time) ([]store.OrderSale, error)
	CountTickets(ctx context.Context) ([]store.TicketCount, error)
}

// Service handles analytics operations
type Service struct {
	store Store
}

func NewService(s Store) *Service {
	return &Service{store: s}
}

// OrderAnalytics is the order summary shown on the admin dashboard. Revenue only counts
// settled orders: paid and not cancelled or refunded.
type OrderAnalytics struct {
	Since         *time.Time          `json:"since,omitempty"`
	TotalOrders   int                 `json:"total_orders"`
	SettledOrders int                 `json:"settled_orders"`
	BooksSold     int                 `json:"books_sold"`
	Revenue       int64               `json:"revenue"`
	TotalDiscount int64               `json:"total_discount"`
	ByStatus      []store.StatusCount `json:"by_status"`
	DailySales    []DailySales        `json:"daily_sales"`
	DiscountUsage []DiscountUsage     `json:"discount_usage"`
}

// DailySales contains settled sales for a single UTC day
type DailySales struct {
	Date      string `json:"date"`
	Orders    int    `json:"orders"`
	BooksSold int    `json:"books_sold"`
	Revenue   int64  `json:"revenue"`
}

// DiscountUsage tracks how often each promo code was redeemed on a settled order
type DiscountUsage struct {
	Code          string `json:"code"`
	Uses          int    `json:"uses"`
	TotalDiscount int64  `json:"total_discount"`
}

type TicketAnalytics struct {
	Tickets    int                 `json:"tickets"`
	Admissions int                 `json:"admissions"`
	CheckedIn  int                 `json:"checked_in"`
	Revenue    int64               `json:"revenue"`
	ByStatus   []store.TicketCount `json:"by_status"`
}

// OrderSummary aggregates orders created since the cutoff. A zero cutoff covers all time.
func (s *Service) OrderSummary(ctx context.Context, since time.Time) (*OrderAnalytics, error) {
	counts, err := s.store.CountOrdersByStatus(ctx, since)
	if err != nil {
		return nil, err
	}
	sales, err := s.store.ListOrderSales(ctx, since)
	if err != nil {
		return nil, err
	}

	if counts == nil {
		counts = []store.StatusCount{}
	}
	result := &OrderAnalytics{
		ByStatus:      counts,
		DailySales:    make([]DailySales, 0),
		DiscountUsage: make([]DiscountUsage, 0),
	}
	if !since.IsZero() {
		cutoff := since.UTC()
		result.Since = &cutoff
	}
	for _, c := range counts {
		result.TotalOrders += c.Count
	}

	days := map[string]*DailySales{}
	codes := map[string]*DiscountUsage{}
	for _, sale := range sales {
		if !sale.Status.Settled() {
			continue
		}
		result.SettledOrders++
		result.BooksSold += sale.Quantity
		result.Revenue += sale.FinalPrice
		result.TotalDiscount += sale.DiscountAmount

		date := sale.CreatedAt.UTC().Format("2006-01-02")
		d, ok := days[date]
		if !ok {
			d = &DailySales{Date: date}
			days[date] = d
		}
		d.Orders++
		d.BooksSold += sale.Quantity
		d.Revenue += sale.FinalPrice

		if sale.PromoCode != "" {
			u, ok := codes[sale.PromoCode]
			if !ok {
				u = &DiscountUsage{Code: sale.PromoCode}
				codes[sale.PromoCode] = u
			}
			u.Uses++
			u.TotalDiscount += sale.DiscountAmount
		}
	}

	for _, d := range days {
		result.DailySales = append(result.DailySales, *d)
	}
	sort.Slice(result.DailySales, func(i, j int) bool { return result.DailySales[i].Date < result.DailySales[j].Date })

	for _, u := range codes {
		result.DiscountUsage = append(result.DiscountUsage, *u)
	}
	sort.Slice(result.DiscountUsage, func(i, j int) bool {
		if result.DiscountUsage[i].Uses != result.DiscountUsage[j].Uses {
			return result.DiscountUsage[i].Uses > result.DiscountUsage[j].Uses
		}
		return result.DiscountUsage[i].Code < result.DiscountUsage[j].Code
	})

	return result, nil
}

func (s *Service) TicketSummary(ctx context.Context) (*TicketAnalytics, error) {
	counts, err := s.store.CountTickets(ctx)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = []store.TicketCount{}
	}
	result := &TicketAnalytics{ByStatus: counts}
	for _, c := range counts {
		result.Tickets += c.Tickets
		result.CheckedIn += c.Verified
		if c.PaymentStatus == models.TicketPaid {
			result.Admissions += c.Admissions
			result.Revenue += c.Revenue
		}
	}
	return result, nil
}
