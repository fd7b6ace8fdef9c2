// Package dashboard aggregates a seller's business view from the store,
// booking and payment services.
package dashboard

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/laundryhub/gateway/internal/errors"
	"github.com/laundryhub/gateway/internal/httputil"
	"github.com/laundryhub/gateway/internal/logging"
)

// recentBookingLimit caps the recentBookings collection.
const recentBookingLimit = 5

// activeStatuses are the booking states counted as active orders.
// COMPLETED and CANCELLED are the inactive complement.
var activeStatuses = map[string]bool{
	"PENDING":    true,
	"CONFIRMED":  true,
	"PROCESSING": true,
	"READY":      true,
}

const myStoresQuery = `
  query MyStores($ownerId: ID!) {
    myStores(ownerId: $ownerId) {
      id
      name
      address
      rating
      reviewCount
    }
  }
`

const storeBookingsQuery = `
  query StoreBookings($storeId: String!) {
    storeBookings(storeId: $storeId) {
      id
      userName
      serviceName: serviceLabel
      weight
      totalPrice
      status
      checkInDate
      createdAt
    }
  }
`

const paymentsByStoresQuery = `
  query PaymentsByStores($storeIds: [String!]!) {
    paymentsByStores(storeIds: $storeIds) {
      id
      amount
      status
    }
  }
`

// Aggregator composes the seller dashboard from three backend services.
type Aggregator struct {
	stores   *httputil.ServiceClient
	bookings *httputil.ServiceClient
	payments *httputil.ServiceClient
	logger   *logging.Logger
}

// New creates a dashboard aggregator.
func New(stores, bookings, payments *httputil.ServiceClient, logger *logging.Logger) *Aggregator {
	return &Aggregator{
		stores:   stores,
		bookings: bookings,
		payments: payments,
		logger:   logger,
	}
}

// SellerDashboard returns the composed business view for the seller
// identified by ownerID. Bookings and payments are only ever queried for
// the seller's own stores, so tenant isolation holds by construction.
// Any single downstream failure aborts the whole aggregation.
func (a *Aggregator) SellerDashboard(ctx context.Context, ownerID string) (*Summary, error) {
	stores, err := a.fetchStores(ctx, ownerID)
	if err != nil {
		return nil, errors.UpstreamUnavailable(a.stores.Name(), err)
	}

	// A seller with no stores gets a zeroed summary with no further calls.
	if len(stores) == 0 {
		return emptySummary(), nil
	}

	storeIDs := make([]string, len(stores))
	for i, s := range stores {
		storeIDs[i] = s.ID
	}

	allBookings, err := a.fetchBookings(ctx, storeIDs)
	if err != nil {
		return nil, errors.UpstreamUnavailable(a.bookings.Name(), err)
	}

	totalRevenue, err := a.fetchRevenue(ctx, storeIDs)
	if err != nil {
		return nil, errors.UpstreamUnavailable(a.payments.Name(), err)
	}

	activeOrders := 0
	for _, b := range allBookings {
		if activeStatuses[b.Status] {
			activeOrders++
		}
	}

	return &Summary{
		Stores:         stores,
		ActiveOrders:   activeOrders,
		TotalRevenue:   totalRevenue,
		RecentBookings: recentBookings(allBookings),
	}, nil
}

func (a *Aggregator) fetchStores(ctx context.Context, ownerID string) ([]Store, error) {
	data, err := a.stores.GraphQL(ctx, myStoresQuery, map[string]interface{}{
		"ownerId": ownerID,
	})
	if err != nil {
		return nil, err
	}

	var stores []Store
	for _, s := range data.Get("myStores").Array() {
		stores = append(stores, Store{
			ID:          s.Get("id").String(),
			Name:        s.Get("name").String(),
			Address:     s.Get("address").String(),
			Rating:      s.Get("rating").Float(),
			ReviewCount: int(s.Get("reviewCount").Int()),
		})
	}
	return stores, nil
}

// fetchBookings issues one booking query per store concurrently and
// flattens the results in store order. The join is all-or-nothing: the
// first failure fails the whole fetch.
func (a *Aggregator) fetchBookings(ctx context.Context, storeIDs []string) ([]Booking, error) {
	results := make([][]Booking, len(storeIDs))
	errs := make([]error, len(storeIDs))

	var wg sync.WaitGroup
	for i, storeID := range storeIDs {
		wg.Add(1)
		go func(i int, storeID string) {
			defer wg.Done()
			results[i], errs[i] = a.fetchStoreBookings(ctx, storeID)
		}(i, storeID)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var all []Booking
	for _, bookings := range results {
		all = append(all, bookings...)
	}
	return all, nil
}

func (a *Aggregator) fetchStoreBookings(ctx context.Context, storeID string) ([]Booking, error) {
	data, err := a.bookings.GraphQL(ctx, storeBookingsQuery, map[string]interface{}{
		"storeId": storeID,
	})
	if err != nil {
		return nil, err
	}

	var bookings []Booking
	for _, b := range data.Get("storeBookings").Array() {
		bookings = append(bookings, Booking{
			ID:          b.Get("id").String(),
			UserName:    b.Get("userName").String(),
			ServiceName: b.Get("serviceName").String(),
			Weight:      b.Get("weight").Float(),
			TotalPrice:  b.Get("totalPrice").Float(),
			Status:      b.Get("status").String(),
			CheckInDate: b.Get("checkInDate").String(),
			CreatedAt:   b.Get("createdAt").String(),
		})
	}
	return bookings, nil
}

// fetchRevenue sums the amounts of all payments recorded against the
// given stores, regardless of payment status.
func (a *Aggregator) fetchRevenue(ctx context.Context, storeIDs []string) (float64, error) {
	data, err := a.payments.GraphQL(ctx, paymentsByStoresQuery, map[string]interface{}{
		"storeIds": storeIDs,
	})
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, p := range data.Get("paymentsByStores").Array() {
		total += p.Get("amount").Float()
	}
	return total, nil
}

// recentBookings returns the newest bookings by creation time, capped at
// recentBookingLimit.
func recentBookings(bookings []Booking) []Booking {
	sorted := make([]Booking, len(bookings))
	copy(sorted, bookings)

	sort.SliceStable(sorted, func(i, j int) bool {
		return bookingTime(sorted[i]).After(bookingTime(sorted[j]))
	})

	if len(sorted) > recentBookingLimit {
		sorted = sorted[:recentBookingLimit]
	}
	return sorted
}

// bookingTime parses a booking's createdAt, which arrives either as an
// RFC 3339 string or as epoch milliseconds depending on the backend's
// date serialization. Unparseable values sort last.
func bookingTime(b Booking) time.Time {
	if t, err := time.Parse(time.RFC3339, b.CreatedAt); err == nil {
		return t
	}
	if ms, err := strconv.ParseInt(b.CreatedAt, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}
