package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/laundryhub/gateway/internal/errors"
	"github.com/laundryhub/gateway/internal/httputil"
	"github.com/laundryhub/gateway/internal/logging"
)

type graphqlVars = map[string]interface{}

// newGraphQLServer serves canned GraphQL responses produced by respond.
// respond returns the "data" payload as a JSON fragment.
func newGraphQLServer(t *testing.T, calls *int32, respond func(vars graphqlVars) (string, error)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graphql" {
			t.Errorf("Path = %s, want /graphql", r.URL.Path)
		}
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}

		var req struct {
			Query     string      `json:"query"`
			Variables graphqlVars `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode GraphQL request: %v", err)
		}

		data, err := respond(req.Variables)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			fmt.Fprintf(w, `{"errors":[{"message":%q}]}`, err.Error())
			return
		}
		fmt.Fprintf(w, `{"data":%s}`, data)
	}))
}

func client(name, baseURL string) *httputil.ServiceClient {
	return httputil.NewServiceClient(httputil.ServiceClientConfig{Name: name, BaseURL: baseURL})
}

func testLogger() *logging.Logger {
	return logging.New("test", "error", "json")
}

func storesPayload(ids ...string) string {
	stores := make([]map[string]interface{}, len(ids))
	for i, id := range ids {
		stores[i] = map[string]interface{}{
			"id":          id,
			"name":        "Store " + id,
			"address":     "1 Wash St",
			"rating":      4.5,
			"reviewCount": 12,
		}
	}
	out, _ := json.Marshal(map[string]interface{}{"myStores": stores})
	return string(out)
}

func bookingsPayload(bookings []Booking) string {
	out, _ := json.Marshal(map[string]interface{}{"storeBookings": bookings})
	return string(out)
}

func paymentsPayload(amounts ...float64) string {
	payments := make([]map[string]interface{}, len(amounts))
	for i, amount := range amounts {
		payments[i] = map[string]interface{}{
			"id":     fmt.Sprintf("pay-%d", i),
			"amount": amount,
			"status": "PAID",
		}
	}
	out, _ := json.Marshal(map[string]interface{}{"paymentsByStores": payments})
	return string(out)
}

func TestSellerDashboard_ZeroStores(t *testing.T) {
	stores := newGraphQLServer(t, nil, func(vars graphqlVars) (string, error) {
		if vars["ownerId"] != "seller-1" {
			t.Errorf("ownerId = %v, want seller-1", vars["ownerId"])
		}
		return `{"myStores":[]}`, nil
	})
	defer stores.Close()

	var bookingCalls, paymentCalls int32
	bookings := newGraphQLServer(t, &bookingCalls, func(vars graphqlVars) (string, error) {
		return bookingsPayload(nil), nil
	})
	defer bookings.Close()
	payments := newGraphQLServer(t, &paymentCalls, func(vars graphqlVars) (string, error) {
		return paymentsPayload(), nil
	})
	defer payments.Close()

	a := New(client("Store Service", stores.URL), client("Booking Service", bookings.URL), client("Payment Service", payments.URL), testLogger())

	summary, err := a.SellerDashboard(context.Background(), "seller-1")
	if err != nil {
		t.Fatalf("SellerDashboard() error = %v", err)
	}

	if len(summary.Stores) != 0 || summary.ActiveOrders != 0 || summary.TotalRevenue != 0 || len(summary.RecentBookings) != 0 {
		t.Errorf("summary = %+v, want zeroed", summary)
	}
	if summary.Stores == nil || summary.RecentBookings == nil {
		t.Error("collections must be empty arrays, not null")
	}

	if got := atomic.LoadInt32(&bookingCalls); got != 0 {
		t.Errorf("booking calls = %d, want 0", got)
	}
	if got := atomic.LoadInt32(&paymentCalls); got != 0 {
		t.Errorf("payment calls = %d, want 0", got)
	}
}

func TestSellerDashboard_Aggregation(t *testing.T) {
	stores := newGraphQLServer(t, nil, func(vars graphqlVars) (string, error) {
		return storesPayload("s1", "s2"), nil
	})
	defer stores.Close()

	bookingsByStore := map[string][]Booking{
		"s1": {
			{ID: "b1", Status: "PENDING", CreatedAt: "2026-08-01T10:00:00Z"},
			{ID: "b2", Status: "COMPLETED", CreatedAt: "2026-08-03T10:00:00Z"},
		},
		"s2": {
			{ID: "b3", Status: "CANCELLED", CreatedAt: "2026-08-02T10:00:00Z"},
			{ID: "b4", Status: "READY", CreatedAt: "2026-08-04T10:00:00Z"},
		},
	}
	bookings := newGraphQLServer(t, nil, func(vars graphqlVars) (string, error) {
		storeID, _ := vars["storeId"].(string)
		list, ok := bookingsByStore[storeID]
		if !ok {
			return "", fmt.Errorf("unexpected storeId %q", storeID)
		}
		return bookingsPayload(list), nil
	})
	defer bookings.Close()

	payments := newGraphQLServer(t, nil, func(vars graphqlVars) (string, error) {
		ids, _ := vars["storeIds"].([]interface{})
		if len(ids) != 2 {
			t.Errorf("storeIds = %v, want [s1 s2]", ids)
		}
		return paymentsPayload(150.5, 49.5), nil
	})
	defer payments.Close()

	a := New(client("Store Service", stores.URL), client("Booking Service", bookings.URL), client("Payment Service", payments.URL), testLogger())

	summary, err := a.SellerDashboard(context.Background(), "seller-1")
	if err != nil {
		t.Fatalf("SellerDashboard() error = %v", err)
	}

	if len(summary.Stores) != 2 {
		t.Errorf("stores = %d, want 2", len(summary.Stores))
	}
	if summary.ActiveOrders != 2 {
		t.Errorf("activeOrders = %d, want 2 (PENDING + READY)", summary.ActiveOrders)
	}
	if summary.TotalRevenue != 200 {
		t.Errorf("totalRevenue = %v, want 200", summary.TotalRevenue)
	}

	if len(summary.RecentBookings) != 4 {
		t.Fatalf("recentBookings = %d, want 4", len(summary.RecentBookings))
	}
	wantOrder := []string{"b4", "b2", "b3", "b1"}
	for i, want := range wantOrder {
		if summary.RecentBookings[i].ID != want {
			t.Errorf("recentBookings[%d] = %s, want %s", i, summary.RecentBookings[i].ID, want)
		}
	}
}

func TestSellerDashboard_RecentBookingsCapped(t *testing.T) {
	stores := newGraphQLServer(t, nil, func(vars graphqlVars) (string, error) {
		return storesPayload("s1"), nil
	})
	defer stores.Close()

	var many []Booking
	for i := 0; i < 12; i++ {
		many = append(many, Booking{
			ID:        fmt.Sprintf("b%02d", i),
			Status:    "PENDING",
			CreatedAt: fmt.Sprintf("2026-08-%02dT10:00:00Z", i+1),
		})
	}
	bookings := newGraphQLServer(t, nil, func(vars graphqlVars) (string, error) {
		return bookingsPayload(many), nil
	})
	defer bookings.Close()

	payments := newGraphQLServer(t, nil, func(vars graphqlVars) (string, error) {
		return paymentsPayload(), nil
	})
	defer payments.Close()

	a := New(client("Store Service", stores.URL), client("Booking Service", bookings.URL), client("Payment Service", payments.URL), testLogger())

	summary, err := a.SellerDashboard(context.Background(), "seller-1")
	if err != nil {
		t.Fatalf("SellerDashboard() error = %v", err)
	}

	if len(summary.RecentBookings) != 5 {
		t.Fatalf("recentBookings = %d, want 5", len(summary.RecentBookings))
	}
	// Newest first: b11 down to b07.
	if summary.RecentBookings[0].ID != "b11" {
		t.Errorf("recentBookings[0] = %s, want b11", summary.RecentBookings[0].ID)
	}
	if summary.RecentBookings[4].ID != "b07" {
		t.Errorf("recentBookings[4] = %s, want b07", summary.RecentBookings[4].ID)
	}
}

func TestSellerDashboard_DownstreamFailures(t *testing.T) {
	okStores := func(vars graphqlVars) (string, error) { return storesPayload("s1"), nil }
	okBookings := func(vars graphqlVars) (string, error) { return bookingsPayload(nil), nil }
	okPayments := func(vars graphqlVars) (string, error) { return paymentsPayload(10), nil }
	fail := func(vars graphqlVars) (string, error) { return "", fmt.Errorf("database down") }

	tests := []struct {
		name     string
		stores   func(graphqlVars) (string, error)
		bookings func(graphqlVars) (string, error)
		payments func(graphqlVars) (string, error)
	}{
		{"store service fails", fail, okBookings, okPayments},
		{"booking service fails", okStores, fail, okPayments},
		{"payment service fails", okStores, okBookings, fail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := newGraphQLServer(t, nil, tt.stores)
			defer stores.Close()
			bookings := newGraphQLServer(t, nil, tt.bookings)
			defer bookings.Close()
			payments := newGraphQLServer(t, nil, tt.payments)
			defer payments.Close()

			a := New(client("Store Service", stores.URL), client("Booking Service", bookings.URL), client("Payment Service", payments.URL), testLogger())

			summary, err := a.SellerDashboard(context.Background(), "seller-1")
			if err == nil {
				t.Fatal("SellerDashboard() did not return an error")
			}
			if summary != nil {
				t.Errorf("summary = %+v, want nil (no partial results)", summary)
			}

			se := errors.GetServiceError(err)
			if se == nil {
				t.Fatal("error is not a ServiceError")
			}
			if se.HTTPStatus != http.StatusInternalServerError {
				t.Errorf("HTTPStatus = %d, want 500", se.HTTPStatus)
			}
			if se.Code != errors.CodeUpstreamUnavailable {
				t.Errorf("Code = %s, want %s", se.Code, errors.CodeUpstreamUnavailable)
			}
		})
	}
}

func TestRecentBookings_EpochMilliTimestamps(t *testing.T) {
	// Mongo-backed services serialize dates as epoch milliseconds.
	input := []Booking{
		{ID: "old", CreatedAt: "1755000000000"},
		{ID: "new", CreatedAt: "1756000000000"},
	}

	got := recentBookings(input)
	if got[0].ID != "new" || got[1].ID != "old" {
		t.Errorf("order = [%s %s], want [new old]", got[0].ID, got[1].ID)
	}
}
