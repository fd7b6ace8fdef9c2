package dashboard

// Store is the slice of store-service data shown on the seller dashboard.
type Store struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"reviewCount"`
}

// Booking is the slice of booking-service data shown on the seller
// dashboard. ServiceName is the booking service's serviceLabel field.
type Booking struct {
	ID          string  `json:"id"`
	UserName    string  `json:"userName"`
	ServiceName string  `json:"serviceName"`
	Weight      float64 `json:"weight"`
	TotalPrice  float64 `json:"totalPrice"`
	Status      string  `json:"status"`
	CheckInDate string  `json:"checkInDate"`
	CreatedAt   string  `json:"createdAt"`
}

// Summary is the aggregated seller dashboard response.
type Summary struct {
	Stores         []Store   `json:"stores"`
	ActiveOrders   int       `json:"activeOrders"`
	TotalRevenue   float64   `json:"totalRevenue"`
	RecentBookings []Booking `json:"recentBookings"`
}

// emptySummary returns a zeroed summary with non-nil collections so the
// JSON response carries empty arrays rather than nulls.
func emptySummary() *Summary {
	return &Summary{
		Stores:         []Store{},
		ActiveOrders:   0,
		TotalRevenue:   0,
		RecentBookings: []Booking{},
	}
}
