package models

// OrderStatus is the payment state of an order.
type OrderStatus string

const (
	OrderUnpaid  OrderStatus = "UNPAID"
	OrderPaid    OrderStatus = "PAID"
	OrderExpired OrderStatus = "EXPIRED"
)

// OrderItem is one journey inside an order.
type OrderItem struct {
	ID           int64  `json:"id"`
	JourneyID    int64  `json:"journeyId"`
	JourneyTitle string `json:"journeyTitle"`
	JourneySlug  string `json:"journeySlug"`
	Price        int    `json:"price"`
	Quantity     int    `json:"quantity"`
}

// Order is a purchase order. Timestamps are milliseconds since the epoch.
type Order struct {
	ID            int64       `json:"id"`
	OrderNumber   string      `json:"orderNumber"`
	UserID        int64       `json:"userId"`
	Username      string      `json:"username"`
	Status        OrderStatus `json:"status"`
	OriginalPrice int         `json:"originalPrice"`
	Discount      int         `json:"discount"`
	Price         int         `json:"price"`
	Items         []OrderItem `json:"items"`
	CreatedAt     int64       `json:"createdAt"`
	PaidAt        *int64      `json:"paidAt"`
	Message       string      `json:"message,omitempty"`
}

// Covers reports whether the order contains the journey.
func (o Order) Covers(journeyID int64) bool {
	for _, item := range o.Items {
		if item.JourneyID == journeyID {
			return true
		}
	}
	return false
}

// PurchasedJourney is a journey bought by the user through a paid order.
type PurchasedJourney struct {
	JourneyID     int64  `json:"journeyId"`
	JourneyTitle  string `json:"journeyTitle"`
	JourneySlug   string `json:"journeySlug"`
	CoverImageURL string `json:"coverImageUrl"`
	TeacherName   string `json:"teacherName"`
	PurchasedAt   int64  `json:"purchasedAt"`
	OrderNumber   string `json:"orderNumber"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}
