package model

import "time"

type Appointment struct {
	ID            string     `json:"id"`
	BarberID      string     `json:"barber_id"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	ServiceName   string     `json:"service_name"`
	StartAt       time.Time  `json:"start_at"`
	EndAt         time.Time  `json:"end_at"`
	Status        string     `json:"status"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CancelReason  string     `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

const (
	StatusScheduled = "scheduled"
	StatusInService = "in_service"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// BreakWindow is a recurring staff break: a clock interval on one weekday.
type BreakWindow struct {
	Weekday int    `json:"weekday"` // 0 = Sunday
	Start   string `json:"start"`   // "12:00"
	End     string `json:"end"`     // "13:00"
}
