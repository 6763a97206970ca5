package model

import "time"

type Turn struct {
	ID            string     `json:"id"`
	Code          string     `json:"code"`
	BusinessDay   string     `json:"business_day"` // YYYY-MM-DD
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	ServiceName   string     `json:"service_name"`
	Status        string     `json:"status"`
	Position      int        `json:"position"`
	BarberID      *string    `json:"barber_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
}

const (
	StatusWaiting   = "waiting"
	StatusInService = "in_service"
	StatusServed    = "served"
	StatusCancelled = "cancelled"
	StatusReturned  = "returned"
	StatusNoShow    = "no_show"
)

var transitionMap = map[string][]string{
	"call_next": {StatusWaiting},
	"finish":    {StatusInService},
	"cancel":    {StatusWaiting},
	"return":    {StatusInService},
	"no_show":   {StatusWaiting, StatusInService},
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// Active statuses count against the one-turn-per-customer-per-day rule.
func IsActiveStatus(status string) bool {
	return status == StatusWaiting || status == StatusInService
}
