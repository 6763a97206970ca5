package model

// Snapshot is the queue state for one business day, re-read from storage
// before every scheduling decision. Waiting is ordered by position, then
// created_at; InService by started_at ascending.
type Snapshot struct {
	BusinessDay string `json:"business_day"`
	Waiting     []Turn `json:"waiting"`
	InService   []Turn `json:"in_service"`
}

// Current resolves "the current turn": the in-service turn that started
// earliest, else the waiting turn at the head of the queue.
func (s Snapshot) Current() (Turn, bool) {
	if len(s.InService) > 0 {
		return s.InService[0], true
	}
	if len(s.Waiting) > 0 {
		return s.Waiting[0], true
	}
	return Turn{}, false
}

// PositionOf returns the 1-based waiting position of a code, or 0.
func (s Snapshot) PositionOf(code string) int {
	for i, t := range s.Waiting {
		if t.Code == code {
			return i + 1
		}
	}
	return 0
}
