package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/turnohq/turnoline/libs/bizconfig"
	"github.com/turnohq/turnoline/libs/outbox"
	"github.com/turnohq/turnoline/services/queue-service/internal/model"
	"github.com/turnohq/turnoline/services/queue-service/internal/queueorder"
	"github.com/turnohq/turnoline/services/queue-service/internal/storage"
	"github.com/turnohq/turnoline/services/queue-service/internal/turncode"
	"github.com/turnohq/turnoline/services/queue-service/internal/waitest"
)

type QueueHandler struct {
	repo       *storage.TurnRepository
	configRepo *bizconfig.Repository
	outboxRepo *outbox.Repository
	ordering   *queueorder.Service
	logger     *slog.Logger
	now        func() time.Time
}

func NewQueueHandler(repo *storage.TurnRepository, configRepo *bizconfig.Repository, outboxRepo *outbox.Repository, ordering *queueorder.Service, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{
		repo:       repo,
		configRepo: configRepo,
		outboxRepo: outboxRepo,
		ordering:   ordering,
		logger:     logger,
		now:        time.Now,
	}
}

type takeTurnRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	ServiceName   string `json:"service_name"`
}

type takeTurnResponse struct {
	Turn            model.Turn `json:"turn"`
	EstimatedWait   int        `json:"estimated_wait_minutes"`
	PeopleAhead     int        `json:"people_ahead"`
	SeriesLetter    string     `json:"series_letter"`
	EstimateIsRough bool       `json:"estimate_is_rough"`
}

func (h *QueueHandler) TakeTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req takeTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.ServiceName = strings.TrimSpace(req.ServiceName)
	if req.CustomerName == "" || req.CustomerPhone == "" || req.ServiceName == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	now := h.now()
	cfg := h.configRepo.LoadOrDefault(ctx, h.logger)

	// Past midnight inside an overnight window the shop is still serving
	// the previous calendar day's queue, so resolve the business day from
	// the window now belongs to.
	bizDay := now
	wndDay, openAt, closeAt, err := cfg.BusinessWindow(now)
	if err == nil {
		if now.Before(openAt) || !now.Before(closeAt) {
			http.Error(w, "outside business hours", http.StatusConflict)
			return
		}
		bizDay = wndDay
	}
	if !cfg.OperatesOn(bizDay.Weekday()) {
		http.Error(w, "closed today", http.StatusConflict)
		return
	}
	day := bizDay.Format("2006-01-02")

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	count, err := h.repo.CountForDay(ctx, tx, day)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	if cfg.DailyTurnLimit > 0 && count >= cfg.DailyTurnLimit {
		http.Error(w, "daily turn limit reached", http.StatusConflict)
		return
	}

	active, err := h.repo.HasActiveTurn(ctx, tx, day, req.CustomerPhone)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	if active {
		http.Error(w, "you already have an active turn today", http.StatusConflict)
		return
	}

	turn := &model.Turn{
		BusinessDay:   day,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		ServiceName:   req.ServiceName,
	}
	inserted, err := h.repo.InsertWithCode(ctx, tx, turn, bizDay)
	if err != nil {
		var exhausted turncode.CodeExhaustedError
		if errors.As(err, &exhausted) {
			h.logger.Error("turn codes exhausted", "letter", exhausted.Letter, "business_day", day)
			http.Error(w, "no more turns available today", http.StatusConflict)
			return
		}
		if errors.Is(err, storage.ErrActiveTurnExists) {
			// Lost the race with another request for the same customer.
			http.Error(w, "you already have an active turn today", http.StatusConflict)
			return
		}
		if errors.Is(err, storage.ErrAuthExpired) {
			http.Error(w, "session expired", http.StatusUnauthorized)
			return
		}
		http.Error(w, "failed to create turn", http.StatusInternalServerError)
		return
	}

	if err := h.insertTurnEvent(ctx, tx, inserted, "created"); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	snap, err := h.repo.Snapshot(ctx, day)
	estimate := 0
	ahead := 0
	if err == nil {
		estimate = waitest.ForCode(snap, waitest.Durations(cfg.ServiceDurations), inserted.Code, now)
		if pos := snap.PositionOf(inserted.Code); pos > 0 {
			ahead = pos - 1
		}
	}

	writeJSON(w, http.StatusCreated, takeTurnResponse{
		Turn:            inserted,
		EstimatedWait:   estimate,
		PeopleAhead:     ahead,
		SeriesLetter:    turncode.DayLetter(bizDay),
		EstimateIsRough: true,
	})
}

type queueResponse struct {
	Snapshot     model.Snapshot `json:"snapshot"`
	CurrentCode  string         `json:"current_code,omitempty"`
	AverageWait  int            `json:"average_wait_minutes"`
	SeriesLetter string         `json:"series_letter"`
}

func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	now := h.now()
	day := queryDay(r, h.currentBusinessDay(ctx, now))

	snap, err := h.repo.Snapshot(ctx, day)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	cfg := h.configRepo.LoadOrDefault(ctx, h.logger)

	resp := queueResponse{
		Snapshot:     snap,
		AverageWait:  waitest.FacilityWide(snap, waitest.Durations(cfg.ServiceDurations), activeBarbers(r), now),
		SeriesLetter: seriesLetter(day, now),
	}
	if current, ok := snap.Current(); ok {
		resp.CurrentCode = current.Code
	}
	writeJSON(w, http.StatusOK, resp)
}

type waitEstimateResponse struct {
	Code        string `json:"code,omitempty"`
	WaitMinutes int    `json:"wait_minutes"`
	Mode        string `json:"mode"`
}

func (h *QueueHandler) WaitEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	now := h.now()
	day := queryDay(r, h.currentBusinessDay(ctx, now))

	snap, err := h.repo.Snapshot(ctx, day)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	cfg := h.configRepo.LoadOrDefault(ctx, h.logger)
	durations := waitest.Durations(cfg.ServiceDurations)

	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code != "" {
		writeJSON(w, http.StatusOK, waitEstimateResponse{
			Code:        code,
			WaitMinutes: waitest.ForCode(snap, durations, code, now),
			Mode:        "per_position",
		})
		return
	}
	writeJSON(w, http.StatusOK, waitEstimateResponse{
		WaitMinutes: waitest.FacilityWide(snap, durations, activeBarbers(r), now),
		Mode:        "facility_wide",
	})
}

type callNextRequest struct {
	BarberID string `json:"barber_id"`
}

func (h *QueueHandler) CallNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req callNextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	now := h.now()
	day := h.currentBusinessDay(ctx, now)

	snap, err := h.repo.Snapshot(ctx, day)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	if len(snap.Waiting) == 0 {
		http.Error(w, "queue is empty", http.StatusNotFound)
		return
	}
	next := snap.Waiting[0]

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var barberID *string
	if b := strings.TrimSpace(req.BarberID); b != "" {
		barberID = &b
	}
	started, err := h.repo.StartService(ctx, tx, next.ID, barberID)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	if err := h.insertTurnEvent(ctx, tx, started, "in_service"); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, started)
}

type reorderRequest struct {
	BusinessDay string   `json:"business_day"`
	TurnIDs     []string `json:"turn_ids"`
}

type reorderResponse struct {
	Applied []model.Turn `json:"applied"`
}

func (h *QueueHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	day := strings.TrimSpace(req.BusinessDay)
	if day == "" {
		day = h.currentBusinessDay(r.Context(), h.now())
	}
	if len(req.TurnIDs) == 0 {
		http.Error(w, "turn_ids required", http.StatusBadRequest)
		return
	}

	applied, err := h.ordering.Reorder(r.Context(), day, req.TurnIDs)
	if err != nil {
		if errors.Is(err, storage.ErrAuthExpired) {
			http.Error(w, "session expired", http.StatusUnauthorized)
			return
		}
		if errors.Is(err, queueorder.ErrReorderConflict) {
			// The queue changed underneath the request; the caller
			// re-renders from the resynced order.
			http.Error(w, "queue changed, please retry", http.StatusConflict)
			return
		}
		http.Error(w, "reorder failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reorderResponse{Applied: applied})
}

type transitionRequest struct {
	TurnID string `json:"turn_id"`
}

func (h *QueueHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "finish", model.StatusServed)
}

func (h *QueueHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "no_show", model.StatusNoShow)
}

func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", model.StatusCancelled)
}

func (h *QueueHandler) Return(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "return", model.StatusReturned)
}

func (h *QueueHandler) transition(w http.ResponseWriter, r *http.Request, action, toStatus string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.TurnID) == "" {
		http.Error(w, "turn_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updated, err := h.repo.Transition(ctx, tx, req.TurnID, action, toStatus)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	if err := h.insertTurnEvent(ctx, tx, updated, toStatus); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *QueueHandler) writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrTurnNotFound):
		http.Error(w, "turn not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrInvalidState):
		http.Error(w, "turn is not in a valid state for that action", http.StatusConflict)
	case errors.Is(err, storage.ErrAuthExpired):
		http.Error(w, "session expired", http.StatusUnauthorized)
	default:
		http.Error(w, "db error", http.StatusInternalServerError)
	}
}

func (h *QueueHandler) insertTurnEvent(ctx context.Context, tx pgx.Tx, t model.Turn, change string) error {
	payload, err := json.Marshal(map[string]any{
		"turn_id":      t.ID,
		"code":         t.Code,
		"business_day": t.BusinessDay,
		"status":       t.Status,
		"change":       change,
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "turn",
		AggregateID:   t.ID,
		EventType:     "queue.turn.changed.v1",
		Payload:       payload,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryDay(r *http.Request, fallback string) string {
	if d := strings.TrimSpace(r.URL.Query().Get("date")); d != "" {
		if _, err := time.Parse("2006-01-02", d); err == nil {
			return d
		}
	}
	return fallback
}

func seriesLetter(day string, now time.Time) string {
	if d, err := time.ParseInLocation("2006-01-02", day, now.Location()); err == nil {
		return turncode.DayLetter(d)
	}
	return turncode.DayLetter(now)
}

// currentBusinessDay resolves the day the queue currently serves. Inside
// an overnight window this stays on the previous calendar day until the
// shop closes.
func (h *QueueHandler) currentBusinessDay(ctx context.Context, now time.Time) string {
	cfg := h.configRepo.LoadOrDefault(ctx, h.logger)
	if day, _, _, err := cfg.BusinessWindow(now); err == nil {
		return day.Format("2006-01-02")
	}
	return now.Format("2006-01-02")
}

func activeBarbers(r *http.Request) int {
	if v := strings.TrimSpace(r.URL.Query().Get("barbers")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 1
}
