package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/turnohq/turnoline/libs/bizconfig"
	"github.com/turnohq/turnoline/libs/outbox"
	"github.com/turnohq/turnoline/services/booking-service/internal/availability"
	"github.com/turnohq/turnoline/services/booking-service/internal/blockage"
	"github.com/turnohq/turnoline/services/booking-service/internal/conflict"
	"github.com/turnohq/turnoline/services/booking-service/internal/model"
	"github.com/turnohq/turnoline/services/booking-service/internal/storage"
)

type BookingHandler struct {
	repo       *storage.BookingRepository
	configRepo *bizconfig.Repository
	blockages  blockage.Provider
	outboxRepo *outbox.Repository
	logger     *slog.Logger
	now        func() time.Time
}

func NewBookingHandler(repo *storage.BookingRepository, configRepo *bizconfig.Repository, blockages blockage.Provider, outboxRepo *outbox.Repository, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		repo:       repo,
		configRepo: configRepo,
		blockages:  blockages,
		outboxRepo: outboxRepo,
		logger:     logger,
		now:        time.Now,
	}
}

type slotItem struct {
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
}

type bookRequest struct {
	BarberID      string `json:"barber_id"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	ServiceName   string `json:"service_name"`
	StartAt       string `json:"start_at"`
}

type bookResponse struct {
	Appointment model.Appointment `json:"appointment"`
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type cancelResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	barberID := strings.TrimSpace(r.URL.Query().Get("barber_id"))
	serviceName := strings.TrimSpace(r.URL.Query().Get("service"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if barberID == "" || serviceName == "" || dateStr == "" {
		http.Error(w, "barber_id, service, and date are required", http.StatusBadRequest)
		return
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	now := h.now()
	cfg := h.configRepo.LoadOrDefault(ctx, h.logger)

	if !cfg.OperatesOn(day.Weekday()) {
		writeJSON(w, http.StatusOK, []slotItem{})
		return
	}
	openAt, closeAt, err := cfg.Window(day)
	if err != nil {
		h.logger.Error("bad operating window", "err", err)
		http.Error(w, "operating hours misconfigured", http.StatusInternalServerError)
		return
	}

	serviceDur := time.Duration(cfg.ServiceMinutes(serviceName)) * time.Minute
	buffer := time.Duration(cfg.BufferMinutes) * time.Minute
	lead := time.Duration(cfg.LeadMinutes) * time.Minute

	booked, err := h.repo.BookedIntervals(ctx, barberID, openAt, closeAt)
	if err != nil {
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}
	blocked, err := h.blockages.Blockages(ctx, barberID, openAt, closeAt)
	if err != nil {
		// Blockages are advisory: the insert still races through the
		// exclusion constraint, so degrade to appointments only.
		h.logger.Warn("blockage read failed, slots computed from appointments only", "err", err)
		blocked = nil
	}

	// Past midnight inside an overnight window, now still belongs to the
	// previous calendar day's business day, so compare business days
	// rather than calendar days to keep the lead filter active.
	nowDay, _, _, bwErr := cfg.BusinessWindow(now)
	if bwErr != nil {
		nowDay = now
	}
	isToday := dateStr == nowDay.Format("2006-01-02")
	starts := availability.ComputeSlots(openAt, closeAt, serviceDur, buffer, lead, booked, blocked, isToday, now)

	items := make([]slotItem, 0, len(starts))
	for _, s := range starts {
		items = append(items, slotItem{
			StartAt: s.Format(time.RFC3339),
			EndAt:   s.Add(serviceDur).Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BarberID = strings.TrimSpace(req.BarberID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.ServiceName = strings.TrimSpace(req.ServiceName)
	if req.BarberID == "" || req.CustomerName == "" || req.CustomerPhone == "" || req.ServiceName == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		http.Error(w, "invalid start_at", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	now := h.now()
	cfg := h.configRepo.LoadOrDefault(ctx, h.logger)

	// A slot after midnight belongs to the business day whose window
	// opened the evening before, so the window is resolved from the
	// slot itself rather than its calendar day.
	day, openAt, closeAt, err := cfg.BusinessWindow(startAt)
	if err != nil {
		http.Error(w, "operating hours misconfigured", http.StatusInternalServerError)
		return
	}
	if !cfg.OperatesOn(day.Weekday()) {
		http.Error(w, "closed on that day", http.StatusUnprocessableEntity)
		return
	}

	serviceDur := time.Duration(cfg.ServiceMinutes(req.ServiceName)) * time.Minute
	buffer := time.Duration(cfg.BufferMinutes) * time.Minute
	endAt := startAt.Add(serviceDur)

	if startAt.Before(openAt) || endAt.After(closeAt) {
		http.Error(w, "requested time is outside opening hours", http.StatusUnprocessableEntity)
		return
	}
	if startAt.Before(now.Add(time.Duration(cfg.LeadMinutes) * time.Minute)) {
		http.Error(w, "requested time is too soon", http.StatusUnprocessableEntity)
		return
	}

	// Pre-check against current bookings and blockages for a friendly
	// rejection; the exclusion constraint remains the source of truth
	// for races.
	booked, err := h.repo.BookedIntervals(ctx, req.BarberID, openAt, closeAt)
	if err != nil {
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}
	if blocked, err := h.blockages.Blockages(ctx, req.BarberID, openAt, closeAt); err == nil {
		booked = append(booked, blocked...)
	}
	if !conflict.IsFree(startAt, endAt, booked, buffer) {
		http.Error(w, "slot unavailable, please pick another time", http.StatusConflict)
		return
	}

	// One appointment per customer per business day means per operating
	// window; appointments only ever start inside a window.
	taken, err := h.repo.HasActiveForDay(ctx, req.CustomerPhone, openAt, closeAt)
	if err != nil {
		http.Error(w, "failed to check existing appointments", http.StatusInternalServerError)
		return
	}
	if taken {
		http.Error(w, "you already have an appointment that day", http.StatusConflict)
		return
	}

	appt := &model.Appointment{
		BarberID:      req.BarberID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		ServiceName:   req.ServiceName,
		StartAt:       startAt,
		EndAt:         endAt,
		Status:        model.StatusScheduled,
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.Create(ctx, tx, appt)
	if err != nil {
		h.writeBookError(w, err)
		return
	}
	appt.ID = id
	appt.CreatedAt = now

	if err := h.insertAppointmentEvent(ctx, tx, *appt, "created"); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, bookResponse{Appointment: *appt})
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.writeBookError(w, err)
		return
	}

	if appt.Status == model.StatusCancelled && appt.CancelledAt != nil {
		writeJSON(w, http.StatusOK, cancelResponse{
			AppointmentID: appt.ID,
			Status:        model.StatusCancelled,
			CancelledAt:   appt.CancelledAt.UTC().Format(time.RFC3339),
		})
		return
	}
	if appt.Status != model.StatusScheduled {
		http.Error(w, "appointment cannot be cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.repo.Cancel(ctx, tx, appt.ID, req.Reason)
	if err != nil {
		h.writeBookError(w, err)
		return
	}
	appt.Status = model.StatusCancelled
	appt.CancelledAt = &cancelledAt
	appt.CancelReason = req.Reason

	if err := h.insertAppointmentEvent(ctx, tx, appt, "cancelled"); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, cancelResponse{
		AppointmentID: appt.ID,
		Status:        model.StatusCancelled,
		CancelledAt:   cancelledAt.UTC().Format(time.RFC3339),
	})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := h.now()
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		dateStr = now.Format("2006-01-02")
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	barberID := strings.TrimSpace(r.URL.Query().Get("barber_id"))

	appts, err := h.repo.ListForDay(r.Context(), day, day.AddDate(0, 0, 1), barberID)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

func (h *BookingHandler) writeBookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrSlotUnavailable):
		http.Error(w, "slot unavailable, please pick another time", http.StatusConflict)
	case errors.Is(err, storage.ErrDailyBookingExists):
		http.Error(w, "you already have an appointment that day", http.StatusConflict)
	case errors.Is(err, storage.ErrAuthExpired):
		http.Error(w, "session expired, please sign in again", http.StatusUnauthorized)
	default:
		h.logger.Error("booking write failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *BookingHandler) insertAppointmentEvent(ctx context.Context, tx pgx.Tx, a model.Appointment, change string) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": a.ID,
		"barber_id":      a.BarberID,
		"service_name":   a.ServiceName,
		"start_at":       a.StartAt.UTC().Format(time.RFC3339),
		"end_at":         a.EndAt.UTC().Format(time.RFC3339),
		"status":         a.Status,
		"change":         change,
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     "booking.appointment.changed.v1",
		Payload:       payload,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
