package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/turnohq/turnoline/libs/bizconfig"
	"github.com/turnohq/turnoline/services/business-service/internal/storage"
)

// Handler exposes the admin surface for the shop's scheduling setup: the
// business configuration row, the barber roster and per-barber breaks.
type Handler struct {
	repo    *storage.Repository
	cfgRepo *bizconfig.Repository
	logger  *slog.Logger
}

func New(repo *storage.Repository, cfgRepo *bizconfig.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, cfgRepo: cfgRepo, logger: logger}
}

func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getConfig(w, r)
	case http.MethodPut:
		h.putConfig(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.cfgRepo.Load(r.Context())
	usingDefaults := errors.Is(err, bizconfig.ErrUnavailable)
	if err != nil && !usingDefaults {
		http.Error(w, "failed to load config", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"config":         cfg,
		"using_defaults": usingDefaults,
	})
}

func (h *Handler) putConfig(w http.ResponseWriter, r *http.Request) {
	var cfg bizconfig.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := validateConfig(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.repo.SaveConfig(r.Context(), cfg); err != nil {
		h.logger.Error("config save failed", "err", err)
		http.Error(w, "failed to save config", http.StatusInternalServerError)
		return
	}
	h.logger.Info("business config updated",
		"open", cfg.OpenTime, "close", cfg.CloseTime, "daily_limit", cfg.DailyTurnLimit)
	writeJSON(w, http.StatusOK, map[string]any{"config": cfg})
}

func validateConfig(cfg bizconfig.Config) error {
	if _, _, err := bizconfig.ParseClock(cfg.OpenTime); err != nil {
		return fmt.Errorf("open_time: %w", err)
	}
	if _, _, err := bizconfig.ParseClock(cfg.CloseTime); err != nil {
		return fmt.Errorf("close_time: %w", err)
	}
	for _, d := range cfg.OperatingWeekdays {
		if d < 0 || d > 6 {
			return fmt.Errorf("operating_weekdays: %d out of range", d)
		}
	}
	for name, mins := range cfg.ServiceDurations {
		if strings.TrimSpace(name) == "" {
			return errors.New("service_durations: empty service name")
		}
		if mins <= 0 {
			return fmt.Errorf("service_durations: %q must be positive", name)
		}
	}
	if cfg.BufferMinutes < 0 || cfg.LeadMinutes < 0 || cfg.DailyTurnLimit < 0 {
		return errors.New("buffer_minutes, lead_minutes and daily_turn_limit must not be negative")
	}
	return nil
}

func (h *Handler) Barbers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		barbers, err := h.repo.ListBarbers(r.Context(), r.URL.Query().Get("active") == "true")
		if err != nil {
			http.Error(w, "failed to list barbers", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"barbers": barbers})
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		b, err := h.repo.CreateBarber(r.Context(), strings.TrimSpace(req.Name))
		if errors.Is(err, storage.ErrDuplicateName) {
			http.Error(w, "barber name already exists", http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, "failed to create barber", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, b)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) BarberStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ID     string `json:"id"`
		Active bool   `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	b, err := h.repo.SetBarberActive(r.Context(), req.ID, req.Active)
	if errors.Is(err, storage.ErrBarberNotFound) {
		http.Error(w, "barber not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to update barber", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) Breaks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		breaks, err := h.repo.ListBreaks(r.Context(), r.URL.Query().Get("barber_id"))
		if err != nil {
			http.Error(w, "failed to list breaks", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"breaks": breaks})
	case http.MethodPost:
		h.createBreak(w, r)
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "id is required", http.StatusBadRequest)
			return
		}
		err := h.repo.DeleteBreak(r.Context(), id)
		if errors.Is(err, storage.ErrBreakNotFound) {
			http.Error(w, "break not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "failed to delete break", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createBreak(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BarberID  string `json:"barber_id"`
		Weekday   int    `json:"weekday"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.BarberID == "" {
		http.Error(w, "barber_id is required", http.StatusBadRequest)
		return
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		http.Error(w, "weekday must be 0-6", http.StatusBadRequest)
		return
	}
	sh, sm, err := bizconfig.ParseClock(req.StartTime)
	if err != nil {
		http.Error(w, "start_time must be HH:MM", http.StatusBadRequest)
		return
	}
	eh, em, err := bizconfig.ParseClock(req.EndTime)
	if err != nil {
		http.Error(w, "end_time must be HH:MM", http.StatusBadRequest)
		return
	}
	if eh*60+em <= sh*60+sm {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}
	br, err := h.repo.CreateBreak(r.Context(), req.BarberID, req.Weekday, req.StartTime, req.EndTime)
	if errors.Is(err, storage.ErrBarberNotFound) {
		http.Error(w, "barber not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to create break", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, br)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
