package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/turnohq/turnoline/libs/bizconfig"
)

func testHandler() *Handler {
	return New(nil, nil, slog.New(slog.DiscardHandler))
}

func TestValidateConfig(t *testing.T) {
	base := bizconfig.Default()

	if err := validateConfig(base); err != nil {
		t.Fatalf("default config should be valid, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*bizconfig.Config)
	}{
		{"bad open time", func(c *bizconfig.Config) { c.OpenTime = "25:00" }},
		{"bad close time", func(c *bizconfig.Config) { c.CloseTime = "nope" }},
		{"weekday out of range", func(c *bizconfig.Config) { c.OperatingWeekdays = []int{0, 7} }},
		{"zero duration", func(c *bizconfig.Config) { c.ServiceDurations = map[string]int{"Corte": 0} }},
		{"empty service name", func(c *bizconfig.Config) { c.ServiceDurations = map[string]int{"  ": 20} }},
		{"negative buffer", func(c *bizconfig.Config) { c.BufferMinutes = -1 }},
		{"negative limit", func(c *bizconfig.Config) { c.DailyTurnLimit = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			if err := validateConfig(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestPutConfigRejectsInvalidBody(t *testing.T) {
	h := testHandler()

	req := httptest.NewRequest(http.MethodPut, "/api/v1/business/config", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Config(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/v1/business/config",
		strings.NewReader(`{"open_time":"99:99","close_time":"21:00"}`))
	rec = httptest.NewRecorder()
	h.Config(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad open_time, got %d", rec.Code)
	}
}

func TestCreateBreakValidation(t *testing.T) {
	h := testHandler()

	cases := []struct {
		name string
		body string
	}{
		{"missing barber", `{"weekday":1,"start_time":"12:00","end_time":"13:00"}`},
		{"weekday out of range", `{"barber_id":"b1","weekday":9,"start_time":"12:00","end_time":"13:00"}`},
		{"bad start", `{"barber_id":"b1","weekday":1,"start_time":"noon","end_time":"13:00"}`},
		{"end before start", `{"barber_id":"b1","weekday":1,"start_time":"13:00","end_time":"12:00"}`},
		{"end equals start", `{"barber_id":"b1","weekday":1,"start_time":"13:00","end_time":"13:00"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/business/breaks", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.Breaks(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestBarbersMethodNotAllowed(t *testing.T) {
	h := testHandler()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/business/barbers", nil)
	rec := httptest.NewRecorder()
	h.Barbers(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
