package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storyforge-cloud/email-capture-service/internal/domain"
	"github.com/storyforge-cloud/email-capture-service/internal/store"
)

func getStats(t *testing.T, h *StatsHandler) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	h.Stats(rec, req)
	return rec
}

func TestStats_Counts(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	s.Create(ctx, domain.NewSubscriber{Email: "a@example.com"})
	s.Create(ctx, domain.NewSubscriber{
		Email:    "b@example.com",
		Metadata: map[string]any{"migratedFrom": "emails.json"},
	})
	s.SetStatus("a@example.com", domain.StatusUnsubscribed)

	h := NewStatsHandler(s, nil)
	rec := getStats(t, h)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp["total_subscribers"] != float64(2) {
		t.Errorf("total_subscribers = %v, want 2", resp["total_subscribers"])
	}
	if resp["active_subscribers"] != float64(1) {
		t.Errorf("active_subscribers = %v, want 1", resp["active_subscribers"])
	}
	if resp["migrated_subscribers"] != float64(1) {
		t.Errorf("migrated_subscribers = %v, want 1", resp["migrated_subscribers"])
	}
	if resp["websocket_clients"] != float64(0) {
		t.Errorf("websocket_clients = %v, want 0", resp["websocket_clients"])
	}
}

func TestStats_StoreFailure(t *testing.T) {
	h := NewStatsHandler(&stubStore{statsErr: errors.New("connection refused")}, nil)

	rec := getStats(t, h)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp["error"] != "Internal server error" {
		t.Errorf("error = %q, want %q", resp["error"], "Internal server error")
	}
}
