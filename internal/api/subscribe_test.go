package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/storyforge-cloud/email-capture-service/internal/domain"
	"github.com/storyforge-cloud/email-capture-service/internal/store"
)

func setupSubscribeHandler(t *testing.T) (*SubscribeHandler, *store.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := store.NewMemory()
	return NewSubscribeHandler(s, nil, logger), s
}

func postSubscribe(t *testing.T, h *SubscribeHandler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.Subscribe(rec, req)
	return rec
}

func TestSubscribe_Created(t *testing.T) {
	h, s := setupSubscribeHandler(t)

	rec := postSubscribe(t, h, `{"email":"test@test.com"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp["success"] != true {
		t.Errorf("success = %v, want true", resp["success"])
	}
	if _, hasMessage := resp["message"]; hasMessage {
		t.Error("plain creation should not carry a message")
	}

	sub, _ := s.FindByEmail(context.Background(), "test@test.com")
	if sub == nil {
		t.Fatal("subscriber not stored")
	}
	if sub.Status != domain.StatusActive {
		t.Errorf("status = %q, want active", sub.Status)
	}
}

func TestSubscribe_ThenConflict(t *testing.T) {
	h, _ := setupSubscribeHandler(t)

	first := postSubscribe(t, h, `{"email":"test@test.com"}`, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.Code)
	}

	second := postSubscribe(t, h, `{"email":"test@test.com"}`, nil)
	if second.Code != http.StatusConflict {
		t.Fatalf("second status = %d, want 409", second.Code)
	}

	var resp map[string]string
	json.Unmarshal(second.Body.Bytes(), &resp)
	if resp["error"] != "Email already exists" {
		t.Errorf("error = %q, want %q", resp["error"], "Email already exists")
	}
}

func TestSubscribe_Reactivated(t *testing.T) {
	h, s := setupSubscribeHandler(t)
	ctx := context.Background()

	s.Create(ctx, domain.NewSubscriber{
		Email:        "back@test.com",
		SubscribedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	s.SetStatus("back@test.com", domain.StatusUnsubscribed)

	before := time.Now().UTC()
	rec := postSubscribe(t, h, `{"email":"back@test.com"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["success"] != true {
		t.Errorf("success = %v, want true", resp["success"])
	}
	if resp["message"] != "Email reactivated" {
		t.Errorf("message = %v, want %q", resp["message"], "Email reactivated")
	}

	sub, _ := s.FindByEmail(ctx, "back@test.com")
	if sub.Status != domain.StatusActive {
		t.Errorf("status = %q, want active", sub.Status)
	}
	if sub.SubscribedAt.Before(before) {
		t.Errorf("subscribed_at = %v, want >= call time %v", sub.SubscribedAt, before)
	}
}

func TestSubscribe_InvalidEmail(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing at sign", `{"email":"not-an-email"}`},
		{"no dot after at", `{"email":"user@example"}`},
		{"empty email", `{"email":""}`},
		{"missing field", `{}`},
		{"email with spaces", `{"email":"a b@example.com"}`},
		{"malformed body", `{"email":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s := setupSubscribeHandler(t)

			rec := postSubscribe(t, h, tt.body, nil)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}

			var resp map[string]string
			json.Unmarshal(rec.Body.Bytes(), &resp)
			if resp["error"] != "Invalid email" {
				t.Errorf("error = %q, want %q", resp["error"], "Invalid email")
			}

			// Validation failures must not touch the store.
			count, _ := s.Count(context.Background())
			if count != 0 {
				t.Errorf("store writes = %d, want 0", count)
			}
		})
	}
}

func TestSubscribe_ProvenanceHeadersStoredVerbatim(t *testing.T) {
	h, s := setupSubscribeHandler(t)

	postSubscribe(t, h, `{"email":"test@test.com"}`, map[string]string{
		"X-Forwarded-For": "203.0.113.9, 10.0.0.1",
		"User-Agent":      "Mozilla/5.0 (test)",
		"Referer":         "https://storyforge.cloud/?utm_source=x",
	})

	sub, _ := s.FindByEmail(context.Background(), "test@test.com")
	if sub == nil {
		t.Fatal("subscriber not stored")
	}
	if sub.IPAddress == nil || *sub.IPAddress != "203.0.113.9, 10.0.0.1" {
		t.Errorf("ip_address = %v, want the forwarded-for header verbatim", sub.IPAddress)
	}
	if sub.UserAgent == nil || *sub.UserAgent != "Mozilla/5.0 (test)" {
		t.Errorf("user_agent = %v, want the header verbatim", sub.UserAgent)
	}
	if sub.ReferralSource == nil || *sub.ReferralSource != "https://storyforge.cloud/?utm_source=x" {
		t.Errorf("referral_source = %v, want the referer verbatim", sub.ReferralSource)
	}
}

func TestSubscribe_MissingHeadersStoredAsNull(t *testing.T) {
	h, s := setupSubscribeHandler(t)

	postSubscribe(t, h, `{"email":"bare@test.com"}`, nil)

	sub, _ := s.FindByEmail(context.Background(), "bare@test.com")
	if sub == nil {
		t.Fatal("subscriber not stored")
	}
	if sub.IPAddress != nil {
		t.Errorf("ip_address = %v, want nil", sub.IPAddress)
	}
	if sub.ReferralSource != nil {
		t.Errorf("referral_source = %v, want nil", sub.ReferralSource)
	}
}

func TestSubscribe_ActiveDuplicateNotMutated(t *testing.T) {
	h, s := setupSubscribeHandler(t)
	ctx := context.Background()

	created, _ := s.Create(ctx, domain.NewSubscriber{
		Email:        "keep@test.com",
		SubscribedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	rec := postSubscribe(t, h, `{"email":"keep@test.com"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	sub, _ := s.FindByEmail(ctx, "keep@test.com")
	if !sub.SubscribedAt.Equal(created.SubscribedAt) {
		t.Errorf("subscribed_at changed on conflict: %v -> %v", created.SubscribedAt, sub.SubscribedAt)
	}
}

// stubStore scripts each SubscriberStore method so tests can reach branches
// the in-memory store never takes, like an insert losing its race after a
// clean pre-check.
type stubStore struct {
	findResult       *domain.Subscriber
	findErr          error
	createErr        error
	reactivateResult *domain.Subscriber
	reactivateErr    error
	statsErr         error
}

func (s *stubStore) FindByEmail(context.Context, string) (*domain.Subscriber, error) {
	return s.findResult, s.findErr
}

func (s *stubStore) Create(_ context.Context, sub domain.NewSubscriber) (*domain.Subscriber, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &domain.Subscriber{Email: sub.Email, Status: domain.StatusActive}, nil
}

func (s *stubStore) Reactivate(context.Context, string) (*domain.Subscriber, error) {
	return s.reactivateResult, s.reactivateErr
}

func (s *stubStore) Count(context.Context) (int, error) {
	return 0, nil
}

func (s *stubStore) Stats(context.Context) (*store.SubscriberStats, error) {
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	return &store.SubscriberStats{}, nil
}

func stubSubscribeHandler(t *testing.T, s *stubStore) *SubscribeHandler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	return NewSubscribeHandler(s, nil, logger)
}

func TestSubscribe_LostInsertRaceReturnsConflict(t *testing.T) {
	// Lookup sees nothing, but a concurrent signup wins the insert: the
	// unique constraint surfaces as a duplicate and the caller gets the same
	// conflict as the pre-checked path.
	h := stubSubscribeHandler(t, &stubStore{
		findResult: nil,
		createErr:  store.ErrDuplicateEmail,
	})

	rec := postSubscribe(t, h, `{"email":"raced@test.com"}`, nil)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp["error"] != "Email already exists" {
		t.Errorf("error = %q, want %q", resp["error"], "Email already exists")
	}
}

func TestSubscribe_StoreFailuresReturnInternalError(t *testing.T) {
	unsubscribed := &domain.Subscriber{
		Email:  "back@test.com",
		Status: domain.StatusUnsubscribed,
	}
	storeDown := errors.New("connection refused")

	tests := []struct {
		name string
		stub *stubStore
	}{
		{"lookup fails", &stubStore{findErr: storeDown}},
		{"create fails", &stubStore{createErr: storeDown}},
		{"reactivate fails", &stubStore{findResult: unsubscribed, reactivateErr: storeDown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := stubSubscribeHandler(t, tt.stub)

			rec := postSubscribe(t, h, `{"email":"back@test.com"}`, nil)

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
			// Store detail stays operator-side; the body is the fixed shape only.
			if len(resp) != 1 {
				t.Errorf("response has %d fields, want only the error message", len(resp))
			}
		})
	}
}

func TestSubscribe_ReactivateVanishedRow(t *testing.T) {
	// The row was deleted between lookup and update. That is not a success;
	// the caller gets the retryable internal error shape.
	h := stubSubscribeHandler(t, &stubStore{
		findResult: &domain.Subscriber{
			Email:  "gone@test.com",
			Status: domain.StatusUnsubscribed,
		},
		reactivateResult: nil,
	})

	rec := postSubscribe(t, h, `{"email":"gone@test.com"}`, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["error"] != "Internal server error" {
		t.Errorf("error = %q, want %q", resp["error"], "Internal server error")
	}
}

func TestSubscribe_CaseSensitiveLookup(t *testing.T) {
	h, _ := setupSubscribeHandler(t)

	first := postSubscribe(t, h, `{"email":"Case@Test.com"}`, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.Code)
	}

	// Different casing is a different address; no conflict.
	second := postSubscribe(t, h, `{"email":"case@test.com"}`, nil)
	if second.Code != http.StatusOK {
		t.Fatalf("second status = %d, want 200", second.Code)
	}
}
