package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/storyforge-cloud/email-capture-service/internal/domain"
	"github.com/storyforge-cloud/email-capture-service/internal/store"
	ws "github.com/storyforge-cloud/email-capture-service/internal/websocket"
)

// SubscribeHandler serves the landing page's email capture form.
type SubscribeHandler struct {
	store  store.SubscriberStore
	hub    *ws.Hub
	logger *slog.Logger
}

func NewSubscribeHandler(s store.SubscriberStore, hub *ws.Hub, logger *slog.Logger) *SubscribeHandler {
	return &SubscribeHandler{store: s, hub: hub, logger: logger}
}

type subscribeRequest struct {
	Email string `json:"email"`
}

type subscribeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Subscribe handles POST /api/subscribe. The response is always one of five
// fixed shapes: created, reactivated, invalid email, duplicate, or internal
// error. Which branch ran is visible only through those documented shapes.
func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid email")
		return
	}

	if !domain.ValidEmail(req.Email) {
		respondError(w, http.StatusBadRequest, "Invalid email")
		return
	}

	existing, err := h.store.FindByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("subscriber lookup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if existing != nil {
		if existing.Status == domain.StatusUnsubscribed {
			reactivated, err := h.store.Reactivate(r.Context(), req.Email)
			if err != nil {
				h.logger.Error("subscriber reactivation failed", "error", err)
				respondError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if reactivated == nil {
				// Row deleted between lookup and update; the request is safe
				// to retry.
				h.logger.Error("subscriber vanished during reactivation", "email", req.Email)
				respondError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			h.logger.Info("subscriber reactivated", "email", req.Email)
			h.notify(ws.EventSubscriberReactivated, req.Email, r.Header.Get("Referer"))
			respondJSON(w, http.StatusOK, subscribeResponse{Success: true, Message: "Email reactivated"})
			return
		}

		respondError(w, http.StatusConflict, "Email already exists")
		return
	}

	sub := domain.NewSubscriber{
		Email:          req.Email,
		IPAddress:      headerValue(r, "X-Forwarded-For"),
		UserAgent:      headerValue(r, "User-Agent"),
		ReferralSource: headerValue(r, "Referer"),
	}

	if _, err := h.store.Create(r.Context(), sub); err != nil {
		// A lost insert race lands here; same outcome as the pre-check.
		if errors.Is(err, store.ErrDuplicateEmail) {
			respondError(w, http.StatusConflict, "Email already exists")
			return
		}
		h.logger.Error("subscriber create failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("subscriber created", "email", req.Email)
	h.notify(ws.EventSubscriberCreated, req.Email, r.Header.Get("Referer"))
	respondJSON(w, http.StatusOK, subscribeResponse{Success: true})
}

func (h *SubscribeHandler) notify(eventType, email, referral string) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(ws.SignupEvent{
		Type:           eventType,
		Email:          email,
		ReferralSource: referral,
		Timestamp:      time.Now().UTC(),
	})
}

// headerValue returns the header stored verbatim, or nil when absent so the
// column stays NULL.
func headerValue(r *http.Request, name string) *string {
	v := r.Header.Get(name)
	if v == "" {
		return nil
	}
	return &v
}
