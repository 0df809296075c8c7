package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fx-screener/internal/repository"
	"fx-screener/internal/usecase"
)

// TestSender pushes a test message to every registered device.
type TestSender interface {
	SendTestNotification(ctx context.Context) (int, error)
}

type TokenHandler struct {
	tokenRepo *repository.TokenRepository
	sender    TestSender
}

func NewTokenHandler(tokenRepo *repository.TokenRepository, sender TestSender) *TokenHandler {
	return &TokenHandler{
		tokenRepo: tokenRepo,
		sender:    sender,
	}
}

type RegisterTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type TokenResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func decodeTokenRequest(w http.ResponseWriter, r *http.Request) (RegisterTokenRequest, bool) {
	var req RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "Token is required")
		return req, false
	}
	return req, true
}

// HandleRegisterToken handles POST /api/tokens/register
func (h *TokenHandler) HandleRegisterToken(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTokenRequest(w, r)
	if !ok {
		return
	}

	message := "Token refreshed"
	if h.tokenRepo.RegisterToken(req.Token, req.Platform, time.Now()) {
		message = "Token registered successfully"
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		Success: true,
		Message: message,
		Count:   h.tokenRepo.GetTokenCount(),
	})
}

// HandleUnregisterToken handles POST /api/tokens/unregister
func (h *TokenHandler) HandleUnregisterToken(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTokenRequest(w, r)
	if !ok {
		return
	}

	h.tokenRepo.UnregisterToken(req.Token)

	writeJSON(w, http.StatusOK, TokenResponse{
		Success: true,
		Message: "Token unregistered successfully",
		Count:   h.tokenRepo.GetTokenCount(),
	})
}

// HandleGetTokenCount handles GET /api/tokens/count
func (h *TokenHandler) HandleGetTokenCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TokenResponse{
		Success: true,
		Message: "Token count retrieved",
		Count:   h.tokenRepo.GetTokenCount(),
	})
}

// SendTestNotification handles POST /api/tokens/test
func (h *TokenHandler) SendTestNotification(w http.ResponseWriter, r *http.Request) {
	count, err := h.sender.SendTestNotification(r.Context())
	switch {
	case errors.Is(err, usecase.ErrNotificationsDisabled):
		writeJSON(w, http.StatusOK, TokenResponse{Success: false, Message: "FCM not configured"})
	case errors.Is(err, usecase.ErrNoDevices):
		writeJSON(w, http.StatusOK, TokenResponse{Success: false, Message: "No registered devices"})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, TokenResponse{Success: false, Message: "Failed to send notification: " + err.Error(), Count: count})
	default:
		writeJSON(w, http.StatusOK, TokenResponse{Success: true, Message: "Test notification sent successfully", Count: count})
	}
}
