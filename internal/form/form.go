// internal/form/form.go
package form

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cedarbackend/internal/data"
	"cedarbackend/internal/logger"
	"cedarbackend/internal/middleware"
)

// Per-IP submission throttle. Form endpoints are public, so the limit keys on
// client IP rather than session token.
var (
	ipLastSubmit = make(map[string]time.Time)
	ipSubmitMu   sync.Mutex
	submitLimit  = 10 * time.Second
)

func throttled(ip string) bool {
	ipSubmitMu.Lock()
	defer ipSubmitMu.Unlock()

	now := time.Now()
	if last, ok := ipLastSubmit[ip]; ok && now.Sub(last) < submitLimit {
		return true
	}
	ipLastSubmit[ip] = now
	return false
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
	// Website is a honeypot; humans never see the field, bots fill it.
	Website string `json:"website"`
}

type subscribeRequest struct {
	Email   string `json:"email"`
	Website string `json:"website"`
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && strings.Contains(email[at:], ".") && !strings.ContainsAny(email, " \t")
}

// ContactHandler handles POST /api/contact.
func ContactHandler(w http.ResponseWriter, r *http.Request) {
	ip := logger.GetClientIP(r)
	if throttled(ip) {
		middleware.WriteAPIError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded",
			"Too many submissions. Please wait before trying again.", "")
		return
	}

	var req contactRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request",
			"Invalid request body", err.Error())
		return
	}

	// Bots that fill the honeypot get a success response and no record.
	if req.Website != "" {
		logger.LogWarn("Contact honeypot tripped from %s", ip)
		middleware.WriteAPISuccess(w, r, map[string]bool{"ok": true})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)

	if req.Name == "" || req.Message == "" {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "validation_error",
			"Name and message are required", "")
		return
	}
	if !validEmail(req.Email) {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "validation_error",
			"A valid email is required", "")
		return
	}
	if len(req.Message) > 5000 {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "validation_error",
			"Message is too long", "")
		return
	}

	msg := data.ContactMessage{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Email:       req.Email,
		Message:     req.Message,
		SubmittedAt: time.Now(),
	}
	if err := data.SaveContactMessage(msg); err != nil {
		logger.LogError("Failed to save contact message: %v", err)
		middleware.WriteAPIError(w, r, http.StatusInternalServerError, "storage_error",
			"Could not save your message. Please try again later.", "")
		return
	}

	logger.LogInfo("Contact message %s saved from %s", msg.ID, ip)
	middleware.WriteAPISuccess(w, r, map[string]bool{"ok": true})
}

// SubscribeHandler handles POST /api/newsletter.
func SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	ip := logger.GetClientIP(r)
	if throttled(ip) {
		middleware.WriteAPIError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded",
			"Too many submissions. Please wait before trying again.", "")
		return
	}

	var req subscribeRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request",
			"Invalid request body", err.Error())
		return
	}

	if req.Website != "" {
		logger.LogWarn("Newsletter honeypot tripped from %s", ip)
		middleware.WriteAPISuccess(w, r, map[string]bool{"ok": true})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !validEmail(req.Email) {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "validation_error",
			"A valid email is required", "")
		return
	}

	sub := data.Subscriber{
		ID:           uuid.NewString(),
		Email:        req.Email,
		SubscribedAt: time.Now(),
	}
	if err := data.SaveSubscriber(sub); err != nil {
		logger.LogError("Failed to save subscriber: %v", err)
		middleware.WriteAPIError(w, r, http.StatusInternalServerError, "storage_error",
			"Could not subscribe you. Please try again later.", "")
		return
	}

	middleware.WriteAPISuccess(w, r, map[string]bool{"ok": true})
}
