// Package api provides the HTTP control surface for the auto-responder:
// the credential handshake, listener lifecycle and config endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/danhigham/autoresponder/internal/config"
	"github.com/danhigham/autoresponder/internal/domain"
	"github.com/danhigham/autoresponder/internal/handshake"
	"github.com/danhigham/autoresponder/internal/process"
)

// orchestrator is the slice of the handshake orchestrator the handlers use.
type orchestrator interface {
	SendCode(ctx context.Context, req handshake.SendCodeRequest) domain.Outcome
	Authenticate(ctx context.Context, req handshake.AuthRequest) domain.Outcome
}

// supervisor is the slice of the process lifecycle manager the handlers use.
type supervisor interface {
	StartListener(apiID, apiHash string) error
	StopListener() error
	Running() bool
}

// Handler serves the control-plane endpoints.
type Handler struct {
	orch    orchestrator
	proc    supervisor
	records *config.RecordStore
	logger  *zap.Logger
}

func NewHandler(orch orchestrator, proc supervisor, records *config.RecordStore, logger *zap.Logger) *Handler {
	return &Handler{orch: orch, proc: proc, records: records, logger: logger}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"success": false, "message": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

func (h *Handler) outcome(w http.ResponseWriter, out domain.Outcome) {
	JSON(w, http.StatusOK, out)
}

func (h *Handler) failure(w http.ResponseWriter, message string) {
	JSON(w, http.StatusOK, domain.Outcome{Success: false, Message: message})
}

type sendCodeBody struct {
	APIID       string `json:"apiId"`
	APIHash     string `json:"apiHash"`
	PhoneNumber string `json:"phoneNumber"`
}

// SendCode handles POST /send-code.
func (h *Handler) SendCode(w http.ResponseWriter, r *http.Request) {
	var body sendCodeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.failure(w, "Invalid request body")
		return
	}
	if body.APIID == "" || body.APIHash == "" || body.PhoneNumber == "" {
		h.failure(w, "API ID, API Hash and phone number are required")
		return
	}

	out := h.orch.SendCode(r.Context(), handshake.SendCodeRequest{
		APIID:       body.APIID,
		APIHash:     body.APIHash,
		PhoneNumber: body.PhoneNumber,
	})
	h.outcome(w, out)
}

type authBody struct {
	APIID       string `json:"apiId"`
	APIHash     string `json:"apiHash"`
	PhoneNumber string `json:"phoneNumber"`
	PhoneCode   string `json:"phoneCode"`
	Password    string `json:"password"`
}

// Auth handles POST /auth.
func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	var body authBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.failure(w, "Invalid request body")
		return
	}
	if body.APIID == "" || body.APIHash == "" || body.PhoneNumber == "" || body.PhoneCode == "" {
		h.failure(w, "API ID, API Hash, phone number and SMS code are required")
		return
	}

	out := h.orch.Authenticate(r.Context(), handshake.AuthRequest{
		PhoneCode: body.PhoneCode,
		Password:  body.Password,
	})
	h.outcome(w, out)
}

type startBody struct {
	APIID   string `json:"apiId"`
	APIHash string `json:"apiHash"`
}

// Start handles POST /start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var body startBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.failure(w, "Invalid request body")
		return
	}
	if body.APIID == "" || body.APIHash == "" {
		h.failure(w, "API ID and API Hash are required")
		return
	}

	err := h.proc.StartListener(body.APIID, body.APIHash)
	switch {
	case err == nil:
		h.outcome(w, domain.Outcome{Success: true, Message: "Userbot started successfully"})
	case errors.Is(err, process.ErrAlreadyRunning):
		h.failure(w, "Userbot is already running")
	case errors.Is(err, process.ErrNotAuthenticated):
		h.failure(w, "You need to authenticate first")
	default:
		h.logger.Error("start listener failed", zap.Error(err))
		h.failure(w, "Startup error: "+err.Error())
	}
}

// Stop handles POST /stop.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	err := h.proc.StopListener()
	switch {
	case err == nil:
		h.outcome(w, domain.Outcome{Success: true, Message: "Userbot stopped"})
	case errors.Is(err, process.ErrNotRunning):
		h.failure(w, "Userbot is not running")
	default:
		h.logger.Error("stop listener failed", zap.Error(err))
		h.failure(w, "Stop error: "+err.Error())
	}
}

// Status handles GET /status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status := "stopped"
	if h.proc.Running() {
		status = "running"
	}
	JSON(w, http.StatusOK, map[string]string{"status": status})
}

// Config handles GET /config.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Load()
	if err != nil {
		h.logger.Error("loading credential record failed", zap.Error(err))
		h.failure(w, "Configuration load error")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"config":  rec,
	})
}
