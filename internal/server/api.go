package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/usher/internal/pin"
	"github.com/desertthunder/usher/internal/shared"
	"github.com/desertthunder/usher/internal/tasks"
)

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorBody is the uniform error envelope for all API endpoints.
type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// RedeemHandler serves public invitation redemption.
// Implements the Handler interface for registration with a Router.
type RedeemHandler struct {
	engine tasks.Orchestrator
	logger *log.Logger
}

// NewRedeemHandler creates a redemption handler backed by the given orchestrator.
func NewRedeemHandler(engine tasks.Orchestrator, logger *log.Logger) *RedeemHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &RedeemHandler{engine: engine, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *RedeemHandler) Routes() []string {
	return []string{"/api/redeem"}
}

// redeemStatus maps a redemption error code onto an HTTP status.
//
// Validation failures are client errors; conflicts are conflicts; anything
// the providers broke on is a bad gateway, since the fault is upstream.
func redeemStatus(code string) int {
	switch code {
	case tasks.ReasonNotFound:
		return http.StatusNotFound
	case tasks.ReasonDisabled, tasks.ReasonExpired, tasks.ReasonMaxUses:
		return http.StatusGone
	case tasks.ErrorCodeUsernameTaken, tasks.ErrorCodeAlreadyExists:
		return http.StatusConflict
	case tasks.ErrorCodeEmailRequired:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// ServeHTTP handles POST /api/redeem.
//
// Decodes the redemption request, runs the orchestrator, and maps the result
// onto an HTTP status. The response body is always the full [tasks.RedeemResult]
// so callers see rollback problems too.
func (h *RedeemHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req tasks.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" || req.Username == "" {
		writeError(w, http.StatusBadRequest, "code and username are required")
		return
	}

	result, err := h.engine.Redeem(r.Context(), nil, req)
	if err != nil {
		h.logger.Error("redemption failed", "code", req.Code, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if !result.Success {
		writeJSON(w, redeemStatus(result.ErrorCode), result)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// SyncHandler serves read-only drift reports for a single server.
type SyncHandler struct {
	engine tasks.Orchestrator
	logger *log.Logger
}

// NewSyncHandler creates a sync handler backed by the given orchestrator.
func NewSyncHandler(engine tasks.Orchestrator, logger *log.Logger) *SyncHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SyncHandler{engine: engine, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *SyncHandler) Routes() []string {
	return []string{"/api/sync"}
}

// ServeHTTP handles GET /api/sync?server={id}.
func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	serverID := r.URL.Query().Get("server")
	if serverID == "" {
		writeError(w, http.StatusBadRequest, "server query parameter is required")
		return
	}

	result, err := h.engine.Sync(r.Context(), nil, serverID)
	if errors.Is(err, shared.ErrServerNotFound) {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}
	if err != nil {
		h.logger.Error("sync failed", "server_id", serverID, "error", err)
		writeError(w, http.StatusBadGateway, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// PinHandler serves the Plex PIN authentication flow over HTTP.
//
// POST /api/pins creates a pin; GET /api/pins/check?id={pin_id} reports
// whether the pin has been claimed. Clients are expected to poll check at
// a polite interval until the pin authenticates or expires.
type PinHandler struct {
	pins   *pin.Service
	logger *log.Logger
}

// NewPinHandler creates a PIN handler backed by the given pin service.
func NewPinHandler(pins *pin.Service, logger *log.Logger) *PinHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PinHandler{pins: pins, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *PinHandler) Routes() []string {
	return []string{"/api/pins", "/api/pins/check"}
}

// ServeHTTP dispatches between pin creation and pin checking by path.
func (h *PinHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/pins":
		h.create(w, r)
	case "/api/pins/check":
		h.check(w, r)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *PinHandler) create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	created, err := h.pins.CreatePin(r.Context())
	if err != nil {
		h.logger.Error("pin creation failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to create pin")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *PinHandler) check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pinID := r.URL.Query().Get("id")
	if pinID == "" {
		writeError(w, http.StatusBadRequest, "id query parameter is required")
		return
	}

	result, err := h.pins.CheckPin(r.Context(), pinID)
	switch {
	case errors.Is(err, shared.ErrPinNotFound):
		writeError(w, http.StatusNotFound, "pin not found")
		return
	case errors.Is(err, shared.ErrPinExpired):
		writeError(w, http.StatusGone, "pin expired")
		return
	case err != nil:
		h.logger.Error("pin check failed", "pin_id", pinID, "error", err)
		writeError(w, http.StatusBadGateway, "pin check failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HealthHandler reports service liveness and database reachability.
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler creates a health handler probing the given database.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Routes returns the HTTP routes this handler serves.
func (h *HealthHandler) Routes() []string {
	return []string{"/health"}
}

type healthBody struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// ServeHTTP handles GET /health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body := healthBody{Status: "ok", Database: "ok"}
	status := http.StatusOK

	if err := h.db.PingContext(r.Context()); err != nil {
		body.Status = "degraded"
		body.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, body)
}

// New assembles the full API router with request logging applied to every route.
func New(db *sql.DB, engine tasks.Orchestrator, pins *pin.Service, logger *log.Logger) *BasicRouter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	router := NewBasicRouter()
	router.Use(LogRequests(logger))
	router.Handler(NewRedeemHandler(engine, logger))
	router.Handler(NewSyncHandler(engine, logger))
	router.Handler(NewPinHandler(pins, logger))
	router.Handler(NewHealthHandler(db))
	return router
}
