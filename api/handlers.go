/*
handlers.go - HTTP API handlers for the seed reward service

PURPOSE:
  Exposes the ledger, the accrual engine, and the statistics service via
  REST. Handles HTTP request/response, JSON serialization, and delegates
  to domain logic.

ENDPOINTS:
  Member:
    POST   /reward/earn               Process a drive event (accrual rules)
    POST   /reward/use                Spend seeds
    GET    /reward/users/balance      Current balance
    GET    /reward/users/history      Own ledger history
    GET    /reward/entries/{id}       Single entry lookup

  Admin:
    GET    /reward/stats/total        Cumulative issuance + change rate
    GET    /reward/stats/monthly      This month's issuance + change rate
    GET    /reward/stats/daily        Today's issuance + change rate
    GET    /reward/stats/per-user     Per-user average + change rate
    GET    /reward/monthly-stats      12-month issuance trend
    GET    /reward/by-reason/total    Reason breakdown, current year
    GET    /reward/by-reason/monthly  Reason breakdown, ?month=YYYY-MM
    GET    /reward/history/all        Full ledger, paged
    GET    /reward/filter             Filtered search (email/description/dates)
    POST   /reward/by-drive           Seed totals per drive

  Operational:
    GET    /healthz                   Liveness
    GET    /metrics                   Prometheus metrics

IDENTITY:
  Member endpoints read the caller's user id from the X-User-Id header,
  set by the gateway after authentication. A missing header is a 401.

ERROR HANDLING:
  Errors are returned in the response envelope with appropriate status:
  - 400: Validation errors, invalid input
  - 401: Missing identity header
  - 402: Insufficient balance
  - 404: Resource not found
  - 409: Concurrent update exhaustion
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/greenride/seed-engine/accrual"
	"github.com/greenride/seed-engine/seed"
	"github.com/greenride/seed-engine/stats"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Seeds   *seed.Service
	Accrual *accrual.Engine
	Stats   *stats.Service
	Log     zerolog.Logger
}

// NewHandler creates a handler over the wired services.
func NewHandler(seeds *seed.Service, engine *accrual.Engine, statsSvc *stats.Service, log zerolog.Logger) *Handler {
	return &Handler{
		Seeds:   seeds,
		Accrual: engine,
		Stats:   statsSvc,
		Log:     log.With().Str("component", "api").Logger(),
	}
}

// userID extracts the authenticated caller from the identity header.
func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// Earn processes a drive event through the accrual rules.
// POST /reward/earn
func (h *Handler) Earn(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-Id header", nil)
		return
	}

	var req EarnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	granted, err := h.Accrual.CalculateAndEarn(r.Context(), accrual.Event{
		UserID:         uid,
		DriveID:        req.DriveID,
		DrivingTime:    req.DrivingTime,
		CompositeScore: req.CompositeScore,
		LastProfile:    req.LastProfile,
		CurrentProfile: req.CurrentProfile,
	})
	if err != nil && len(granted) == 0 {
		h.writeDomainError(w, "failed to process drive event", err)
		return
	}
	if err != nil {
		// Partial success: some rules granted, others failed. The grants
		// stand; the failures were already logged by the engine.
		h.Log.Warn().Err(err).Str("user_id", uid).Msg("drive event partially processed")
	}

	var total int64
	for _, g := range granted {
		total += g.Amount
	}
	writeData(w, http.StatusOK, EarnResponseDTO{Granted: toEntryDTOs(granted), Total: total})
}

// Use spends seeds from the caller's balance.
// POST /reward/use
func (h *Handler) Use(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-Id header", nil)
		return
	}

	var req UseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	entry, err := h.Seeds.Use(r.Context(), uid, req.Amount, req.Description)
	if err != nil {
		h.writeDomainError(w, "failed to use seeds", err)
		return
	}
	writeData(w, http.StatusOK, toEntryDTO(entry))
}

// Balance returns the caller's current balance.
// GET /reward/users/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-Id header", nil)
		return
	}

	balance, err := h.Seeds.Balance(r.Context(), uid)
	if err != nil {
		h.writeDomainError(w, "failed to read balance", err)
		return
	}
	writeData(w, http.StatusOK, BalanceDTO{UserID: uid, Balance: balance})
}

// History returns the caller's ledger history, newest first.
// GET /reward/users/history?page=0&size=10
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-Id header", nil)
		return
	}

	entries, info, err := h.Seeds.History(r.Context(), uid, pageRequest(r))
	if err != nil {
		h.writeDomainError(w, "failed to read history", err)
		return
	}
	writeData(w, http.StatusOK, PageDTO{Content: toEntryDTOs(entries), Page: info})
}

// Entry returns one ledger entry.
// GET /reward/entries/{id}
func (h *Handler) Entry(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(chi.URLParam(r, "id"), "SEED_")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id", err)
		return
	}

	entry, err := h.Seeds.Entry(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "failed to read entry", err)
		return
	}
	writeData(w, http.StatusOK, toEntryDTO(entry))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TotalStats returns cumulative issuance with its change rate.
// GET /reward/stats/total
func (h *Handler) TotalStats(w http.ResponseWriter, r *http.Request) {
	stat, err := h.Stats.TotalIssued(r.Context())
	if err != nil {
		h.writeDomainError(w, "failed to compute total stats", err)
		return
	}
	writeData(w, http.StatusOK, stat)
}

// MonthlyStats returns this month's issuance with its change rate.
// GET /reward/stats/monthly
func (h *Handler) MonthlyStats(w http.ResponseWriter, r *http.Request) {
	stat, err := h.Stats.MonthlyIssued(r.Context())
	if err != nil {
		h.writeDomainError(w, "failed to compute monthly stats", err)
		return
	}
	writeData(w, http.StatusOK, stat)
}

// DailyStats returns today's issuance with its change rate.
// GET /reward/stats/daily
func (h *Handler) DailyStats(w http.ResponseWriter, r *http.Request) {
	stat, err := h.Stats.DailyIssued(r.Context())
	if err != nil {
		h.writeDomainError(w, "failed to compute daily stats", err)
		return
	}
	writeData(w, http.StatusOK, stat)
}

// PerUserStats returns today's per-user issuance average.
// GET /reward/stats/per-user
func (h *Handler) PerUserStats(w http.ResponseWriter, r *http.Request) {
	stat, err := h.Stats.PerUserAverage(r.Context())
	if err != nil {
		h.writeDomainError(w, "failed to compute per-user stats", err)
		return
	}
	writeData(w, http.StatusOK, stat)
}

// Trend returns the trailing 12-month issuance trend.
// GET /reward/monthly-stats
func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	points, err := h.Stats.MonthlyTrend(r.Context())
	if err != nil {
		h.writeDomainError(w, "failed to compute trend", err)
		return
	}
	writeData(w, http.StatusOK, points)
}

// YearlyBreakdown returns the current year's reason breakdown.
// GET /reward/by-reason/total
func (h *Handler) YearlyBreakdown(w http.ResponseWriter, r *http.Request) {
	out, err := h.Stats.ReasonBreakdown(r.Context(), stats.BreakdownScope{})
	if err != nil {
		h.writeDomainError(w, "failed to compute breakdown", err)
		return
	}
	writeData(w, http.StatusOK, out)
}

// MonthBreakdown returns one month's reason breakdown.
// GET /reward/by-reason/monthly?month=YYYY-MM
func (h *Handler) MonthBreakdown(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		writeError(w, http.StatusBadRequest, "month query parameter is required", nil)
		return
	}
	out, err := h.Stats.ReasonBreakdown(r.Context(), stats.BreakdownScope{Month: month})
	if err != nil {
		h.writeDomainError(w, "failed to compute breakdown", err)
		return
	}
	writeData(w, http.StatusOK, out)
}

// AllHistory returns the full ledger, paged.
// GET /reward/history/all?page=0&size=10
func (h *Handler) AllHistory(w http.ResponseWriter, r *http.Request) {
	entries, info, err := h.Stats.AllHistory(r.Context(), pageRequest(r))
	if err != nil {
		h.writeDomainError(w, "failed to read history", err)
		return
	}
	writeData(w, http.StatusOK, PageDTO{Content: toEntryDTOs(entries), Page: info})
}

// Filter searches the ledger by email, description, and date range.
// GET /reward/filter?email=&description=&startDate=&endDate=&page=&size=
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := stats.HistoryFilter{
		Email:       q.Get("email"),
		Description: q.Get("description"),
	}

	if raw := q.Get("startDate"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "startDate must be YYYY-MM-DD", err)
			return
		}
		filter.Start = &t
	}
	if raw := q.Get("endDate"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "endDate must be YYYY-MM-DD", err)
			return
		}
		filter.End = &t
	}

	entries, info, err := h.Stats.History(r.Context(), filter, pageRequest(r))
	if err != nil {
		h.writeDomainError(w, "failed to search history", err)
		return
	}
	writeData(w, http.StatusOK, PageDTO{Content: toEntryDTOs(entries), Page: info})
}

// ByDrive returns seed totals per drive.
// POST /reward/by-drive
func (h *Handler) ByDrive(w http.ResponseWriter, r *http.Request) {
	var req ByDriveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	out, err := h.Stats.RewardsByDrive(r.Context(), req.DriveIDs)
	if err != nil {
		h.writeDomainError(w, "failed to sum drives", err)
		return
	}
	writeData(w, http.StatusOK, out)
}

// Healthz reports liveness.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Status: status, Message: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		message = message + ": " + err.Error()
	}
	writeJSON(w, status, Envelope{Status: status, Message: message})
}

// writeDomainError maps domain errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, seed.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, seed.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, message, err)
	case errors.Is(err, seed.ErrNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, seed.ErrConcurrentUpdate):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.Log.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func pageRequest(r *http.Request) seed.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return seed.PageRequest{Page: page, Size: size}
}
