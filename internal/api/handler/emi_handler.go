package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lending-engine/internal/api/handler/dto"
	"lending-engine/internal/domain/emi"
	"lending-engine/internal/pkg/apperrors"
)

type EMIHandler struct {
	service emi.EMIService
	clock   emi.Clock
	logger  *slog.Logger
}

func NewEMIHandler(s emi.EMIService, clock emi.Clock, l *slog.Logger) *EMIHandler {
	return &EMIHandler{
		service: s,
		clock:   clock,
		logger:  l.With("component", "EMIHandler"),
	}
}

func getEMIIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "emiID")
	if idStr == "" {
		return 0, fmt.Errorf("emiID not found in URL path")
	}
	return strconv.ParseInt(idStr, 10, 64)
}

// GetSchedule returns the full daily schedule of a loan, ordered by day number.
func (h *EMIHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	entries, err := h.service.Schedule(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewScheduleResponse(loanID, entries))
}

// GetLoanStats returns the aggregated schedule counters for a loan.
func (h *EMIHandler) GetLoanStats(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	stats, err := h.service.LoanStats(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanStatsResponse(loanID, stats))
}

func (h *EMIHandler) RequestPayment(w http.ResponseWriter, r *http.Request) {
	emiID, err := getEMIIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	e, err := h.service.RequestPayment(r.Context(), emiID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewEMIResponse(e))
}

func (h *EMIHandler) CancelPaymentRequest(w http.ResponseWriter, r *http.Request) {
	emiID, err := getEMIIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	e, err := h.service.CancelPaymentRequest(r.Context(), emiID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewEMIResponse(e))
}

func (h *EMIHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	emiID, err := getEMIIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	// The body is optional. ContentLength is -1 for chunked requests, so
	// decode whatever arrives and treat a bare EOF as the empty body.
	var req dto.ConfirmPaymentRequest
	if r.Body != nil {
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
			return
		}
	}

	e, err := h.service.ConfirmPayment(r.Context(), emiID, req.ViaRequest)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewEMIResponse(e))
}

// ClearPenalty waives an overdue installment's accrued penalty.
func (h *EMIHandler) ClearPenalty(w http.ResponseWriter, r *http.Request) {
	emiID, err := getEMIIDFromURL(r)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	e, err := h.service.ClearOverduePenalty(r.Context(), emiID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewEMIResponse(e))
}

// RunOverdueSweep triggers the accrual sweep on demand, outside the cron
// schedule. The sweep itself is idempotent.
func (h *EMIHandler) RunOverdueSweep(w http.ResponseWriter, r *http.Request) {
	processed, err := h.service.ProcessOverdues(r.Context(), h.clock())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.SweepResponse{Processed: processed})
}

func (h *EMIHandler) RunCorrectionSweep(w http.ResponseWriter, r *http.Request) {
	corrected, err := h.service.CorrectOverdueState(r.Context(), h.clock())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.SweepResponse{Processed: corrected})
}
