package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Dan9191/coop-lending/internal/middleware"
	"github.com/Dan9191/coop-lending/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type decisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accepted declined"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	svc      *service.Service
	log      *logrus.Logger
	validate *validator.Validate
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log, validate: validator.New()}
}

// Register mounts the guarantee routes on r. Routes other than /health
// expect the auth middleware to have run.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/loans/{loanID}/guarantees/decision", h.RecordDecision).Methods(http.MethodPost)
	r.HandleFunc("/loans/{loanID}/guarantees", h.ListGuarantees).Methods(http.MethodGet)
	r.HandleFunc("/loans/{loanID}/consensus", h.Consensus).Methods(http.MethodGet)
}

// Health reports that the process is serving
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RecordDecision records the authenticated member's decision as guarantor of a loan
func (h *Handler) RecordDecision(w http.ResponseWriter, r *http.Request) {
	guarantorID, ok := middleware.MemberIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "decision must be accepted or declined")
		return
	}
	decision, err := service.ParseDecision(req.Decision)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	res, err := h.svc.RecordDecision(r.Context(), loanID, guarantorID, decision)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// ListGuarantees returns the loan's current guarantee records
func (h *Handler) ListGuarantees(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}
	records, err := h.svc.Guarantees(r.Context(), loanID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, records)
}

// Consensus returns the loan's consensus state without side effects
func (h *Handler) Consensus(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Consensus(r.Context(), loanID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) loanID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["loanID"])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid loan ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var (
		vErr  *service.ValidationError
		nfErr *service.NotFoundError
		cv    *service.ConstraintViolation
	)
	switch {
	case errors.As(err, &vErr):
		h.writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.As(err, &nfErr):
		h.writeError(w, http.StatusNotFound, nfErr.Resource+" not found")
	case errors.As(err, &cv):
		h.writeError(w, http.StatusInternalServerError, "Request rejected by a storage constraint")
	default:
		h.log.Errorf("Request failed: %v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("Failed to encode response: %v", err)
	}
}
