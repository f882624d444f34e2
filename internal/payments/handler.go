package payments

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jamii-coop/jamii-coop/internal/platform/httpx"
	"github.com/jamii-coop/jamii-coop/internal/shared"
)

// Handler manages payment endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	bearer    func(http.Handler) http.Handler
	validator *validator.Validate
}

// NewHandler builds Handler instance. bearer guards the authenticated routes;
// the confirm callback and status poll stay open for the provider.
func NewHandler(logger *slog.Logger, service *Service, bearer func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		bearer:    bearer,
		validator: validator.New(),
	}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.bearer)
		r.Post("/pay", h.initiateLoanPayment)
		r.Post("/pay/saving", h.initiateSavingPayment)
		r.Put("/pay/saving/{transactionId}/confirm", h.confirmSavingPayment)
		r.Post("/payment/mtn-payment", h.initiateSimulated)
	})

	// Provider-facing: the gateway callback carries no bearer token.
	r.Post("/pay/{transactionId}/confirm", h.confirmLoanPayment)
	r.Get("/payment/status/{transactionId}", h.paymentStatus)
}

type loanPayRequest struct {
	LoanID int64 `json:"loanId" validate:"required,gt=0"`
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type savingPayRequest struct {
	Shares       int64 `json:"shares" validate:"required,gt=0"`
	Amount       int64 `json:"amount" validate:"required,gt=0"`
	Total        int64 `json:"total" validate:"omitempty,gt=0"`
	SavingTypeID int   `json:"savingTypeId" validate:"omitempty,min=1,max=3"`
}

type simulatedPayRequest struct {
	LoanID int64  `json:"loanId" validate:"required,gt=0"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Phone  string `json:"phone" validate:"required,min=9"`
}

func (h *Handler) initiateLoanPayment(w http.ResponseWriter, r *http.Request) {
	var req loanPayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, shared.UserSafeMessage(shared.ErrValidation))
		return
	}

	result, err := h.service.InitiateLoanPayment(r.Context(), InitiateLoanInput(req), shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.logger.Error("initiate loan payment", slog.Int64("loan_id", req.LoanID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"message":       result.Message,
		"transactionId": result.TransactionID,
		"provider":      result.Provider,
	})
}

func (h *Handler) initiateSavingPayment(w http.ResponseWriter, r *http.Request) {
	var req savingPayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, shared.UserSafeMessage(shared.ErrValidation))
		return
	}

	result, err := h.service.InitiateSavingPayment(r.Context(), InitiateSavingInput(req), shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.logger.Error("initiate saving payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"message":       result.Message,
		"transactionId": result.TransactionID,
		"provider":      result.Provider,
	})
}

func (h *Handler) confirmLoanPayment(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	result, err := h.service.ConfirmLoanPayment(r.Context(), transactionID)
	if err != nil {
		h.logger.Error("confirm loan payment", slog.String("transaction_id", transactionID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"message":          result.Message,
		"amount":           result.Amount,
		"transactionId":    result.TransactionID,
		"paymentMethod":    result.Method,
		"alreadyConfirmed": result.AlreadyConfirmed,
	})
}

func (h *Handler) confirmSavingPayment(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")
	recorderID := shared.UserIDFromContext(r.Context())

	result, err := h.service.ConfirmSavingPayment(r.Context(), transactionID, recorderID)
	if err != nil {
		h.logger.Error("confirm saving payment", slog.String("transaction_id", transactionID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"message":       result.Message,
		"amount":        result.Amount,
		"transactionId": result.TransactionID,
	})
}

func (h *Handler) initiateSimulated(w http.ResponseWriter, r *http.Request) {
	var req simulatedPayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, shared.UserSafeMessage(shared.ErrValidation))
		return
	}

	result, err := h.service.InitiateSimulated(r.Context(), SimulatedInput(req), shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.logger.Error("initiate simulated payment", slog.Int64("loan_id", req.LoanID), slog.Any("error", err))
		httpx.JSON(w, httpx.StatusFor(err), map[string]any{
			"success": false,
			"message": shared.UserSafeMessage(err),
		})
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       result.Message,
		"transactionId": result.TransactionID,
	})
}

func (h *Handler) paymentStatus(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	status, err := h.service.PaymentStatus(r.Context(), transactionID)
	if err != nil {
		httpx.JSON(w, httpx.StatusFor(err), map[string]any{
			"success": false,
			"message": shared.UserSafeMessage(err),
		})
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"status":        status,
		"transactionId": transactionID,
	})
}
