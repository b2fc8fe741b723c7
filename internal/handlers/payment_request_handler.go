package handlers

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/treasurehunt/backend/internal/services"
)

type PaymentRequestHandler struct {
	service   *services.PaymentRequestService
	accounts  *services.AccountService
	validator *services.ValidationHelper
}

func NewPaymentRequestHandler(service *services.PaymentRequestService, accounts *services.AccountService) *PaymentRequestHandler {
	return &PaymentRequestHandler{
		service:   service,
		accounts:  accounts,
		validator: services.NewValidationHelper(),
	}
}

func sendPaymentRequestError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrPaymentRequestsUnavailable) {
		services.SendErrorResponse(w, "Payment requests are unavailable", http.StatusServiceUnavailable, nil)
		return
	}
	services.SendAppError(w, err)
}

// CreatePaymentRequest creates a single-use pay-me code with a QR image
// @Summary Create payment request
// @Description The returned code (or its QR image) lets another player pay the requested amount once before it expires
// @Tags PaymentRequests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=string,description=string} true "Requested payment"
// @Success 201 {object} object{success=bool,request=services.PaymentRequest,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /payment-requests [post]
func (h *PaymentRequestHandler) CreatePaymentRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description" validate:"max=255"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	request, qrImage, err := h.service.Create(r.Context(), userID, req.Amount, req.Description)
	if err != nil {
		sendPaymentRequestError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"request": request,
		"qrImage": qrImage,
	})
}

// RedeemPaymentRequest pays a payment request from the signed-in player's checking account
// @Summary Redeem payment request
// @Tags PaymentRequests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{code=string} true "Scanned code"
// @Success 200 {object} object{success=bool,request=services.PaymentRequest,transaction=models.Transaction,summary=models.AccountSummary}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /payment-requests/redeem [post]
func (h *PaymentRequestHandler) RedeemPaymentRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code" validate:"required"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	request, txn, err := h.service.Redeem(r.Context(), userID, req.Code)
	if err != nil {
		sendPaymentRequestError(w, err)
		return
	}
	summary, err := h.accounts.GetSummary(r.Context(), userID)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"request":     request,
		"transaction": txn,
		"summary":     summary,
	})
}
