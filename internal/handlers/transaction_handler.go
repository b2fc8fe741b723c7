package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/treasurehunt/backend/internal/models"
	"github.com/treasurehunt/backend/internal/services"
)

type TransactionHandler struct {
	accounts  *services.AccountService
	ledger    *services.LedgerService
	validator *services.ValidationHelper
}

func NewTransactionHandler(accounts *services.AccountService, ledger *services.LedgerService) *TransactionHandler {
	return &TransactionHandler{
		accounts:  accounts,
		ledger:    ledger,
		validator: services.NewValidationHelper(),
	}
}

// ownAccount writes 403 unless the signed-in player owns accountID.
func (h *TransactionHandler) ownAccount(w http.ResponseWriter, r *http.Request, accountID int64) bool {
	account, err := h.accounts.Get(r.Context(), accountID)
	if err != nil {
		services.SendAppError(w, err)
		return false
	}
	return requireOwner(w, r, account.UserID)
}

func (h *TransactionHandler) respond(w http.ResponseWriter, r *http.Request, userID string, txn *models.Transaction) {
	summary, err := h.accounts.GetSummary(r.Context(), userID)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"transaction": txn,
		"summary":     summary,
	})
}

// Transfer moves cash between two accounts of the signed-in player
// @Summary Transfer between own accounts
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{fromAccountId=int64,toAccountId=int64,amount=string,description=string} true "Transfer request"
// @Success 200 {object} object{success=bool,transaction=models.Transaction,summary=models.AccountSummary}
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /transactions/transfer [post]
func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromAccountID int64           `json:"fromAccountId" validate:"required,gt=0"`
		ToAccountID   int64           `json:"toAccountId" validate:"required,gt=0"`
		Amount        decimal.Decimal `json:"amount"`
		Description   string          `json:"description" validate:"max=255"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}
	if !h.ownAccount(w, r, req.FromAccountID) {
		return
	}

	txn, err := h.ledger.Transfer(r.Context(), req.FromAccountID, req.ToAccountID, req.Amount, req.Description)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	userID, _ := currentUser(w, r)
	h.respond(w, r, userID, txn)
}

type movementRequest struct {
	AccountID   int64           `json:"accountId" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=255"`
}

// Deposit adds external money to an account
// @Summary Deposit
// @Description Credit cards record the deposit as a payment against the debt
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{accountId=int64,amount=string,description=string} true "Deposit request"
// @Success 200 {object} object{success=bool,transaction=models.Transaction,summary=models.AccountSummary}
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /transactions/deposit [post]
func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if !decodeJSON(w, r, h.validator, &req) || !h.ownAccount(w, r, req.AccountID) {
		return
	}

	txn, err := h.ledger.Deposit(r.Context(), req.AccountID, req.Amount, req.Description)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	userID, _ := currentUser(w, r)
	h.respond(w, r, userID, txn)
}

// Withdraw takes money out of an account
// @Summary Withdraw
// @Description Credit cards record the withdrawal as a charge that grows the debt
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{accountId=int64,amount=string,description=string} true "Withdrawal request"
// @Success 200 {object} object{success=bool,transaction=models.Transaction,summary=models.AccountSummary}
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /transactions/withdraw [post]
func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if !decodeJSON(w, r, h.validator, &req) || !h.ownAccount(w, r, req.AccountID) {
		return
	}

	txn, err := h.ledger.Withdraw(r.Context(), req.AccountID, req.Amount, req.Description)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	userID, _ := currentUser(w, r)
	h.respond(w, r, userID, txn)
}

// CollectGold adds one gold bar to the treasure chest
// @Summary Collect gold bar
// @Tags Game
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,transaction=models.Transaction,summary=models.AccountSummary}
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/collect-gold [post]
func (h *TransactionHandler) CollectGold(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	txn, err := h.ledger.CollectGoldBar(r.Context(), userID)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	h.respond(w, r, userID, txn)
}

// ExchangeGold converts gold bars into cash
// @Summary Exchange gold bars
// @Tags Game
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{bars=int64,toAccountType=string} true "Exchange request (defaults: 1 bar into checking)"
// @Success 200 {object} object{success=bool,transaction=models.Transaction,summary=models.AccountSummary}
// @Failure 400 {object} services.ErrorResponse
// @Router /transactions/exchange-gold [post]
func (h *TransactionHandler) ExchangeGold(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	req := struct {
		Bars          int64              `json:"bars"`
		ToAccountType models.AccountType `json:"toAccountType"`
	}{Bars: 1, ToAccountType: models.AccountTypeChecking}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	txn, err := h.ledger.ExchangeGold(r.Context(), userID, req.Bars, req.ToAccountType)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	h.respond(w, r, userID, txn)
}

// SendMoney pays another player
// @Summary Send money to a player
// @Description Paying into a credit card reduces its debt
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{toUserId=string,amount=string,fromAccountType=string,toAccountType=string,description=string} true "Payment"
// @Success 200 {object} object{success=bool,transaction=models.Transaction,summary=models.AccountSummary}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/send [post]
func (h *TransactionHandler) SendMoney(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		ToUserID        string             `json:"toUserId" validate:"required"`
		Amount          decimal.Decimal    `json:"amount"`
		FromAccountType models.AccountType `json:"fromAccountType"`
		ToAccountType   models.AccountType `json:"toAccountType"`
		Description     string             `json:"description" validate:"max=255"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	txn, err := h.ledger.SendMoney(r.Context(), services.SendMoneyParams{
		FromUserID:      userID,
		ToUserID:        req.ToUserID,
		Amount:          req.Amount,
		FromAccountType: req.FromAccountType,
		ToAccountType:   req.ToAccountType,
		Description:     req.Description,
	})
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	h.respond(w, r, userID, txn)
}
