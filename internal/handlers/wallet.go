package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"consult-platform/internal/currency"
	"consult-platform/internal/middleware"
	"consult-platform/internal/repo"
	"consult-platform/internal/wallet"
)

type WalletHandler struct {
	Accounts *repo.Accounts
	Ledger   *wallet.Ledger
}

func NewWalletHandler(accounts *repo.Accounts, ledger *wallet.Ledger) *WalletHandler {
	return &WalletHandler{Accounts: accounts, Ledger: ledger}
}

// GetWallet returns the creator-facing balance view.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	acct, err := h.Accounts.Get(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":                 acct.Balance,
		"balance_display":         currency.Format(acct.Balance, acct.CurrencyCode),
		"total_withdrawn":         acct.TotalWithdrawn,
		"total_withdrawn_display": currency.Format(acct.TotalWithdrawn, acct.CurrencyCode),
		"currency_code":           acct.CurrencyCode,
	})
}

func (h *WalletHandler) InitiateWithdrawal(c *gin.Context) {
	w, err := h.Ledger.InitiateWithdrawal(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h *WalletHandler) ListWithdrawals(c *gin.Context) {
	list, err := h.Ledger.ListWithdrawals(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
