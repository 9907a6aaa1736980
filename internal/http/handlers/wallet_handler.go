package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kaziflow/backend/internal/dto"
	"github.com/kaziflow/backend/internal/http/handlers/common"
	"github.com/kaziflow/backend/internal/service"
)

// WalletHandler обслуживает кошелёк, транзакции и вывод средств.
type WalletHandler struct {
	escrow      *service.EscrowService
	withdrawals *service.WithdrawalService
}

func NewWalletHandler(escrow *service.EscrowService, withdrawals *service.WithdrawalService) *WalletHandler {
	return &WalletHandler{escrow: escrow, withdrawals: withdrawals}
}

// GetWallet GET /wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	wallet, err := h.escrow.GetWallet(c.Request.Context(), actor.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.WalletResponse{Wallet: wallet})
}

// ListTransactions GET /wallet/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.Pagination(c)

	transactions, err := h.escrow.ListTransactions(c.Request.Context(), actor.ID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// GetTaskEscrow GET /tasks/:id/escrow
func (h *WalletHandler) GetTaskEscrow(c *gin.Context) {
	taskID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	transaction, err := h.escrow.GetByTask(c.Request.Context(), taskID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, transaction)
}

// RequestWithdrawal POST /withdrawals
func (h *WalletHandler) RequestWithdrawal(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	withdrawal, err := h.withdrawals.Request(c.Request.Context(), actor, service.RequestInput{
		Amount:      req.Amount,
		Method:      req.Method,
		Destination: req.Destination,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, withdrawal)
}

// GetWithdrawal GET /withdrawals/:id
func (h *WalletHandler) GetWithdrawal(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	withdrawal, err := h.withdrawals.Get(c.Request.Context(), actor, id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

// ListWithdrawals GET /withdrawals
func (h *WalletHandler) ListWithdrawals(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.Pagination(c)

	withdrawals, err := h.withdrawals.List(c.Request.Context(), actor, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"withdrawals": withdrawals})
}
