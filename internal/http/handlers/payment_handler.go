package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kaziflow/backend/internal/dto"
	"github.com/kaziflow/backend/internal/http/handlers/common"
	"github.com/kaziflow/backend/internal/service"
)

// PaymentHandler обслуживает депозиты за размещение задач и комиссии
// за отклик.
type PaymentHandler struct {
	deposits *service.DepositService
	bidFees  *service.BidFeeService
}

func NewPaymentHandler(deposits *service.DepositService, bidFees *service.BidFeeService) *PaymentHandler {
	return &PaymentHandler{deposits: deposits, bidFees: bidFees}
}

// InitiateDeposit POST /tasks/:id/deposit
func (h *PaymentHandler) InitiateDeposit(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	taskID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.InitiateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.deposits.Initiate(c.Request.Context(), actor, service.InitiateInput{
		TaskID:        taskID,
		PaymentMethod: req.PaymentMethod,
		PhoneNumber:   req.PhoneNumber,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, dto.PaymentInitiatedResponse{
		Deposit:      result.Deposit,
		ClientAction: result.ClientAction,
	})
}

// GetDeposit GET /tasks/:id/deposit
func (h *PaymentHandler) GetDeposit(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	taskID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	deposit, err := h.deposits.Get(c.Request.Context(), actor, taskID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, deposit)
}

// InitiateBidFee POST /bid-fees
func (h *PaymentHandler) InitiateBidFee(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.InitiateBidFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		common.RespondBadRequest(c, "неверный task_id")
		return
	}

	result, err := h.bidFees.Initiate(c.Request.Context(), actor, service.InitiateBidFeeInput{
		TaskID:      taskID,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, dto.PaymentInitiatedResponse{
		BidFee:       result.Payment,
		ClientAction: result.ClientAction,
	})
}

// GetBidFee GET /bid-fees/:id
func (h *PaymentHandler) GetBidFee(c *gin.Context) {
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

	payment, err := h.bidFees.Get(c.Request.Context(), actor, id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// ListBidFees GET /bid-fees
func (h *PaymentHandler) ListBidFees(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.Pagination(c)

	payments, err := h.bidFees.List(c.Request.Context(), actor, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}
