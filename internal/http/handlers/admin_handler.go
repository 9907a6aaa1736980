package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kaziflow/backend/internal/http/handlers/common"
	"github.com/kaziflow/backend/internal/service"
)

// AdminHandler обслуживает админские операции: обработку выводов,
// принятие откликов и статистику платформы.
type AdminHandler struct {
	withdrawals *service.WithdrawalService
	tasks       *service.TaskService
	stats       *service.StatsService
}

func NewAdminHandler(withdrawals *service.WithdrawalService, tasks *service.TaskService, stats *service.StatsService) *AdminHandler {
	return &AdminHandler{withdrawals: withdrawals, tasks: tasks, stats: stats}
}

// ListPendingWithdrawals GET /admin/withdrawals
func (h *AdminHandler) ListPendingWithdrawals(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.Pagination(c)

	withdrawals, err := h.withdrawals.ListPending(c.Request.Context(), actor, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"withdrawals": withdrawals})
}

// ProcessWithdrawal POST /admin/withdrawals/:id/process
func (h *AdminHandler) ProcessWithdrawal(c *gin.Context) {
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

	withdrawal, err := h.withdrawals.StartProcessing(c.Request.Context(), actor, id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

// CompleteWithdrawal POST /admin/withdrawals/:id/complete
func (h *AdminHandler) CompleteWithdrawal(c *gin.Context) {
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

	withdrawal, err := h.withdrawals.Complete(c.Request.Context(), actor, id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

// FailWithdrawal POST /admin/withdrawals/:id/fail
func (h *AdminHandler) FailWithdrawal(c *gin.Context) {
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

	withdrawal, err := h.withdrawals.Fail(c.Request.Context(), actor, id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

// AcceptBid POST /admin/bids/:id/accept
func (h *AdminHandler) AcceptBid(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bidID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	bid, err := h.tasks.AcceptBid(c.Request.Context(), actor, bidID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, bid)
}

// PlatformStats GET /admin/stats
func (h *AdminHandler) PlatformStats(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	stats, err := h.stats.PlatformStats(c.Request.Context(), actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
