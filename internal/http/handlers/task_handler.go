package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kaziflow/backend/internal/dto"
	"github.com/kaziflow/backend/internal/http/handlers/common"
	"github.com/kaziflow/backend/internal/service"
)

type TaskHandler struct {
	tasks *service.TaskService
}

func NewTaskHandler(tasks *service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// Create POST /tasks
func (h *TaskHandler) Create(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	task, err := h.tasks.CreateTask(c.Request.Context(), actor, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		Deadline:    req.Deadline,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"task": task,
		// Сумма, которую предстоит оплатить для публикации.
		"deposit_amount": service.ComputeDeposit(task.Budget),
	})
}

// Get GET /tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
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

	task, err := h.tasks.GetTask(c.Request.Context(), actor, id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// List GET /tasks
func (h *TaskHandler) List(c *gin.Context) {
	limit, offset := common.Pagination(c)
	status := c.Query("status")

	var clientID *uuid.UUID
	if raw := c.Query("client_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			common.RespondBadRequest(c, "неверный client_id")
			return
		}
		clientID = &parsed
	}

	tasks, err := h.tasks.ListTasks(c.Request.Context(), status, clientID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// SubmitBid POST /tasks/:id/bids
func (h *TaskHandler) SubmitBid(c *gin.Context) {
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

	var req dto.SubmitBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	bid, err := h.tasks.SubmitBid(c.Request.Context(), actor, taskID, req.Amount, req.Proposal)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, bid)
}

// ListBids GET /tasks/:id/bids
func (h *TaskHandler) ListBids(c *gin.Context) {
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

	bids, err := h.tasks.ListBids(c.Request.Context(), actor, taskID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

// ListMyBids GET /bids/my
func (h *TaskHandler) ListMyBids(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.Pagination(c)

	bids, err := h.tasks.ListMyBids(c.Request.Context(), actor, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

// AcceptBid POST /bids/:id/accept
func (h *TaskHandler) AcceptBid(c *gin.Context) {
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

// CancelBid POST /bids/:id/cancel
func (h *TaskHandler) CancelBid(c *gin.Context) {
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

	if err := h.tasks.CancelBid(c.Request.Context(), actor, bidID); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "отклик отменён"})
}

// Complete POST /tasks/:id/complete
func (h *TaskHandler) Complete(c *gin.Context) {
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

	task, err := h.tasks.CompleteTask(c.Request.Context(), actor, taskID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// Cancel POST /tasks/:id/cancel
func (h *TaskHandler) Cancel(c *gin.Context) {
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

	task, err := h.tasks.CancelTask(c.Request.Context(), actor, taskID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, task)
}
