package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kaziflow/backend/internal/gateway"
	"github.com/kaziflow/backend/internal/http/handlers/common"
	"github.com/kaziflow/backend/internal/logger"
	"github.com/kaziflow/backend/internal/pkg/apperror"
)

// CallbackWorkflow обрабатывает колбэк шлюза по принадлежащему ему платежу.
type CallbackWorkflow interface {
	HandleCallback(ctx context.Context, result *gateway.CallbackResult) error
}

// WebhookHandler принимает колбэки платёжных шлюзов. Шлюзы доставляют
// колбэки как минимум один раз, поэтому обработка идемпотентна; 200
// отвечаем только когда колбэк действительно обработан либо заведомо
// никому не принадлежит — на 5xx шлюз ретраит доставку.
type WebhookHandler struct {
	gateways *gateway.Registry
	deposits CallbackWorkflow
	bidFees  CallbackWorkflow
}

func NewWebhookHandler(gateways *gateway.Registry, deposits, bidFees CallbackWorkflow) *WebhookHandler {
	return &WebhookHandler{gateways: gateways, deposits: deposits, bidFees: bidFees}
}

// Handle POST /webhooks/:gateway
func (h *WebhookHandler) Handle(c *gin.Context) {
	name := c.Param("gateway")

	g, err := h.gateways.Resolve(name)
	if err != nil {
		common.RespondError(c, http.StatusNotFound, "неизвестный шлюз")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать тело запроса")
		return
	}

	result, err := g.ParseCallback(body)
	if err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"gateway": name,
			"error":   err.Error(),
		}).Warn("webhook: колбэк не разобран")
		common.RespondBadRequest(c, "колбэк не разобран")
		return
	}

	// Пространства ссылок комиссий и депозитов не пересекаются: если
	// ссылка не принадлежит комиссии, пробуем депозит. Любая другая
	// ошибка — сбой обработки, а не чужая ссылка.
	err = h.bidFees.HandleCallback(c.Request.Context(), result)
	if err != nil && apperror.IsNotFound(err) {
		err = h.deposits.HandleCallback(c.Request.Context(), result)
	}

	switch {
	case err == nil:
	case apperror.IsNotFound(err):
		// Ссылка никому не принадлежит, повторная доставка не поможет.
		logger.Log.WithFields(map[string]interface{}{
			"gateway":   name,
			"reference": result.ExternalReference,
		}).Warn("webhook: колбэк по неизвестной ссылке")
	default:
		logger.Log.WithFields(map[string]interface{}{
			"gateway":   name,
			"reference": result.ExternalReference,
			"error":     err.Error(),
		}).Error("webhook: колбэк не обработан, ждём повторную доставку")
		common.RespondError(c, http.StatusInternalServerError, "колбэк не обработан")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
