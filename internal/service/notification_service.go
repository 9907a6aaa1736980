package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/kaziflow/backend/internal/logger"
	"github.com/kaziflow/backend/internal/models"
	"github.com/kaziflow/backend/internal/pkg/apperror"
)

// Notifier доставляет событие пользователю. Реализуется сервисом
// уведомлений; nil-значение допускается и означает "без уведомлений".
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event string, data interface{})
}

// Pusher доставляет уведомление онлайн-подключениям пользователя
// (реализуется WebSocket-хабом).
type Pusher interface {
	Push(userID uuid.UUID, payload []byte)
}

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// NotificationService сохраняет уведомления и рассылает их через WebSocket.
type NotificationService struct {
	repo   NotificationRepository
	pusher Pusher
}

// NewNotificationService создаёт новый сервис уведомлений.
func NewNotificationService(repo NotificationRepository, pusher Pusher) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher}
}

// Notify сохраняет уведомление и отправляет его онлайн-подключениям.
// Ошибки не возвращаются: доставка уведомлений не должна ломать
// основную операцию.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, event string, data interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		logger.Log.WithField("event", event).Warn("notification: не удалось сериализовать payload")
		return
	}

	notification := &models.Notification{
		UserID:  userID,
		Payload: payload,
		IsRead:  false,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"user_id": userID,
			"event":   event,
			"error":   err.Error(),
		}).Warn("notification: не удалось сохранить уведомление")
		return
	}

	if s.pusher != nil {
		s.pusher.Push(userID, payload)
	}
}

// List возвращает список уведомлений пользователя.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.List(ctx, userID, limit, offset, unreadOnly)
}

// MarkAsRead отмечает уведомление как прочитанное.
func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if notification.UserID != userID {
		return apperror.ErrForbidden
	}

	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead отмечает все уведомления пользователя как прочитанные.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// CountUnread возвращает количество непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
