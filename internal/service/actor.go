package service

import (
	"github.com/google/uuid"

	"github.com/kaziflow/backend/internal/models"
)

// Actor — аутентифицированный инициатор операции. Сервисы проверяют права
// по нему явно, не полагаясь на слой HTTP.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// IsAdmin сообщает, является ли инициатор администратором.
func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// IsClient сообщает, является ли инициатор клиентом.
func (a Actor) IsClient() bool { return a.Role == models.RoleClient }

// IsFreelancer сообщает, является ли инициатор фрилансером.
func (a Actor) IsFreelancer() bool { return a.Role == models.RoleFreelancer }
