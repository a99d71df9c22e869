package servicejobs

import (
	"time"

	"github.com/google/uuid"
)

type CreateJobRequest struct {
	CustomerID   uuid.UUID  `json:"customerId" validate:"required"`
	TechnicianID *uuid.UUID `json:"technicianId,omitempty"`
	Title        string     `json:"title" validate:"required,max=200"`
	Description  string     `json:"description" validate:"max=4000"`
	Address      string     `json:"address" validate:"max=500"`
	Status       Status     `json:"status,omitempty" validate:"omitempty,oneof=scheduled in_progress completed cancelled"`
	ScheduledAt  *time.Time `json:"scheduledAt,omitempty"`
}

type UpdateJobRequest struct {
	CustomerID   *uuid.UUID `json:"customerId,omitempty"`
	TechnicianID *uuid.UUID `json:"technicianId,omitempty"`
	Title        *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description  *string    `json:"description,omitempty" validate:"omitempty,max=4000"`
	Address      *string    `json:"address,omitempty" validate:"omitempty,max=500"`
	Status       *Status    `json:"status,omitempty" validate:"omitempty,oneof=scheduled in_progress completed cancelled"`
	ScheduledAt  *time.Time `json:"scheduledAt,omitempty"`
}
