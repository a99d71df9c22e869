// Package servicejobs manages the field jobs invoices and costs are attached to.
package servicejobs

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/fieldline/internal/platform/httpx"
)

// Status enumerates job lifecycle states.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ErrJobNotFound is returned when a job does not exist in the caller's account.
var ErrJobNotFound = httpx.NotFound("job not found")

// ErrJobInUse is returned when deleting a job that still has invoices or costs.
var ErrJobInUse = httpx.Conflict("job has invoices or cost entries and cannot be deleted")

// Job is a unit of field work for a customer.
type Job struct {
	ID           uuid.UUID     `json:"id"`
	AccountID    uuid.UUID     `json:"accountId"`
	CustomerID   uuid.UUID     `json:"customerId"`
	TechnicianID uuid.NullUUID `json:"technicianId"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Address      string        `json:"address"`
	Status       Status        `json:"status"`
	ScheduledAt  *time.Time    `json:"scheduledAt,omitempty"`
	CompletedAt  *time.Time    `json:"completedAt,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// ListJobsRequest filters job listings.
type ListJobsRequest struct {
	AccountID    uuid.UUID
	Status       Status
	CustomerID   uuid.NullUUID
	TechnicianID uuid.NullUUID
	Limit        int
	Offset       int
}
