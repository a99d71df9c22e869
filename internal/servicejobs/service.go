package servicejobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/fieldline/internal/platform/httpx"
	"github.com/fieldline/fieldline/internal/shared"
)

// Service handles job business logic.
type Service struct {
	repo   Repository
	audit  shared.AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// Get returns a job visible to the account.
func (s *Service) Get(ctx context.Context, accountID, id uuid.UUID) (Job, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if job.AccountID != accountID {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

// List returns a page of the account's jobs.
func (s *Service) List(ctx context.Context, req ListJobsRequest, page, perPage int) (shared.Page[Job], error) {
	p := shared.NewPagination(page, perPage, 0)
	req.Limit = p.PerPage
	req.Offset = p.Offset()
	jobs, total, err := s.repo.List(ctx, req)
	if err != nil {
		return shared.Page[Job]{}, fmt.Errorf("list jobs: %w", err)
	}
	if jobs == nil {
		jobs = []Job{}
	}
	return shared.Page[Job]{Data: jobs, Pagination: shared.NewPagination(p.Page, p.PerPage, total)}, nil
}

// Create registers a new job for the caller's account.
func (s *Service) Create(ctx context.Context, principal shared.Principal, req CreateJobRequest) (Job, error) {
	if err := httpx.Validate(req); err != nil {
		return Job{}, err
	}
	now := s.now().UTC()
	job := Job{
		ID:          uuid.New(),
		AccountID:   principal.AccountID,
		CustomerID:  req.CustomerID,
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
		Status:      StatusScheduled,
		ScheduledAt: req.ScheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.TechnicianID != nil {
		job.TechnicianID = uuid.NullUUID{UUID: *req.TechnicianID, Valid: true}
	}
	if req.Status != "" {
		job.setStatus(req.Status, now)
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return Job{}, fmt.Errorf("create job: %w", err)
	}
	s.record(ctx, principal, "job.created", job.ID, map[string]any{"title": job.Title})
	return job, nil
}

// Update applies a partial change to a job.
func (s *Service) Update(ctx context.Context, principal shared.Principal, id uuid.UUID, req UpdateJobRequest) (Job, error) {
	if err := httpx.Validate(req); err != nil {
		return Job{}, err
	}
	job, err := s.Get(ctx, principal.AccountID, id)
	if err != nil {
		return Job{}, err
	}
	now := s.now().UTC()
	if req.CustomerID != nil {
		job.CustomerID = *req.CustomerID
	}
	if req.TechnicianID != nil {
		job.TechnicianID = uuid.NullUUID{UUID: *req.TechnicianID, Valid: *req.TechnicianID != uuid.Nil}
	}
	if req.Title != nil {
		job.Title = *req.Title
	}
	if req.Description != nil {
		job.Description = *req.Description
	}
	if req.Address != nil {
		job.Address = *req.Address
	}
	if req.ScheduledAt != nil {
		job.ScheduledAt = req.ScheduledAt
	}
	if req.Status != nil {
		job.setStatus(*req.Status, now)
	}
	job.UpdatedAt = now
	if err := s.repo.Update(ctx, job); err != nil {
		return Job{}, fmt.Errorf("update job: %w", err)
	}
	s.record(ctx, principal, "job.updated", job.ID, map[string]any{"status": job.Status})
	return job, nil
}

// Delete removes a job that has no dependent records.
func (s *Service) Delete(ctx context.Context, principal shared.Principal, id uuid.UUID) error {
	if _, err := s.Get(ctx, principal.AccountID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, principal, "job.deleted", id, nil)
	return nil
}

func (j *Job) setStatus(status Status, now time.Time) {
	j.Status = status
	if status == StatusCompleted {
		if j.CompletedAt == nil {
			j.CompletedAt = &now
		}
		return
	}
	j.CompletedAt = nil
}

func (s *Service) record(ctx context.Context, principal shared.Principal, action string, id uuid.UUID, meta map[string]any) {
	shared.RecordBestEffort(ctx, s.audit, s.logger, shared.AuditLog{
		AccountID: principal.AccountID,
		ActorID:   principal.UserID,
		Action:    action,
		Entity:    "job",
		EntityID:  id.String(),
		Meta:      meta,
	})
}
