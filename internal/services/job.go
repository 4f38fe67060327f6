package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradepost/composite-backend/internal/clients/itemsvc"
	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/platform/apierr"
	"github.com/tradepost/composite-backend/internal/repos"
	"github.com/tradepost/composite-backend/internal/requestdata"
)

// JobService bridges the item service's asynchronous creation workflow. Job
// state is owned entirely by the remote service and only observed here:
// PENDING and RUNNING pass through unchanged, FAILED carries the remote
// error to the caller, and COMPLETED triggers the one local side effect —
// recording the ownership relation, idempotently.
type JobService interface {
	Submit(ctx context.Context, body itemsvc.ItemCreate) (*itemsvc.JobRead, error)
	Poll(ctx context.Context, jobID uuid.UUID) (*itemsvc.JobRead, error)
}

type jobService struct {
	db          *gorm.DB
	log         *logger.Logger
	itemClient  itemsvc.Client
	itemOwners  repos.ItemOwnerRepo
	submissions repos.JobSubmissionRepo
}

func NewJobService(
	db *gorm.DB,
	log *logger.Logger,
	itemClient itemsvc.Client,
	itemOwners repos.ItemOwnerRepo,
	submissions repos.JobSubmissionRepo,
) JobService {
	serviceLog := log.With("service", "JobService")
	return &jobService{
		db:          db,
		log:         serviceLog,
		itemClient:  itemClient,
		itemOwners:  itemOwners,
		submissions: submissions,
	}
}

// Submit sends the creation to the item service and records the submitter.
// The submission row is what later binds the completed item's ownership to
// this user, so failing to write it is an inconsistency, not a soft warning.
func (s *jobService) Submit(ctx context.Context, body itemsvc.ItemCreate) (*itemsvc.JobRead, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	job, err := s.itemClient.Create(ctx, body)
	if err != nil {
		return nil, fromRemote(err)
	}
	if _, err := s.submissions.Create(ctx, nil, job.JobID, userID); err != nil && !repos.IsDuplicateKey(err) {
		s.log.Error("Job submitted remotely but submitter not recorded", "job_id", job.JobID, "user_id", userID, "error", err)
		return nil, apierr.InternalInconsistency("job_link_failed",
			fmt.Errorf("job %s submitted remotely but submitter not recorded: %w", job.JobID, err))
	}
	s.log.Info("Item creation submitted", "job_id", job.JobID, "user_id", userID)
	return job, nil
}

// Poll reads the current job state and, on COMPLETED, links the resulting
// item to the recorded submitter. Only the submitter may poll; anyone else
// gets not-found so the job id leaks nothing. The verify-then-create check
// makes a second poll after completion a no-op with respect to the relation
// store, and the unique index on item_id collapses concurrent polls racing
// past the check into a single row.
func (s *jobService) Poll(ctx context.Context, jobID uuid.UUID) (*itemsvc.JobRead, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	submitterID, err := s.submissions.GetSubmitter(ctx, nil, jobID)
	if err != nil {
		if repos.IsNotFound(err) {
			return nil, apierr.NotFound(fmt.Errorf("job %s not found", jobID))
		}
		return nil, err
	}
	if submitterID != userID {
		return nil, apierr.NotFound(fmt.Errorf("job %s not found", jobID))
	}
	job, err := s.itemClient.GetJob(ctx, jobID)
	if err != nil {
		return nil, fromRemote(err)
	}

	switch job.Status {
	case itemsvc.JobPending, itemsvc.JobRunning:
		return job, nil
	case itemsvc.JobFailed:
		// No relation is ever created for a failed job; the caller
		// resubmits a fresh creation request.
		return job, nil
	case itemsvc.JobCompleted:
		if job.ItemID == nil {
			return nil, apierr.InternalInconsistency("job_missing_item",
				fmt.Errorf("job %s completed without an item id", jobID))
		}
		if err := s.linkOwnership(ctx, *job.ItemID, submitterID); err != nil {
			return nil, err
		}
		return job, nil
	default:
		return nil, apierr.InternalInconsistency("job_unknown_status",
			fmt.Errorf("job %s reported unknown status %q", jobID, job.Status))
	}
}

func (s *jobService) linkOwnership(ctx context.Context, itemID, userID uuid.UUID) error {
	exists, err := s.itemOwners.VerifyOwnership(ctx, nil, itemID, userID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := s.itemOwners.Create(ctx, nil, itemID, userID); err != nil {
		if repos.IsDuplicateKey(err) {
			// A concurrent poll won the race; same outcome.
			return nil
		}
		return apierr.InternalInconsistency("item_link_failed",
			fmt.Errorf("item %s created remotely but ownership not recorded: %w", itemID, err))
	}
	s.log.Info("Item ownership recorded", "item_id", itemID, "user_id", userID)
	return nil
}
