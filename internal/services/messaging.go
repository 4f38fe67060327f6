package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tradepost/composite-backend/internal/clients/messagingsvc"
	"github.com/tradepost/composite-backend/internal/logger"
	"github.com/tradepost/composite-backend/internal/platform/apierr"
	"github.com/tradepost/composite-backend/internal/repos"
	"github.com/tradepost/composite-backend/internal/requestdata"
)

// ThreadCreateRequest names only the other party; the author is always the
// authenticated caller.
type ThreadCreateRequest struct {
	ParticipantID uuid.UUID `json:"participant_id" binding:"required"`
}

type MessageSendRequest struct {
	Content string `json:"content" binding:"required"`
}

type MessagingService interface {
	CreateThread(ctx context.Context, body ThreadCreateRequest) (*messagingsvc.ThreadRead, error)
	GetThread(ctx context.Context, threadID uuid.UUID) (*messagingsvc.ThreadRead, error)
	ListThreads(ctx context.Context) ([]messagingsvc.ThreadRead, error)
	SendMessage(ctx context.Context, threadID uuid.UUID, body MessageSendRequest) (*messagingsvc.MessageRead, error)
	GetMessages(ctx context.Context, threadID uuid.UUID) ([]messagingsvc.MessageRead, error)
}

type messagingService struct {
	db              *gorm.DB
	log             *logger.Logger
	messagingClient messagingsvc.Client
	threadMembers   repos.ThreadMemberRepo
}

func NewMessagingService(
	db *gorm.DB,
	log *logger.Logger,
	messagingClient messagingsvc.Client,
	threadMembers repos.ThreadMemberRepo,
) MessagingService {
	serviceLog := log.With("service", "MessagingService")
	return &messagingService{
		db:              db,
		log:             serviceLog,
		messagingClient: messagingClient,
		threadMembers:   threadMembers,
	}
}

// CreateThread creates the remote thread, then records one membership row per
// party. Membership is what later gates every read and send on the thread, so
// a failed write here is surfaced as an inconsistency rather than swallowed.
func (s *messagingService) CreateThread(ctx context.Context, body ThreadCreateRequest) (*messagingsvc.ThreadRead, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	if body.ParticipantID == userID {
		return nil, apierr.Validation(fmt.Errorf("cannot open a thread with yourself"))
	}

	thread, err := s.messagingClient.CreateThread(ctx, messagingsvc.ThreadCreate{
		AuthorID:      userID,
		ParticipantID: body.ParticipantID,
	})
	if err != nil {
		return nil, fromRemote(err)
	}

	for _, memberID := range []uuid.UUID{userID, body.ParticipantID} {
		if _, err := s.threadMembers.Create(ctx, nil, thread.ThreadID, memberID); err != nil {
			if repos.IsDuplicateKey(err) {
				continue
			}
			s.log.Error("Thread created remotely but membership not recorded", "thread_id", thread.ThreadID, "user_id", memberID, "error", err)
			return nil, apierr.InternalInconsistency("thread_link_failed",
				fmt.Errorf("thread %s created remotely but membership for %s not recorded: %w", thread.ThreadID, memberID, err))
		}
	}
	return thread, nil
}

// requireMembership translates "not a member" into not-found so thread
// existence is never leaked to outsiders.
func (s *messagingService) requireMembership(ctx context.Context, threadID, userID uuid.UUID) error {
	member, err := s.threadMembers.IsMember(ctx, nil, threadID, userID)
	if err != nil {
		return err
	}
	if !member {
		return apierr.NotFound(fmt.Errorf("thread %s not found", threadID))
	}
	return nil
}

func (s *messagingService) GetThread(ctx context.Context, threadID uuid.UUID) (*messagingsvc.ThreadRead, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	if err := s.requireMembership(ctx, threadID, userID); err != nil {
		return nil, err
	}
	thread, err := s.messagingClient.GetThread(ctx, threadID)
	if err != nil {
		return nil, fromRemote(err)
	}
	return thread, nil
}

// ListThreads fans out the per-thread fetches; a thread the messaging service
// no longer knows is dropped from the listing, not fatal.
func (s *messagingService) ListThreads(ctx context.Context) ([]messagingsvc.ThreadRead, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	ids, err := s.threadMembers.ListThreadsForUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	slots := make([]*messagingsvc.ThreadRead, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			thread, err := s.messagingClient.GetThread(ctx, id)
			if err != nil {
				s.log.Warn("Skipping thread in listing", "thread_id", id, "error", err)
				return nil
			}
			slots[i] = thread
			return nil
		})
	}
	_ = g.Wait()
	out := make([]messagingsvc.ThreadRead, 0, len(ids))
	for _, thread := range slots {
		if thread != nil {
			out = append(out, *thread)
		}
	}
	return out, nil
}

func (s *messagingService) SendMessage(ctx context.Context, threadID uuid.UUID, body MessageSendRequest) (*messagingsvc.MessageRead, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	if err := s.requireMembership(ctx, threadID, userID); err != nil {
		return nil, err
	}
	msg, err := s.messagingClient.SendMessage(ctx, threadID, messagingsvc.MessageCreate{
		SenderID: userID,
		Content:  body.Content,
	})
	if err != nil {
		return nil, fromRemote(err)
	}
	return msg, nil
}

func (s *messagingService) GetMessages(ctx context.Context, threadID uuid.UUID) ([]messagingsvc.MessageRead, error) {
	userID := requestdata.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("no authenticated user"))
	}
	if err := s.requireMembership(ctx, threadID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.messagingClient.GetMessages(ctx, threadID)
	if err != nil {
		return nil, fromRemote(err)
	}
	return msgs, nil
}
