package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/dossier-messaging-api/internal/dto"
	"github.com/noah-isme/dossier-messaging-api/internal/models"
	"github.com/noah-isme/dossier-messaging-api/internal/observability"
	"github.com/noah-isme/dossier-messaging-api/internal/repository"
)

// MessagingService exposes dossier threads, messages, read state and notifications.
type MessagingService interface {
	GetAllThreads(ctx context.Context) ([]models.Thread, error)
	GetThreadByID(ctx context.Context, id string) (models.Thread, error)
	GetThreadByDossierRef(ctx context.Context, ref string) (models.Thread, error)
	CreateThread(ctx context.Context, payload dto.ThreadCreateRequest) (models.Thread, error)
	GetOrCreateThread(ctx context.Context, payload dto.ThreadCreateRequest) (models.Thread, bool, error)
	AddParticipant(ctx context.Context, threadID, userID string) (models.Thread, error)
	ThreadsForUser(ctx context.Context, userID string) ([]models.Thread, error)

	AddMessage(ctx context.Context, threadID, senderID string, payload dto.MessageCreateRequest) (models.Message, error)
	ResolveMentions(ctx context.Context, threadID, content string) ([]string, error)
	SearchMessages(ctx context.Context, query string) ([]models.Message, error)

	MarkMessageAsRead(ctx context.Context, messageID, userID string) error
	MarkThreadAsRead(ctx context.Context, threadID, userID string) error
	MarkNotificationRead(ctx context.Context, notificationID, userID string) (models.Notification, error)

	GetNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	GetUnreadNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	UnreadSummary(ctx context.Context, userID string) (dto.UnreadSummaryResponse, error)

	GetAvailableUsers(ctx context.Context) ([]models.User, error)
	GetUsersByService(ctx context.Context, service models.Service) ([]models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
}

// MessagingOptions tunes the service behaviour.
type MessagingOptions struct {
	// StrictInvariants panics on a detected invariant violation instead of logging it.
	StrictInvariants bool
	Clock            func() time.Time
}

type messagingService struct {
	store          repository.MessagingStore
	users          repository.UserDirectory
	events         EventPublisher
	validator      *validator.Validate
	logger         zerolog.Logger
	tracer         trace.Tracer
	sanitizer      *bluemonday.Policy
	titlePolicy    *bluemonday.Policy
	mentionPattern *regexp.Regexp
	strict         bool
	now            func() time.Time
}

// plainText strips disallowed markup and decodes the entities bluemonday escapes,
// so stored text matches what the caller typed.
func plainText(policy *bluemonday.Policy, raw string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(raw)))
}

// NewMessagingService constructs the messaging service over a store and a user directory.
func NewMessagingService(store repository.MessagingStore, users repository.UserDirectory, events EventPublisher, validate *validator.Validate, logger zerolog.Logger, opts MessagingOptions) MessagingService {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("br")

	if events == nil {
		events = NopEventPublisher()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &messagingService{
		store:          store,
		users:          users,
		events:         events,
		validator:      validate,
		logger:         logger.With().Str("component", "messaging_service").Logger(),
		tracer:         otel.Tracer("github.com/noah-isme/dossier-messaging-api/internal/service/messaging"),
		sanitizer:      policy,
		titlePolicy:    bluemonday.StrictPolicy(),
		mentionPattern: regexp.MustCompile(`@([a-zA-Z0-9_\-:]+)`),
		strict:         opts.StrictInvariants,
		now:            clock,
	}
}

func (s *messagingService) GetAllThreads(ctx context.Context) ([]models.Thread, error) {
	return s.store.ListThreads(ctx)
}

func (s *messagingService) GetThreadByID(ctx context.Context, id string) (models.Thread, error) {
	thread, err := s.store.FindThread(ctx, id)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return models.Thread{}, notFound(ResourceThread, id)
	}
	return thread, err
}

func (s *messagingService) GetThreadByDossierRef(ctx context.Context, ref string) (models.Thread, error) {
	thread, err := s.store.FindThreadByDossierRef(ctx, strings.TrimSpace(ref))
	if errors.Is(err, repository.ErrRecordNotFound) {
		return models.Thread{}, notFound(ResourceThread, ref)
	}
	return thread, err
}

func (s *messagingService) CreateThread(ctx context.Context, payload dto.ThreadCreateRequest) (models.Thread, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.Thread{}, err
	}

	ref := strings.TrimSpace(payload.DossierRef)
	title := plainText(s.titlePolicy, payload.DossierTitle)
	if title == "" {
		// Markup-only titles sanitise to nothing.
		title = ref
	}

	participants, err := s.resolveParticipants(ctx, payload.ParticipantIDs)
	if err != nil {
		return models.Thread{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "messaging.create_thread", trace.WithAttributes(
		attribute.String("messaging.dossier_ref", ref),
		attribute.Int("messaging.participants", len(participants)),
	))
	defer span.End()

	now := s.now().UTC()
	thread := models.Thread{
		ID:           uuid.NewString(),
		DossierRef:   ref,
		DossierTitle: title,
		CreatedAt:    now,
		UpdatedAt:    now,
		Participants: participants,
		Messages:     []models.Message{},
		Metadata: models.ThreadMetadata{
			UnreadMessages: make(map[string]int, len(participants)),
			LastActivity:   now,
		},
	}
	for _, userID := range participants {
		thread.Metadata.UnreadMessages[userID] = 0
	}

	var created models.Thread
	err = s.store.Transaction(spanCtx, func(tx repository.MessagingTx) error {
		if _, err := tx.ThreadByDossierRef(ref); err == nil {
			return fmt.Errorf("%w: %s", ErrThreadExists, ref)
		}
		stored, err := tx.InsertThread(thread)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				return fmt.Errorf("%w: %s", ErrThreadExists, ref)
			}
			return err
		}
		created = stored.Clone()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return models.Thread{}, err
	}

	observability.ThreadsCreated().Inc()
	s.publish(spanCtx, MessagingEvent{Type: EventThreadCreated, ThreadID: created.ID, DossierRef: created.DossierRef, OccurredAt: now})
	s.logger.Info().Str("thread_id", created.ID).Str("dossier_ref", ref).Int("participants", len(participants)).Msg("thread created")

	return created, nil
}

func (s *messagingService) GetOrCreateThread(ctx context.Context, payload dto.ThreadCreateRequest) (models.Thread, bool, error) {
	thread, err := s.GetThreadByDossierRef(ctx, payload.DossierRef)
	if err == nil {
		return thread, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.Thread{}, false, err
	}

	thread, err = s.CreateThread(ctx, payload)
	if errors.Is(err, ErrThreadExists) {
		// Lost a race against another creator; the existing thread wins.
		thread, err = s.GetThreadByDossierRef(ctx, payload.DossierRef)
		return thread, false, err
	}
	if err != nil {
		return models.Thread{}, false, err
	}
	return thread, true, nil
}

func (s *messagingService) AddParticipant(ctx context.Context, threadID, userID string) (models.Thread, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return models.Thread{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "messaging.add_participant", trace.WithAttributes(
		attribute.String("messaging.thread_id", threadID),
		attribute.String("messaging.user_id", userID),
	))
	defer span.End()

	var (
		updated models.Thread
		added   bool
	)
	now := s.now().UTC()
	err = s.store.Transaction(spanCtx, func(tx repository.MessagingTx) error {
		thread, err := tx.Thread(threadID)
		if err != nil {
			return notFound(ResourceThread, threadID)
		}
		if !thread.HasParticipant(user.ID) {
			thread.Participants = append(thread.Participants, user.ID)
			thread.Metadata.UnreadMessages[user.ID] = countUnread(thread, user.ID)
			tx.InsertNotifications(models.Notification{
				ID:         uuid.NewString(),
				UserID:     user.ID,
				ThreadID:   thread.ID,
				DossierRef: thread.DossierRef,
				Type:       models.NotificationThreadUpdate,
				Timestamp:  now,
				Content:    fmt.Sprintf("You were added to the discussion of dossier %s", thread.DossierRef),
			})
			added = true
		}
		if err := s.enforceInvariants(thread); err != nil {
			return err
		}
		updated = thread.Clone()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return models.Thread{}, err
	}

	if added {
		observability.NotificationsEmitted().WithLabelValues(string(models.NotificationThreadUpdate)).Inc()
		s.publish(spanCtx, MessagingEvent{Type: EventParticipantAdded, ThreadID: updated.ID, DossierRef: updated.DossierRef, UserID: user.ID, OccurredAt: now})
		s.logger.Info().Str("thread_id", updated.ID).Str("user_id", user.ID).Msg("participant added")
	}

	return updated, nil
}

func (s *messagingService) ThreadsForUser(ctx context.Context, userID string) ([]models.Thread, error) {
	threads, err := s.store.ListThreads(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Thread, 0, len(threads))
	for _, thread := range threads {
		if thread.HasParticipant(userID) {
			out = append(out, thread)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Metadata.LastActivity.After(out[j].Metadata.LastActivity)
	})
	return out, nil
}

func (s *messagingService) SearchMessages(ctx context.Context, query string) ([]models.Message, error) {
	return s.store.SearchMessages(ctx, strings.TrimSpace(query))
}

func (s *messagingService) GetAvailableUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

func (s *messagingService) GetUsersByService(ctx context.Context, service models.Service) ([]models.User, error) {
	return s.users.ListByService(ctx, service)
}

func (s *messagingService) GetUser(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return models.User{}, notFound(ResourceUser, id)
	}
	return user, err
}

func (s *messagingService) resolveParticipants(ctx context.Context, ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if _, dup := seen[id]; dup {
			continue
		}
		if _, err := s.GetUser(ctx, id); err != nil {
			return nil, err
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func (s *messagingService) publish(ctx context.Context, event MessagingEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event", string(event.Type)).Msg("failed to publish messaging event")
	}
}

func countUnread(thread *models.Thread, userID string) int {
	count := 0
	for _, message := range thread.Messages {
		if !message.IsReadBy(userID) {
			count++
		}
	}
	return count
}
