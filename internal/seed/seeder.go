package seed

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/dossier-messaging-api/internal/dto"
	"github.com/noah-isme/dossier-messaging-api/internal/repository"
	"github.com/noah-isme/dossier-messaging-api/internal/service"
)

var (
	// ErrSeedDisabled indicates the reseed tooling has no token configured.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// Result counts what a seeding run created.
type Result struct {
	Threads  int `json:"threads"`
	Messages int `json:"messages"`
}

// Seeder replays a Document through the messaging service.
type Seeder interface {
	Apply(ctx context.Context) (Result, error)
	Reseed(ctx context.Context, token string) (Result, error)
}

type seeder struct {
	store    repository.MessagingStore
	messages service.MessagingService
	doc      Document
	token    string
	logger   zerolog.Logger
}

// NewSeeder constructs a seeder. An empty token disables Reseed.
func NewSeeder(store repository.MessagingStore, messages service.MessagingService, doc Document, token string, logger zerolog.Logger) Seeder {
	return &seeder{
		store:    store,
		messages: messages,
		doc:      doc,
		token:    strings.TrimSpace(token),
		logger:   logger.With().Str("component", "seeder").Logger(),
	}
}

// Apply creates missing threads. Threads that already exist are left untouched.
// The document is checked before any mutation and a thread that fails midway is
// rolled back, so a later Apply never finds it half seeded.
func (s *seeder) Apply(ctx context.Context) (Result, error) {
	for _, item := range s.doc.Threads {
		if err := s.check(ctx, item); err != nil {
			return Result{}, fmt.Errorf("seed thread %s: %w", item.DossierRef, err)
		}
	}

	var result Result
	for _, item := range s.doc.Threads {
		snapshot, err := s.store.Snapshot(ctx)
		if err != nil {
			return result, err
		}

		created, messages, err := s.applyThread(ctx, item)
		if err != nil {
			if restoreErr := s.store.Restore(ctx, snapshot); restoreErr != nil {
				s.logger.Error().Err(restoreErr).Str("dossier_ref", item.DossierRef).Msg("seed rollback failed")
				return result, errors.Join(err, restoreErr)
			}
			return result, err
		}
		if created {
			result.Threads++
			result.Messages += messages
		}
	}

	s.logger.Info().Int("threads", result.Threads).Int("messages", result.Messages).Msg("seed applied")
	return result, nil
}

func (s *seeder) applyThread(ctx context.Context, item ThreadSeed) (bool, int, error) {
	thread, created, err := s.messages.GetOrCreateThread(ctx, dto.ThreadCreateRequest{
		DossierRef:     item.DossierRef,
		DossierTitle:   item.DossierTitle,
		ParticipantIDs: item.Participants,
	})
	if err != nil {
		return false, 0, fmt.Errorf("seed thread %s: %w", item.DossierRef, err)
	}
	if !created {
		return false, 0, nil
	}

	for idx, message := range item.Messages {
		posted, err := s.messages.AddMessage(ctx, thread.ID, message.SenderID, dto.MessageCreateRequest{
			Content:     message.Content,
			Attachments: message.Attachments,
			MentionIDs:  message.MentionIDs,
		})
		if err != nil {
			return true, idx, fmt.Errorf("seed message %d of %s: %w", idx, item.DossierRef, err)
		}
		for _, reader := range message.ReadBy {
			if err := s.messages.MarkMessageAsRead(ctx, posted.ID, reader); err != nil {
				return true, idx, fmt.Errorf("seed read of %s by %s: %w", posted.ID, reader, err)
			}
		}
	}
	return true, len(item.Messages), nil
}

// check resolves every user a thread seed references against its participants.
func (s *seeder) check(ctx context.Context, item ThreadSeed) error {
	participants := make(map[string]struct{}, len(item.Participants))
	for _, id := range item.Participants {
		if _, err := s.messages.GetUser(ctx, id); err != nil {
			return err
		}
		participants[id] = struct{}{}
	}

	member := func(id string) error {
		if _, ok := participants[id]; !ok {
			return fmt.Errorf("%w: %s", service.ErrInvalidParticipant, id)
		}
		return nil
	}
	for idx, message := range item.Messages {
		if strings.TrimSpace(message.Content) == "" && len(message.Attachments) == 0 {
			return fmt.Errorf("message %d: %w", idx, service.ErrEmptyMessage)
		}
		if err := member(message.SenderID); err != nil {
			return fmt.Errorf("message %d sender: %w", idx, err)
		}
		for _, id := range message.MentionIDs {
			if err := member(id); err != nil {
				return fmt.Errorf("message %d mention: %w", idx, err)
			}
		}
		for _, id := range message.ReadBy {
			if err := member(id); err != nil {
				return fmt.Errorf("message %d reader: %w", idx, err)
			}
		}
	}
	return nil
}

// Reseed wipes the store and applies the document again.
func (s *seeder) Reseed(ctx context.Context, token string) (Result, error) {
	if s.token == "" {
		return Result{}, ErrSeedDisabled
	}
	if subtle.ConstantTimeCompare([]byte(s.token), []byte(strings.TrimSpace(token))) != 1 {
		return Result{}, ErrSeedUnauthorized
	}
	if err := s.store.Reset(ctx); err != nil {
		return Result{}, err
	}
	return s.Apply(ctx)
}
