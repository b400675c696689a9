package service

import (
	"fmt"

	"github.com/noah-isme/dossier-messaging-api/internal/models"
	"github.com/noah-isme/dossier-messaging-api/internal/observability"
)

// CheckThreadInvariants verifies the counters and ordering of a thread against its messages.
func CheckThreadInvariants(thread models.Thread) error {
	if len(thread.Participants) == 0 {
		return fmt.Errorf("%w: thread %s has no participants", ErrInvariantViolation, thread.ID)
	}
	if thread.Metadata.TotalMessages != len(thread.Messages) {
		return fmt.Errorf("%w: thread %s total_messages=%d but holds %d messages",
			ErrInvariantViolation, thread.ID, thread.Metadata.TotalMessages, len(thread.Messages))
	}

	for _, participant := range thread.Participants {
		stored := thread.Metadata.UnreadMessages[participant]
		if stored < 0 {
			return fmt.Errorf("%w: thread %s unread counter of %s is negative", ErrInvariantViolation, thread.ID, participant)
		}
		if expected := countUnread(&thread, participant); stored != expected {
			return fmt.Errorf("%w: thread %s unread counter of %s is %d, expected %d",
				ErrInvariantViolation, thread.ID, participant, stored, expected)
		}
	}

	for idx, message := range thread.Messages {
		if !message.IsReadBy(message.Sender.ID) {
			return fmt.Errorf("%w: message %s not read by its sender", ErrInvariantViolation, message.ID)
		}
		if idx > 0 && message.Timestamp.Before(thread.Messages[idx-1].Timestamp) {
			return fmt.Errorf("%w: message %s is older than its predecessor", ErrInvariantViolation, message.ID)
		}
		for _, mention := range message.Mentions {
			if !thread.HasParticipant(mention.UserID) {
				return fmt.Errorf("%w: message %s mentions non-participant %s", ErrInvariantViolation, message.ID, mention.UserID)
			}
		}
	}

	if last := len(thread.Messages); last > 0 {
		latest := thread.Messages[last-1].Timestamp
		if !thread.UpdatedAt.Equal(latest) || !thread.Metadata.LastActivity.Equal(latest) {
			return fmt.Errorf("%w: thread %s activity timestamps lag the latest message", ErrInvariantViolation, thread.ID)
		}
	}

	return nil
}

// enforceInvariants panics in strict mode so violations surface during development;
// otherwise the error is logged and returned, which rolls the transaction back.
func (s *messagingService) enforceInvariants(thread *models.Thread) error {
	err := CheckThreadInvariants(*thread)
	if err == nil {
		return nil
	}

	observability.InvariantFailures().Inc()
	if s.strict {
		panic(err)
	}
	s.logger.Error().Err(err).Str("thread_id", thread.ID).Msg("thread invariant violated")
	return err
}
