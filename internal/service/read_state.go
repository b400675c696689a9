package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/dossier-messaging-api/internal/models"
	"github.com/noah-isme/dossier-messaging-api/internal/observability"
	"github.com/noah-isme/dossier-messaging-api/internal/repository"
)

func (s *messagingService) MarkMessageAsRead(ctx context.Context, messageID, userID string) error {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}

	spanCtx, span := s.tracer.Start(ctx, "messaging.mark_message_read", trace.WithAttributes(
		attribute.String("messaging.message_id", messageID),
		attribute.String("messaging.user_id", userID),
	))
	defer span.End()

	var (
		threadID   string
		dossierRef string
		changed    bool
	)
	err := s.store.Transaction(spanCtx, func(tx repository.MessagingTx) error {
		thread, idx, err := tx.LocateMessage(messageID)
		if err != nil {
			return notFound(ResourceMessage, messageID)
		}
		if !thread.HasParticipant(userID) {
			return invalidParticipant(userID, thread.ID)
		}
		threadID, dossierRef = thread.ID, thread.DossierRef

		message := &thread.Messages[idx]
		if message.IsReadBy(userID) {
			return nil
		}

		applyRead(message, userID)
		if thread.Metadata.UnreadMessages[userID] > 0 {
			thread.Metadata.UnreadMessages[userID]--
		}
		tx.MarkNotificationsRead(func(n models.Notification) bool {
			return n.UserID == userID && n.MessageID == messageID
		})
		changed = true

		return s.enforceInvariants(thread)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	if changed {
		observability.ReadOperations().WithLabelValues("message").Inc()
		s.publish(spanCtx, MessagingEvent{Type: EventMessageRead, ThreadID: threadID, DossierRef: dossierRef, MessageID: messageID, UserID: userID})
	}
	return nil
}

func (s *messagingService) MarkThreadAsRead(ctx context.Context, threadID, userID string) error {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}

	spanCtx, span := s.tracer.Start(ctx, "messaging.mark_thread_read", trace.WithAttributes(
		attribute.String("messaging.thread_id", threadID),
		attribute.String("messaging.user_id", userID),
	))
	defer span.End()

	var (
		dossierRef    string
		marked        int
		notifications int
	)
	err := s.store.Transaction(spanCtx, func(tx repository.MessagingTx) error {
		thread, err := tx.Thread(threadID)
		if err != nil {
			return notFound(ResourceThread, threadID)
		}
		if !thread.HasParticipant(userID) {
			return invalidParticipant(userID, thread.ID)
		}
		dossierRef = thread.DossierRef

		for idx := range thread.Messages {
			if applyRead(&thread.Messages[idx], userID) {
				marked++
			}
		}
		thread.Metadata.UnreadMessages[userID] = 0
		notifications = tx.MarkNotificationsRead(func(n models.Notification) bool {
			return n.UserID == userID && n.ThreadID == threadID
		})

		return s.enforceInvariants(thread)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	observability.ReadOperations().WithLabelValues("thread").Inc()
	s.publish(spanCtx, MessagingEvent{Type: EventThreadRead, ThreadID: threadID, DossierRef: dossierRef, UserID: userID})
	s.logger.Debug().
		Str("thread_id", threadID).
		Str("user_id", userID).
		Int("messages", marked).
		Int("notifications", notifications).
		Msg("thread marked as read")
	return nil
}

func (s *messagingService) MarkNotificationRead(ctx context.Context, notificationID, userID string) (models.Notification, error) {
	var (
		updated models.Notification
		changed bool
	)
	err := s.store.Transaction(ctx, func(tx repository.MessagingTx) error {
		notification, err := tx.Notification(notificationID)
		if errors.Is(err, repository.ErrRecordNotFound) || (err == nil && notification.UserID != userID) {
			return notFound(ResourceNotification, notificationID)
		}
		if err != nil {
			return err
		}
		if !notification.Read {
			notification.Read = true
			changed = true
		}
		updated = *notification
		return nil
	})
	if err != nil {
		return models.Notification{}, err
	}

	if changed {
		observability.ReadOperations().WithLabelValues("notification").Inc()
		s.publish(ctx, MessagingEvent{Type: EventNotificationRead, ThreadID: updated.ThreadID, DossierRef: updated.DossierRef, MessageID: updated.MessageID, UserID: userID})
	}
	return updated, nil
}

// applyRead records userID in readBy and flips its mentions. It reports false
// when the message was already read.
func applyRead(message *models.Message, userID string) bool {
	if message.IsReadBy(userID) {
		return false
	}
	message.ReadBy = append(message.ReadBy, userID)
	for idx := range message.Mentions {
		if message.Mentions[idx].UserID == userID {
			message.Mentions[idx].Read = true
		}
	}
	return true
}
