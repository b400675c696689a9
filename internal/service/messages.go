package service

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/dossier-messaging-api/internal/dto"
	"github.com/noah-isme/dossier-messaging-api/internal/models"
	"github.com/noah-isme/dossier-messaging-api/internal/observability"
	"github.com/noah-isme/dossier-messaging-api/internal/repository"
)

const defaultAttachmentContentType = "application/octet-stream"

func (s *messagingService) AddMessage(ctx context.Context, threadID, senderID string, payload dto.MessageCreateRequest) (models.Message, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.Message{}, err
	}

	sender, err := s.GetUser(ctx, senderID)
	if err != nil {
		return models.Message{}, err
	}

	content := plainText(s.sanitizer, payload.Content)
	if content == "" && len(payload.Attachments) == 0 {
		return models.Message{}, ErrEmptyMessage
	}

	mentioned, err := s.mentionedUsers(ctx, payload.MentionIDs)
	if err != nil {
		return models.Message{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "messaging.add_message", trace.WithAttributes(
		attribute.String("messaging.thread_id", threadID),
		attribute.String("messaging.sender_id", sender.ID),
		attribute.Int("messaging.mentions", len(mentioned)),
		attribute.Int("messaging.attachments", len(payload.Attachments)),
	))
	defer span.End()

	now := s.now().UTC()
	attachments := s.normalizeAttachments(payload.Attachments, now)

	var (
		created       models.Message
		notifications []models.Notification
	)
	err = s.store.Transaction(spanCtx, func(tx repository.MessagingTx) error {
		thread, err := tx.Thread(threadID)
		if err != nil {
			return notFound(ResourceThread, threadID)
		}
		if !thread.HasParticipant(sender.ID) {
			return invalidParticipant(sender.ID, thread.ID)
		}
		for _, user := range mentioned {
			if !thread.HasParticipant(user.ID) {
				return invalidParticipant(user.ID, thread.ID)
			}
		}

		timestamp := now
		if last := len(thread.Messages); last > 0 && thread.Messages[last-1].Timestamp.After(timestamp) {
			// Keep append order monotonic when the clock steps backwards.
			timestamp = thread.Messages[last-1].Timestamp
		}

		message := models.Message{
			ID:          uuid.NewString(),
			ThreadID:    thread.ID,
			DossierRef:  thread.DossierRef,
			Sender:      models.SenderFromUser(sender),
			Content:     content,
			Timestamp:   timestamp,
			Attachments: attachments,
			Mentions:    buildMentions(content, sender.ID, mentioned),
			ReadBy:      []string{sender.ID},
		}

		thread.Messages = append(thread.Messages, message)
		thread.UpdatedAt = timestamp
		thread.Metadata.TotalMessages = len(thread.Messages)
		thread.Metadata.LastActivity = timestamp
		for _, participant := range thread.Participants {
			if participant != sender.ID {
				thread.Metadata.UnreadMessages[participant]++
			}
		}

		notifications = deriveNotifications(thread, message, mentioned)
		tx.InsertNotifications(notifications...)

		if err := s.enforceInvariants(thread); err != nil {
			return err
		}
		created = message.Clone()
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return models.Message{}, err
	}

	observability.MessagesAppended().WithLabelValues(strconv.FormatBool(len(created.Attachments) > 0)).Inc()
	for _, notification := range notifications {
		observability.NotificationsEmitted().WithLabelValues(string(notification.Type)).Inc()
	}
	s.publish(spanCtx, MessagingEvent{
		Type:       EventMessageCreated,
		ThreadID:   created.ThreadID,
		DossierRef: created.DossierRef,
		MessageID:  created.ID,
		UserID:     sender.ID,
		OccurredAt: created.Timestamp,
	})
	s.logger.Info().
		Str("thread_id", created.ThreadID).
		Str("message_id", created.ID).
		Str("sender_id", sender.ID).
		Int("notifications", len(notifications)).
		Msg("message added")

	return created, nil
}

// ResolveMentions maps "@Full Name" and "@user-id" tokens in content to thread participants.
func (s *messagingService) ResolveMentions(ctx context.Context, threadID, content string) ([]string, error) {
	thread, err := s.GetThreadByID(ctx, threadID)
	if err != nil {
		return nil, err
	}

	tokens := make(map[string]struct{})
	for _, match := range s.mentionPattern.FindAllStringSubmatch(content, -1) {
		if len(match) > 1 {
			tokens[match[1]] = struct{}{}
		}
	}
	lowered := strings.ToLower(content)

	out := make([]string, 0)
	for _, participant := range thread.Participants {
		user, err := s.GetUser(ctx, participant)
		if err != nil {
			continue
		}
		_, byID := tokens[user.ID]
		byName := user.Name != "" && strings.Contains(lowered, "@"+strings.ToLower(user.Name))
		if byID || byName {
			out = append(out, user.ID)
		}
	}
	return out, nil
}

func (s *messagingService) mentionedUsers(ctx context.Context, ids []string) ([]models.User, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]models.User, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		user, err := s.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, nil
}

func (s *messagingService) normalizeAttachments(items []dto.AttachmentRequest, uploadedAt time.Time) []models.Attachment {
	if len(items) == 0 {
		return nil
	}

	out := make([]models.Attachment, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		contentType := strings.TrimSpace(item.ContentType)
		extension := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")

		if mime := mimetype.Lookup(contentType); mime != nil {
			contentType = mime.String()
			if extension == "" {
				extension = strings.TrimPrefix(mime.Extension(), ".")
			}
		} else {
			if contentType != "" {
				s.logger.Debug().Str("content_type", contentType).Str("attachment", name).Msg("unknown attachment content type")
			}
			contentType = defaultAttachmentContentType
		}
		if extension == "" {
			extension = "bin"
		}

		out = append(out, models.Attachment{
			ID:          uuid.NewString(),
			Name:        name,
			Type:        extension,
			Size:        item.Size,
			URL:         strings.TrimSpace(item.URL),
			UploadedAt:  uploadedAt,
			ContentType: contentType,
		})
	}
	return out
}

// buildMentions locates the first "@Name" occurrence of every mentioned user.
func buildMentions(content, senderID string, mentioned []models.User) []models.Mention {
	if len(mentioned) == 0 {
		return nil
	}

	out := make([]models.Mention, 0, len(mentioned))
	for _, user := range mentioned {
		text := "@" + user.Name
		position := strings.Index(content, text)
		if position < 0 {
			if byID := strings.Index(content, "@"+user.ID); byID >= 0 {
				text = "@" + user.ID
				position = byID
			}
		}
		out = append(out, models.Mention{
			UserID:   user.ID,
			UserName: user.Name,
			Position: position,
			Length:   len(text),
			Read:     user.ID == senderID,
		})
	}
	return out
}

// deriveNotifications emits one mention per mentioned user, one new_message per
// other recipient and, with attachments, one attachment notice per recipient.
func deriveNotifications(thread *models.Thread, message models.Message, mentioned []models.User) []models.Notification {
	senderID := message.Sender.ID
	mentionedIDs := make(map[string]struct{}, len(mentioned))
	out := make([]models.Notification, 0, len(thread.Participants)*2)

	newNotification := func(userID string, kind models.NotificationType, content string) models.Notification {
		return models.Notification{
			ID:         uuid.NewString(),
			UserID:     userID,
			MessageID:  message.ID,
			ThreadID:   thread.ID,
			DossierRef: thread.DossierRef,
			Type:       kind,
			Timestamp:  message.Timestamp,
			Content:    content,
		}
	}

	for _, user := range mentioned {
		if user.ID == senderID {
			continue
		}
		mentionedIDs[user.ID] = struct{}{}
		out = append(out, newNotification(user.ID, models.NotificationMention,
			fmt.Sprintf("%s mentioned you on dossier %s", message.Sender.Name, thread.DossierRef)))
	}

	for _, participant := range thread.Participants {
		if participant == senderID {
			continue
		}
		if _, ok := mentionedIDs[participant]; ok {
			continue
		}
		out = append(out, newNotification(participant, models.NotificationNewMessage,
			fmt.Sprintf("New message from %s on dossier %s", message.Sender.Name, thread.DossierRef)))
	}

	if len(message.Attachments) > 0 {
		for _, participant := range thread.Participants {
			if participant == senderID {
				continue
			}
			out = append(out, newNotification(participant, models.NotificationAttachment,
				fmt.Sprintf("%s shared %s on dossier %s", message.Sender.Name, describeFiles(len(message.Attachments)), thread.DossierRef)))
		}
	}

	return out
}

func describeFiles(count int) string {
	if count == 1 {
		return "a file"
	}
	return fmt.Sprintf("%d files", count)
}
