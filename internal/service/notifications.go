package service

import (
	"context"

	"github.com/noah-isme/dossier-messaging-api/internal/dto"
	"github.com/noah-isme/dossier-messaging-api/internal/models"
)

func (s *messagingService) GetNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.store.ListNotifications(ctx, userID, false)
}

func (s *messagingService) GetUnreadNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.store.ListNotifications(ctx, userID, true)
}

func (s *messagingService) UnreadSummary(ctx context.Context, userID string) (dto.UnreadSummaryResponse, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return dto.UnreadSummaryResponse{}, err
	}

	threads, err := s.ThreadsForUser(ctx, userID)
	if err != nil {
		return dto.UnreadSummaryResponse{}, err
	}
	unread, err := s.store.ListNotifications(ctx, userID, true)
	if err != nil {
		return dto.UnreadSummaryResponse{}, err
	}

	summary := dto.UnreadSummaryResponse{
		UserID:              userID,
		UnreadNotifications: len(unread),
		Threads:             make([]dto.ThreadUnread, 0, len(threads)),
	}
	for _, thread := range threads {
		count := thread.Metadata.UnreadMessages[userID]
		summary.TotalUnread += count
		summary.Threads = append(summary.Threads, dto.ThreadUnread{
			ThreadID:     thread.ID,
			DossierRef:   thread.DossierRef,
			DossierTitle: thread.DossierTitle,
			Unread:       count,
			LastActivity: thread.Metadata.LastActivity,
		})
	}
	return summary, nil
}
