package dto

import (
	"time"

	"github.com/noah-isme/dossier-messaging-api/internal/models"
)

// ThreadCreateRequest is the payload to open the discussion of a dossier.
type ThreadCreateRequest struct {
	DossierRef     string   `json:"dossier_ref" validate:"required,min=2,max=64"`
	DossierTitle   string   `json:"dossier_title" validate:"required,min=1,max=255"`
	ParticipantIDs []string `json:"participant_ids" validate:"required,min=1,dive,required,max=64"`
}

// ParticipantAddRequest adds a directory user to an existing thread.
type ParticipantAddRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
}

// AttachmentRequest describes a file already uploaded elsewhere.
type AttachmentRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Size        int64  `json:"size" validate:"gte=0"`
	URL         string `json:"url" validate:"omitempty,max=2048"`
	ContentType string `json:"content_type" validate:"omitempty,max=255"`
}

// MessageCreateRequest is the payload appended to a thread.
type MessageCreateRequest struct {
	Content     string              `json:"content" validate:"max=5000"`
	Attachments []AttachmentRequest `json:"attachments" validate:"omitempty,max=20,dive"`
	MentionIDs  []string            `json:"mention_ids" validate:"omitempty,max=50,dive,required,max=64"`
}

// ThreadUnread is the unread counter of one thread for the acting user.
type ThreadUnread struct {
	ThreadID     string    `json:"thread_id"`
	DossierRef   string    `json:"dossier_ref"`
	DossierTitle string    `json:"dossier_title"`
	Unread       int       `json:"unread"`
	LastActivity time.Time `json:"last_activity"`
}

// UnreadSummaryResponse feeds the sidebar badges of the UI.
type UnreadSummaryResponse struct {
	UserID              string         `json:"user_id"`
	TotalUnread         int            `json:"total_unread"`
	UnreadNotifications int            `json:"unread_notifications"`
	Threads             []ThreadUnread `json:"threads"`
}

// ThreadSummaryResponse is a thread without its message list.
type ThreadSummaryResponse struct {
	ID           string                `json:"id"`
	DossierRef   string                `json:"dossier_ref"`
	DossierTitle string                `json:"dossier_title"`
	Participants []string              `json:"participants"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	Metadata     models.ThreadMetadata `json:"metadata"`
}

// NewThreadSummaryResponse strips messages from a thread.
func NewThreadSummaryResponse(thread models.Thread) ThreadSummaryResponse {
	return ThreadSummaryResponse{
		ID:           thread.ID,
		DossierRef:   thread.DossierRef,
		DossierTitle: thread.DossierTitle,
		Participants: thread.Participants,
		CreatedAt:    thread.CreatedAt,
		UpdatedAt:    thread.UpdatedAt,
		Metadata:     thread.Metadata,
	}
}

// NewThreadSummaryResponseSlice converts threads into summaries.
func NewThreadSummaryResponseSlice(threads []models.Thread) []ThreadSummaryResponse {
	out := make([]ThreadSummaryResponse, 0, len(threads))
	for _, thread := range threads {
		out = append(out, NewThreadSummaryResponse(thread))
	}
	return out
}

// ThreadUpsertResponse reports whether GetOrCreate opened a new thread.
type ThreadUpsertResponse struct {
	Thread  models.Thread `json:"thread"`
	Created bool          `json:"created"`
}
