package models

import "time"

// Service identifies the back-office service a user belongs to.
type Service string

const (
	ServiceQualification  Service = "qualification"
	ServiceConfirmation   Service = "confirmation"
	ServiceAdministrative Service = "administratif"
	ServiceTechnicalVisit Service = "visite_technique"
	ServiceInstallation   Service = "installation"
	ServiceBilling        Service = "facturation"
	ServiceDirection      Service = "direction"
	ServiceSupport        Service = "support"
)

var knownServices = map[Service]struct{}{
	ServiceQualification:  {},
	ServiceConfirmation:   {},
	ServiceAdministrative: {},
	ServiceTechnicalVisit: {},
	ServiceInstallation:   {},
	ServiceBilling:        {},
	ServiceDirection:      {},
	ServiceSupport:        {},
}

// Valid reports whether the service is part of the workflow.
func (s Service) Valid() bool {
	_, ok := knownServices[s]
	return ok
}

// NotificationType enumerates the events that produce notifications.
type NotificationType string

const (
	NotificationNewMessage   NotificationType = "new_message"
	NotificationMention      NotificationType = "mention"
	NotificationAttachment   NotificationType = "attachment"
	NotificationThreadUpdate NotificationType = "thread_update"
)

// User is a messaging participant from the static directory.
type User struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Service Service `json:"service"`
	Role    string  `json:"role"`
	Avatar  string  `json:"avatar,omitempty"`
}

// Sender is the denormalised author block embedded in each message.
type Sender struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Avatar  string  `json:"avatar,omitempty"`
	Service Service `json:"service"`
}

// SenderFromUser builds the embedded sender block for a directory user.
func SenderFromUser(user User) Sender {
	return Sender{ID: user.ID, Name: user.Name, Avatar: user.Avatar, Service: user.Service}
}

// Attachment describes a file shared in a message. Only metadata is kept.
type Attachment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Size        int64     `json:"size"`
	URL         string    `json:"url"`
	UploadedAt  time.Time `json:"uploaded_at"`
	ContentType string    `json:"content_type"`
}

// Mention is a call-out of a participant inside message content.
// Position is the byte offset of "@Name" in the content, or -1 when absent.
type Mention struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Position int    `json:"position"`
	Length   int    `json:"length"`
	Read     bool   `json:"read"`
}

// Message is a single entry appended to a thread.
type Message struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id"`
	DossierRef  string       `json:"dossier_ref"`
	Sender      Sender       `json:"sender"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Mentions    []Mention    `json:"mentions,omitempty"`
	ReadBy      []string     `json:"read_by"`
}

// IsReadBy reports whether the given user already acknowledged the message.
func (m Message) IsReadBy(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ThreadMetadata carries counters derived from the message list.
type ThreadMetadata struct {
	TotalMessages  int            `json:"total_messages"`
	UnreadMessages map[string]int `json:"unread_messages"`
	LastActivity   time.Time      `json:"last_activity"`
}

// Thread is the discussion attached to exactly one dossier.
type Thread struct {
	ID           string         `json:"id"`
	DossierRef   string         `json:"dossier_ref"`
	DossierTitle string         `json:"dossier_title"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Participants []string       `json:"participants"`
	Messages     []Message      `json:"messages"`
	Metadata     ThreadMetadata `json:"metadata"`
}

// HasParticipant reports whether userID takes part in the thread.
func (t Thread) HasParticipant(userID string) bool {
	for _, id := range t.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// Notification is a per-user record derived from a message event.
type Notification struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	MessageID  string           `json:"message_id,omitempty"`
	ThreadID   string           `json:"thread_id"`
	DossierRef string           `json:"dossier_ref"`
	Type       NotificationType `json:"type"`
	Read       bool             `json:"read"`
	Timestamp  time.Time        `json:"timestamp"`
	Content    string           `json:"content"`
}
