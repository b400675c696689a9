package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrInvalidParticipant indicates a sender, reader or mention outside the thread participants.
	ErrInvalidParticipant = errors.New("user is not a participant of the thread")
	// ErrEmptyMessage indicates a message with neither content nor attachments.
	ErrEmptyMessage = errors.New("message has no content and no attachments")
	// ErrThreadExists indicates a second thread was requested for the same dossier.
	ErrThreadExists = errors.New("thread already exists for dossier")
	// ErrInvariantViolation is raised when stored counters disagree with the messages.
	ErrInvariantViolation = errors.New("messaging invariant violated")
)

// Resource names the kind of entity a lookup missed.
type Resource string

const (
	ResourceThread       Resource = "thread"
	ResourceMessage      Resource = "message"
	ResourceUser         Resource = "user"
	ResourceNotification Resource = "notification"
)

// NotFoundError reports a lookup miss for a specific resource.
type NotFoundError struct {
	Resource Resource
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) hold for every resource.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(resource Resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func invalidParticipant(userID, threadID string) error {
	return fmt.Errorf("%w: %s in thread %s", ErrInvalidParticipant, userID, threadID)
}
