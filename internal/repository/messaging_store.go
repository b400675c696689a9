package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/noah-isme/dossier-messaging-api/internal/models"
)

// MessagingStore keeps threads, messages and notifications for the process.
// Reads return deep copies; mutations go through Transaction.
type MessagingStore interface {
	ListThreads(ctx context.Context) ([]models.Thread, error)
	FindThread(ctx context.Context, id string) (models.Thread, error)
	FindThreadByDossierRef(ctx context.Context, ref string) (models.Thread, error)
	SearchMessages(ctx context.Context, query string) ([]models.Message, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	Transaction(ctx context.Context, fn func(tx MessagingTx) error) error
	Snapshot(ctx context.Context) (Snapshot, error)
	Restore(ctx context.Context, snapshot Snapshot) error
	Reset(ctx context.Context) error
}

// MessagingTx gives mutable access to store state while the write lock is held.
// Pointers returned by a transaction must not escape fn.
type MessagingTx interface {
	Thread(id string) (*models.Thread, error)
	ThreadByDossierRef(ref string) (*models.Thread, error)
	LocateMessage(messageID string) (*models.Thread, int, error)
	InsertThread(thread models.Thread) (*models.Thread, error)
	InsertNotifications(items ...models.Notification)
	Notification(id string) (*models.Notification, error)
	MarkNotificationsRead(match func(models.Notification) bool) int
}

// Snapshot is a detached copy of the whole store state.
type Snapshot struct {
	Threads       []models.Thread       `json:"threads"`
	Notifications []models.Notification `json:"notifications"`
}

type storeState struct {
	threads       []*models.Thread
	byID          map[string]*models.Thread
	byRef         map[string]*models.Thread
	notifications []models.Notification
}

type messagingStore struct {
	mu    sync.RWMutex
	state *storeState
}

// NewMessagingStore constructs an empty in-memory store.
func NewMessagingStore() MessagingStore {
	return &messagingStore{state: newStoreState()}
}

func newStoreState() *storeState {
	return &storeState{
		byID:  make(map[string]*models.Thread),
		byRef: make(map[string]*models.Thread),
	}
}

func (s *storeState) clone() *storeState {
	out := newStoreState()
	for _, thread := range s.threads {
		copied := thread.Clone()
		out.add(&copied)
	}
	out.notifications = append([]models.Notification(nil), s.notifications...)
	return out
}

func (s *storeState) add(thread *models.Thread) {
	s.threads = append(s.threads, thread)
	s.byID[thread.ID] = thread
	s.byRef[thread.DossierRef] = thread
}

func (r *messagingStore) ListThreads(ctx context.Context) ([]models.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Thread, 0, len(r.state.threads))
	for _, thread := range r.state.threads {
		out = append(out, thread.Clone())
	}
	return out, nil
}

func (r *messagingStore) FindThread(ctx context.Context, id string) (models.Thread, error) {
	if err := ctx.Err(); err != nil {
		return models.Thread{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	thread, ok := r.state.byID[id]
	if !ok {
		return models.Thread{}, ErrRecordNotFound
	}
	return thread.Clone(), nil
}

func (r *messagingStore) FindThreadByDossierRef(ctx context.Context, ref string) (models.Thread, error) {
	if err := ctx.Err(); err != nil {
		return models.Thread{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	thread, ok := r.state.byRef[ref]
	if !ok {
		return models.Thread{}, ErrRecordNotFound
	}
	return thread.Clone(), nil
}

func (r *messagingStore) SearchMessages(ctx context.Context, query string) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	out := make([]models.Message, 0)
	if needle == "" {
		return out, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, thread := range r.state.threads {
		for _, message := range thread.Messages {
			if strings.Contains(strings.ToLower(message.Content), needle) {
				out = append(out, message.Clone())
			}
		}
	}
	return out, nil
}

func (r *messagingStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Notification, 0)
	for _, notification := range r.state.notifications {
		if notification.UserID != userID {
			continue
		}
		if unreadOnly && notification.Read {
			continue
		}
		out = append(out, notification)
	}
	return out, nil
}

// Transaction runs fn under the write lock. When fn fails or panics the state
// from before the call is restored.
func (r *messagingStore) Transaction(ctx context.Context, fn func(tx MessagingTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	backup := r.state.clone()
	defer func() {
		if recovered := recover(); recovered != nil {
			r.state = backup
			panic(recovered)
		}
	}()

	if err := fn(&messagingTx{state: r.state}); err != nil {
		r.state = backup
		return err
	}
	return nil
}

func (r *messagingStore) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := Snapshot{
		Threads:       make([]models.Thread, 0, len(r.state.threads)),
		Notifications: append([]models.Notification(nil), r.state.notifications...),
	}
	for _, thread := range r.state.threads {
		snapshot.Threads = append(snapshot.Threads, thread.Clone())
	}
	return snapshot, nil
}

func (r *messagingStore) Restore(ctx context.Context, snapshot Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	state := newStoreState()
	for _, thread := range snapshot.Threads {
		if _, exists := state.byID[thread.ID]; exists {
			return ErrDuplicateKey
		}
		if _, exists := state.byRef[thread.DossierRef]; exists {
			return ErrDuplicateKey
		}
		copied := thread.Clone()
		state.add(&copied)
	}
	state.notifications = append([]models.Notification(nil), snapshot.Notifications...)

	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
	return nil
}

func (r *messagingStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.state = newStoreState()
	r.mu.Unlock()
	return nil
}

type messagingTx struct {
	state *storeState
}

func (tx *messagingTx) Thread(id string) (*models.Thread, error) {
	thread, ok := tx.state.byID[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return thread, nil
}

func (tx *messagingTx) ThreadByDossierRef(ref string) (*models.Thread, error) {
	thread, ok := tx.state.byRef[ref]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return thread, nil
}

func (tx *messagingTx) LocateMessage(messageID string) (*models.Thread, int, error) {
	for _, thread := range tx.state.threads {
		for idx := range thread.Messages {
			if thread.Messages[idx].ID == messageID {
				return thread, idx, nil
			}
		}
	}
	return nil, -1, ErrRecordNotFound
}

func (tx *messagingTx) InsertThread(thread models.Thread) (*models.Thread, error) {
	if _, exists := tx.state.byID[thread.ID]; exists {
		return nil, ErrDuplicateKey
	}
	if _, exists := tx.state.byRef[thread.DossierRef]; exists {
		return nil, ErrDuplicateKey
	}
	copied := thread.Clone()
	tx.state.add(&copied)
	return &copied, nil
}

func (tx *messagingTx) InsertNotifications(items ...models.Notification) {
	tx.state.notifications = append(tx.state.notifications, items...)
}

func (tx *messagingTx) Notification(id string) (*models.Notification, error) {
	for idx := range tx.state.notifications {
		if tx.state.notifications[idx].ID == id {
			return &tx.state.notifications[idx], nil
		}
	}
	return nil, ErrRecordNotFound
}

func (tx *messagingTx) MarkNotificationsRead(match func(models.Notification) bool) int {
	marked := 0
	for idx := range tx.state.notifications {
		notification := &tx.state.notifications[idx]
		if notification.Read || !match(*notification) {
			continue
		}
		notification.Read = true
		marked++
	}
	return marked
}
