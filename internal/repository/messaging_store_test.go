package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dossier-messaging-api/internal/models"
)

func sampleThread(id, ref string) models.Thread {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return models.Thread{
		ID:           id,
		DossierRef:   ref,
		DossierTitle: "Dossier " + ref,
		CreatedAt:    now,
		UpdatedAt:    now,
		Participants: []string{"qual-marie", "conf-julien"},
		Messages: []models.Message{{
			ID:        id + "-m1",
			ThreadID:  id,
			Content:   "Devis signe",
			Sender:    models.Sender{ID: "qual-marie"},
			Timestamp: now,
			ReadBy:    []string{"qual-marie"},
		}},
		Metadata: models.ThreadMetadata{
			TotalMessages:  1,
			UnreadMessages: map[string]int{"qual-marie": 0, "conf-julien": 1},
			LastActivity:   now,
		},
	}
}

func insert(t *testing.T, store MessagingStore, threads ...models.Thread) {
	t.Helper()
	require.NoError(t, store.Transaction(context.Background(), func(tx MessagingTx) error {
		for _, thread := range threads {
			if _, err := tx.InsertThread(thread); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestMessagingStoreLookupsReturnCopies(t *testing.T) {
	store := NewMessagingStore()
	insert(t, store, sampleThread("t-1", "DOS-1"))
	ctx := context.Background()

	byID, err := store.FindThread(ctx, "t-1")
	require.NoError(t, err)
	byRef, err := store.FindThreadByDossierRef(ctx, "DOS-1")
	require.NoError(t, err)
	require.Equal(t, byID, byRef)

	byID.Metadata.UnreadMessages["conf-julien"] = 99
	byID.Messages[0].ReadBy[0] = "tampered"

	again, err := store.FindThread(ctx, "t-1")
	require.NoError(t, err)
	require.Equal(t, 1, again.Metadata.UnreadMessages["conf-julien"])
	require.Equal(t, "qual-marie", again.Messages[0].ReadBy[0])

	_, err = store.FindThread(ctx, "missing")
	require.ErrorIs(t, err, ErrRecordNotFound)
	_, err = store.FindThreadByDossierRef(ctx, "missing")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMessagingStoreRejectsDuplicates(t *testing.T) {
	store := NewMessagingStore()
	insert(t, store, sampleThread("t-1", "DOS-1"))

	err := store.Transaction(context.Background(), func(tx MessagingTx) error {
		_, err := tx.InsertThread(sampleThread("t-2", "DOS-1"))
		return err
	})
	require.ErrorIs(t, err, ErrDuplicateKey)

	err = store.Transaction(context.Background(), func(tx MessagingTx) error {
		_, err := tx.InsertThread(sampleThread("t-1", "DOS-2"))
		return err
	})
	require.ErrorIs(t, err, ErrDuplicateKey)

	threads, err := store.ListThreads(context.Background())
	require.NoError(t, err)
	require.Len(t, threads, 1)
}

func TestMessagingStoreTransactionRollsBack(t *testing.T) {
	store := NewMessagingStore()
	insert(t, store, sampleThread("t-1", "DOS-1"))
	ctx := context.Background()
	before, err := store.Snapshot(ctx)
	require.NoError(t, err)

	failure := errors.New("abort")
	err = store.Transaction(ctx, func(tx MessagingTx) error {
		thread, err := tx.Thread("t-1")
		if err != nil {
			return err
		}
		thread.Metadata.UnreadMessages["conf-julien"] = 0
		thread.Messages = append(thread.Messages, models.Message{ID: "t-1-m2"})
		tx.InsertNotifications(models.Notification{ID: "n-1", UserID: "conf-julien"})
		if _, err := tx.InsertThread(sampleThread("t-2", "DOS-2")); err != nil {
			return err
		}
		return failure
	})
	require.ErrorIs(t, err, failure)

	after, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)

	_, err = store.FindThreadByDossierRef(ctx, "DOS-2")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMessagingStoreTransactionRollsBackOnPanic(t *testing.T) {
	store := NewMessagingStore()
	insert(t, store, sampleThread("t-1", "DOS-1"))
	ctx := context.Background()

	require.Panics(t, func() {
		_ = store.Transaction(ctx, func(tx MessagingTx) error {
			thread, _ := tx.Thread("t-1")
			thread.Participants = nil
			panic("invariant")
		})
	})

	thread, err := store.FindThread(ctx, "t-1")
	require.NoError(t, err)
	require.Len(t, thread.Participants, 2)

	// the lock must have been released
	insert(t, store, sampleThread("t-2", "DOS-2"))
}

func TestMessagingStoreLocateMessage(t *testing.T) {
	store := NewMessagingStore()
	insert(t, store, sampleThread("t-1", "DOS-1"), sampleThread("t-2", "DOS-2"))

	require.NoError(t, store.Transaction(context.Background(), func(tx MessagingTx) error {
		thread, idx, err := tx.LocateMessage("t-2-m1")
		require.NoError(t, err)
		require.Equal(t, "t-2", thread.ID)
		require.Equal(t, 0, idx)

		_, idx, err = tx.LocateMessage("nope")
		require.ErrorIs(t, err, ErrRecordNotFound)
		require.Equal(t, -1, idx)
		return nil
	}))
}

func TestMessagingStoreSearchMessages(t *testing.T) {
	store := NewMessagingStore()
	insert(t, store, sampleThread("t-1", "DOS-1"), sampleThread("t-2", "DOS-2"))
	ctx := context.Background()

	results, err := store.SearchMessages(ctx, "DEVIS")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "t-1-m1", results[0].ID)

	results, err = store.SearchMessages(ctx, "")
	require.NoError(t, err)
	require.Empty(t, results)
	require.NotNil(t, results)
}

func TestMessagingStoreNotifications(t *testing.T) {
	store := NewMessagingStore()
	ctx := context.Background()

	require.NoError(t, store.Transaction(ctx, func(tx MessagingTx) error {
		tx.InsertNotifications(
			models.Notification{ID: "n-1", UserID: "conf-julien", ThreadID: "t-1"},
			models.Notification{ID: "n-2", UserID: "conf-julien", ThreadID: "t-2"},
			models.Notification{ID: "n-3", UserID: "qual-marie", ThreadID: "t-1"},
		)
		return nil
	}))

	require.NoError(t, store.Transaction(ctx, func(tx MessagingTx) error {
		marked := tx.MarkNotificationsRead(func(n models.Notification) bool {
			return n.UserID == "conf-julien" && n.ThreadID == "t-1"
		})
		require.Equal(t, 1, marked)
		notification, err := tx.Notification("n-3")
		require.NoError(t, err)
		require.False(t, notification.Read)
		_, err = tx.Notification("n-9")
		require.ErrorIs(t, err, ErrRecordNotFound)
		return nil
	}))

	all, err := store.ListNotifications(ctx, "conf-julien", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	unread, err := store.ListNotifications(ctx, "conf-julien", true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, "n-2", unread[0].ID)
}

func TestMessagingStoreSnapshotRestoreReset(t *testing.T) {
	store := NewMessagingStore()
	insert(t, store, sampleThread("t-1", "DOS-1"))
	ctx := context.Background()

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx))
	threads, err := store.ListThreads(ctx)
	require.NoError(t, err)
	require.Empty(t, threads)

	require.NoError(t, store.Restore(ctx, snapshot))
	restored, err := store.FindThreadByDossierRef(ctx, "DOS-1")
	require.NoError(t, err)
	require.Equal(t, snapshot.Threads[0], restored)

	duplicate := Snapshot{Threads: []models.Thread{sampleThread("t-1", "A"), sampleThread("t-1", "B")}}
	require.ErrorIs(t, store.Restore(ctx, duplicate), ErrDuplicateKey)
	_, err = store.FindThread(ctx, "t-1")
	require.NoError(t, err, "failed restore keeps the previous state")
}

func TestMessagingStoreHonoursCancelledContext(t *testing.T) {
	store := NewMessagingStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.ListThreads(ctx)
	require.ErrorIs(t, err, context.Canceled)
	err = store.Transaction(ctx, func(MessagingTx) error {
		t.Fatal("transaction body must not run")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestMessagingStoreConcurrentAccess(t *testing.T) {
	store := NewMessagingStore()
	insert(t, store, sampleThread("t-1", "DOS-1"))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Transaction(ctx, func(tx MessagingTx) error {
				thread, err := tx.Thread("t-1")
				if err != nil {
					return err
				}
				thread.Metadata.UnreadMessages["conf-julien"]++
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_, _ = store.ListThreads(ctx)
		}()
	}
	wg.Wait()

	thread, err := store.FindThread(ctx, "t-1")
	require.NoError(t, err)
	require.Equal(t, 21, thread.Metadata.UnreadMessages["conf-julien"])
}
