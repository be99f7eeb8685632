package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeUnderTest lets the same suite run against both implementations.
func storeUnderTest(t *testing.T, name string) Store {
	t.Helper()
	switch name {
	case "memory":
		return NewMemoryStore()
	case "sqlite":
		store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "teachd.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	default:
		t.Fatalf("unknown store %q", name)
		return nil
	}
}

func TestStoreSessionLifecycle(t *testing.T) {
	for _, name := range []string{"memory", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			store := storeUnderTest(t, name)
			ctx := context.Background()

			sess := &Session{
				Title:    "Grade 3 Math",
				Subjects: []string{"Mathematics"},
				Grades:   []int{3, 4},
				Language: "en",
			}
			require.NoError(t, store.CreateSession(ctx, sess))
			require.NotEmpty(t, sess.ID)

			got, err := store.GetSession(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, "Grade 3 Math", got.Title)
			assert.Equal(t, []string{"Mathematics"}, got.Subjects)
			assert.Equal(t, []int{3, 4}, got.Grades)
			assert.Equal(t, "en", got.Language)

			got.Title = "Renamed"
			require.NoError(t, store.UpdateSession(ctx, got))

			updated, err := store.GetSession(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, "Renamed", updated.Title)

			require.NoError(t, store.DeleteSession(ctx, sess.ID))
			_, err = store.GetSession(ctx, sess.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreNotFoundAndValidation(t *testing.T) {
	for _, name := range []string{"memory", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			store := storeUnderTest(t, name)
			ctx := context.Background()

			_, err := store.GetSession(ctx, "")
			assert.ErrorIs(t, err, ErrEmptySessionID)

			_, err = store.GetSession(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			err = store.UpdateSession(ctx, &Session{ID: "missing"})
			assert.ErrorIs(t, err, ErrNotFound)

			err = store.DeleteSession(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			err = store.AppendMessage(ctx, &Message{Role: RoleUser, Content: "hi"})
			assert.ErrorIs(t, err, ErrEmptySessionID)
		})
	}
}

func TestStoreMessages(t *testing.T) {
	for _, name := range []string{"memory", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			store := storeUnderTest(t, name)
			ctx := context.Background()

			sess := &Session{Title: "chat"}
			require.NoError(t, store.CreateSession(ctx, sess))

			msgs := []Message{
				{SessionID: sess.ID, Role: RoleUser, Content: "Create a worksheet", Intent: "worksheetGeneration"},
				{SessionID: sess.ID, Role: RoleAssistant, Content: "Here is your worksheet"},
				{SessionID: sess.ID, Role: RoleUser, Content: "Make it simpler"},
			}
			for i := range msgs {
				require.NoError(t, store.AppendMessage(ctx, &msgs[i]))
				require.NotEmpty(t, msgs[i].ID)
			}

			got, err := store.ListMessages(ctx, sess.ID, 10)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "Create a worksheet", got[0].Content)
			assert.Equal(t, "worksheetGeneration", got[0].Intent)
			assert.Equal(t, RoleAssistant, got[1].Role)

			limited, err := store.ListMessages(ctx, sess.ID, 2)
			require.NoError(t, err)
			require.Len(t, limited, 2)
			assert.Equal(t, "Make it simpler", limited[1].Content)
		})
	}
}

func TestListSessionsOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a := &Session{Title: "first"}
	require.NoError(t, store.CreateSession(ctx, a))
	b := &Session{Title: "second"}
	require.NoError(t, store.CreateSession(ctx, b))

	// Updating bumps a session to the front of the listing.
	a.Title = "first updated"
	require.NoError(t, store.UpdateSession(ctx, a))

	sessions, err := store.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "first updated", sessions[0].Title)
}
