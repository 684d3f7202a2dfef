package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// fakeClock returns strictly increasing timestamps.
func fakeClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestConversationStore_AppendAndGet(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		msg, err := store.Append(ctx, "s1", role, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, "s1", msg.SessionID)
	}

	all, err := store.Get(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "m0", all[0].Content)
	assert.Equal(t, domain.RoleAssistant, all[1].Role)

	last, err := store.Get(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "m3", last[0].Content)
	assert.Equal(t, "m4", last[1].Content)
}

func TestConversationStore_Append_Invalid(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()

	_, err := store.Append(ctx, "", domain.RoleUser, "hi")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.Append(ctx, "s1", domain.Role("system"), "hi")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestConversationStore_Get_UnknownSession(t *testing.T) {
	msgs, err := NewConversationStore().Get(context.Background(), "nope", 10)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestConversationStore_Get_ReturnsCopy(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()
	_, err := store.Append(ctx, "s1", domain.RoleUser, "original")
	require.NoError(t, err)

	msgs, err := store.Get(ctx, "s1", 0)
	require.NoError(t, err)
	msgs[0].Content = "mutated"

	again, err := store.Get(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Content)
}

func TestConversationStore_Clear(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()
	_, err := store.Append(ctx, "s1", domain.RoleUser, "hi")
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx, "s1"))
	require.NoError(t, store.Clear(ctx, "never-existed"))

	msgs, err := store.Get(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestConversationStore_ListSessions(t *testing.T) {
	store := NewConversationStore()
	store.now = fakeClock()
	ctx := context.Background()

	_, err := store.Append(ctx, "older", domain.RoleUser, "a")
	require.NoError(t, err)
	_, err = store.Append(ctx, "newer", domain.RoleUser, "b")
	require.NoError(t, err)
	_, err = store.Append(ctx, "older", domain.RoleAssistant, "c")
	require.NoError(t, err)

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "older", sessions[0].ID)
	assert.Equal(t, 2, sessions[0].MessageCount)
	assert.True(t, sessions[0].UpdatedAt.After(sessions[0].CreatedAt))
	assert.Empty(t, sessions[0].Messages)
	assert.Equal(t, "newer", sessions[1].ID)
	assert.Equal(t, 1, sessions[1].MessageCount)
}
