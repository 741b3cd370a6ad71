package users

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront/internal/aws/awstest"
)

const table = "users"

func newTestStore() (*Store, *awstest.Dynamo) {
	fake := awstest.New().CreateTable(table, "user_id")
	s := NewStore(fake, table)
	s.nowFunc = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("u-%d", n)
	}
	return s, fake
}

func TestCreate_DefaultsAndLookup(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()

	u, err := s.Create(ctx, User{Username: " alice ", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, RoleUser, u.Role)
	assert.Equal(t, 2, fake.Len(table), "user plus username guard")

	got, err := s.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PasswordHash)

	byName, err := s.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "u-1", byName.ID)
}

func TestCreate_UsernameTakenIgnoringCase(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()

	_, err := s.Create(ctx, User{Username: "Bob"})
	require.NoError(t, err)

	_, err = s.Create(ctx, User{Username: "bob"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.Equal(t, 2, fake.Len(table), "rejected user must not be written")
}

func TestGet_Missing(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_GuardKeyIsNotAUser(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	_, err := s.Create(ctx, User{Username: "carol"})
	require.NoError(t, err)

	_, err = s.Get(ctx, "username#carol")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreate_StoreError(t *testing.T) {
	s, fake := newTestStore()
	boom := errors.New("boom")
	fake.FailOn("TransactWriteItems", boom)

	_, err := s.Create(context.Background(), User{Username: "dave"})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrUsernameTaken)
}
