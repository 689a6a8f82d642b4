package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumewell/passkey-backend/internal/domain"
	"github.com/lumewell/passkey-backend/internal/storage/memory"
	"github.com/lumewell/passkey-backend/pkg/config"
)

func TestUserService_Lifecycle(t *testing.T) {
	store := memory.NewStore()
	svc := NewUserService(store, zap.NewNop())
	ctx := context.Background()

	username := "alice"
	display := "Alice"
	user, err := svc.Create(ctx, &username, &display)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Name())
	assert.Equal(t, "Alice", user.DisplayNameOrName())

	got, err := svc.Get(ctx, user.UUID)
	require.NoError(t, err)
	assert.Equal(t, user.UUID, got.UUID)

	_, err = svc.Get(ctx, domain.NewUserID())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_DeleteCascades(t *testing.T) {
	store := memory.NewStore()
	svc := NewUserService(store, zap.NewNop())
	ctx := context.Background()

	user, err := svc.Create(ctx, nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.Credentials().Insert(ctx, &domain.Credential{
		CredentialID: []byte{1, 2, 3},
		OwnerUserID:  user.UUID,
	}))

	require.NoError(t, svc.Delete(ctx, user.UUID))

	_, err = svc.Get(ctx, user.UUID)
	assert.ErrorIs(t, err, ErrUserNotFound)
	creds, err := svc.ListCredentials(ctx, user.UUID)
	require.NoError(t, err)
	assert.Empty(t, creds)

	assert.ErrorIs(t, svc.Delete(ctx, user.UUID), ErrUserNotFound)
}

func TestUserService_RemoveCredential(t *testing.T) {
	store := memory.NewStore()
	svc := NewUserService(store, zap.NewNop())
	ctx := context.Background()

	alice, err := svc.Create(ctx, nil, nil)
	require.NoError(t, err)
	bob, err := svc.Create(ctx, nil, nil)
	require.NoError(t, err)

	credID := []byte{1, 2, 3}
	require.NoError(t, store.Credentials().Insert(ctx, &domain.Credential{
		CredentialID: credID,
		OwnerUserID:  alice.UUID,
	}))

	// Somebody else's credential is off limits.
	assert.ErrorIs(t, svc.RemoveCredential(ctx, bob.UUID, credID), ErrUserMismatch)

	require.NoError(t, svc.RemoveCredential(ctx, alice.UUID, credID))
	assert.ErrorIs(t, svc.RemoveCredential(ctx, alice.UUID, credID), ErrCredentialNotFound)
}

func TestChallengeCleanupWorker_RunOnce(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	expired, err := domain.NewChallenge(domain.PurposeRegistration, nil, -time.Second)
	require.NoError(t, err)
	fresh, err := domain.NewChallenge(domain.PurposeRegistration, nil, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Challenges().Create(ctx, expired))
	require.NoError(t, store.Challenges().Create(ctx, fresh))

	worker := NewChallengeCleanupWorker(config.CleanupConfig{Enabled: true}, store, zap.NewNop())
	require.NoError(t, worker.RunOnce(ctx))

	_, err = store.Challenges().Consume(ctx, expired.Value)
	assert.Error(t, err)
	_, err = store.Challenges().Consume(ctx, fresh.Value)
	assert.NoError(t, err)
}
