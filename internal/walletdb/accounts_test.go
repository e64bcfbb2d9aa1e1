package walletdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletstore/internal/shared"
)

var (
	v3r2 = AccountType{Version: 3, Revision: 2}
	v4r2 = AccountType{Version: 4, Revision: 2}
)

func TestAccounts_AddAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Accounts.Add(ctx, 7, "EQfirst", v4r2)
	require.NoError(t, err)
	assert.Positive(t, id)

	acc, err := s.Accounts.Get(ctx, "EQfirst")
	require.NoError(t, err)
	assert.Equal(t, Account{
		ID:       id,
		WalletID: 7,
		Address:  "EQfirst",
		Type:     v4r2,
		Balance:  -1,
	}, acc)

	byID, err := s.Accounts.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, acc, byID)
}

func TestAccounts_AddDuplicateAddress(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Accounts.Add(ctx, 1, "EQdup", v4r2)
	require.NoError(t, err)

	_, err = s.Accounts.Add(ctx, 2, "EQdup", v3r2)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrConstraint)

	n, err := s.Accounts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAccounts_AddEmptyAddress(t *testing.T) {
	_, err := newTestStore(t).Accounts.Add(context.Background(), 1, "", v4r2)
	assert.True(t, shared.IsValidation(err))
}

func TestAccounts_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Accounts.Get(ctx, "EQmissing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.True(t, shared.IsNotFound(err))

	_, err = s.Accounts.GetByID(ctx, 42)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	err = s.Accounts.SetBalance(ctx, "EQmissing", 10)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccounts_AddressAndID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.Accounts.Add(ctx, 1, "EQv3", v3r2)
	require.NoError(t, err)
	_, err = s.Accounts.Add(ctx, 1, "EQv4", v4r2)
	require.NoError(t, err)
	_, err = s.Accounts.Add(ctx, 2, "EQother", v3r2)
	require.NoError(t, err)

	addr, err := s.Accounts.Address(ctx, 1, v4r2)
	require.NoError(t, err)
	assert.Equal(t, "EQv4", addr)

	addr, err = s.Accounts.Address(ctx, 2, v3r2)
	require.NoError(t, err)
	assert.Equal(t, "EQother", addr)

	id, err := s.Accounts.ID(ctx, v3r2)
	require.NoError(t, err)
	assert.Equal(t, first, id)

	_, err = s.Accounts.Address(ctx, 2, v4r2)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccounts_SetBalanceAndLastTransaction(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Accounts.Add(ctx, 1, "EQsync", v4r2)
	require.NoError(t, err)

	require.NoError(t, s.Accounts.SetBalance(ctx, "EQsync", 1_500_000_000))
	require.NoError(t, s.Accounts.SetLastTransaction(ctx, "EQsync", 9001, []byte{0xde, 0xad}))

	acc, err := s.Accounts.Get(ctx, "EQsync")
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000_000), acc.Balance)
	require.NotNil(t, acc.LastTransactionID)
	assert.Equal(t, int64(9001), *acc.LastTransactionID)
	assert.Equal(t, []byte{0xde, 0xad}, acc.LastTransactionHash)
}

func TestAccounts_All(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	all, err := s.Accounts.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	for _, addr := range []string{"EQa", "EQb", "EQc"} {
		_, err := s.Accounts.Add(ctx, 1, addr, v4r2)
		require.NoError(t, err)
	}

	all, err = s.Accounts.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "EQa", all[0].Address)
	assert.Equal(t, "EQc", all[2].Address)
}

func TestAccounts_RemoveWalletCascadesConnections(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a1, err := s.Accounts.Add(ctx, 1, "EQw1a", v3r2)
	require.NoError(t, err)
	_, err = s.Accounts.Add(ctx, 1, "EQw1b", v4r2)
	require.NoError(t, err)
	a2, err := s.Accounts.Add(ctx, 2, "EQw2", v4r2)
	require.NoError(t, err)

	require.NoError(t, s.Connections.Add(ctx, Connection{AccountID: a1, ClientID: "c1", PublicKey: "pk", SecretKey: "sk"}))
	require.NoError(t, s.Connections.Add(ctx, Connection{AccountID: a2, ClientID: "c2", PublicKey: "pk", SecretKey: "sk"}))

	removed, err := s.Accounts.RemoveWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	n, err := s.Accounts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	has, err := s.Connections.Has(ctx, a1, "c1")
	require.NoError(t, err)
	assert.False(t, has)

	has, err = s.Connections.Has(ctx, a2, "c2")
	require.NoError(t, err)
	assert.True(t, has)
}
