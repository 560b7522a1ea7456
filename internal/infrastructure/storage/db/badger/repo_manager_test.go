package dbbadger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/internal/core/ports"
	dbbadger "github.com/dappward/walletd/internal/infrastructure/storage/db/badger"
)

func newTestRepoManager(t *testing.T) ports.RepoManager {
	t.Helper()

	repoManager, err := dbbadger.NewRepoManager(t.TempDir(), nil, 100)
	require.NoError(t, err)
	t.Cleanup(repoManager.Close)
	return repoManager
}

func TestWalletAndAccountRoundTrip(t *testing.T) {
	repoManager := newTestRepoManager(t)
	ctx := context.Background()

	wallet := domain.NewWallet(domain.WalletTypeHD, "ciphertext", "pwd")
	require.NoError(t, repoManager.WalletRepository().AddWallet(ctx, wallet))

	account := domain.NewAccount(
		wallet.ID, "Account 1", "0xaabb", domain.AccountTypeMain, 0, "",
	)
	require.NoError(t, repoManager.AccountRepository().AddAccount(ctx, account))

	got, err := repoManager.AccountRepository().GetAccountByAddress(ctx, "0xaabb")
	require.NoError(t, err)
	require.Equal(t, account.ID, got.ID)

	forWallet, err := repoManager.AccountRepository().GetAccountsForWallet(
		ctx, wallet.ID,
	)
	require.NoError(t, err)
	require.Len(t, forWallet, 1)

	_, err = repoManager.AccountRepository().GetAccount(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestReplaceAllWallets(t *testing.T) {
	repoManager := newTestRepoManager(t)
	ctx := context.Background()

	first := domain.NewWallet(domain.WalletTypeHD, "secret-1", "old")
	second := domain.NewWallet(domain.WalletTypeImported, "secret-2", "old")
	require.NoError(t, repoManager.WalletRepository().AddWallet(ctx, first))
	require.NoError(t, repoManager.WalletRepository().AddWallet(ctx, second))

	first.EncryptedSecret = "reencrypted-1"
	second.EncryptedSecret = "reencrypted-2"
	require.NoError(t, repoManager.WalletRepository().ReplaceAll(
		ctx, []domain.Wallet{*first, *second},
	))

	got, err := repoManager.WalletRepository().GetWallet(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "reencrypted-1", got.EncryptedSecret)

	got, err = repoManager.WalletRepository().GetWallet(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, "reencrypted-2", got.EncryptedSecret)
}

func TestAuthorizationAbsenceIsNotAnError(t *testing.T) {
	repoManager := newTestRepoManager(t)
	ctx := context.Background()

	auth, err := repoManager.AuthorizationRepository().GetAuthorization(
		ctx, "https://app.example",
	)
	require.NoError(t, err)
	require.Nil(t, auth)

	require.NoError(t, repoManager.AuthorizationRepository().SaveAuthorization(
		ctx, domain.NewOriginAuthorization("https://app.example", "0xaabb"),
	))
	auth, err = repoManager.AuthorizationRepository().GetAuthorization(
		ctx, "https://app.example",
	)
	require.NoError(t, err)
	require.NotNil(t, auth)
	require.Equal(t, "0xaabb", auth.Address)

	require.NoError(
		t,
		repoManager.AuthorizationRepository().DeleteAllAuthorizations(ctx),
	)
	auths, err := repoManager.AuthorizationRepository().GetAllAuthorizations(ctx)
	require.NoError(t, err)
	require.Empty(t, auths)
}
