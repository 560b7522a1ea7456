package wallet

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dappward/walletd/internal/core/application/conn"
	"github.com/dappward/walletd/internal/core/application/keyring"
	"github.com/dappward/walletd/internal/core/application/vault"
	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/internal/core/ports"
	"github.com/dappward/walletd/pkg/cypher"
	"github.com/dappward/walletd/pkg/hdwallet"
	"github.com/dappward/walletd/pkg/provider"
)

// Service bundles the wallet lifecycle operations exposed to the extension's
// own UI: seeding, creation, restore, import, unlock, lock, account
// management and secret export.
type Service struct {
	repoManager ports.RepoManager
	vault       *vault.Service
	session     *keyring.Session
	registry    *conn.Registry
}

func NewService(
	repoManager ports.RepoManager, vaultSvc *vault.Service,
	session *keyring.Session, registry *conn.Registry,
) (*Service, error) {
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if vaultSvc == nil {
		return nil, fmt.Errorf("missing vault service")
	}
	if session == nil {
		return nil, fmt.Errorf("missing keyring session")
	}

	return &Service{repoManager, vaultSvc, session, registry}, nil
}

// GenSeed generates a new 24-word mnemonic. Nothing is persisted until
// CreateHDWallet is called with it.
func (s *Service) GenSeed(_ context.Context) ([]string, error) {
	return hdwallet.NewMnemonic(hdwallet.NewMnemonicOpts{EntropySize: 256})
}

// CreateHDWallet encrypts the mnemonic with the password, persists the
// wallet together with its first derived account, and unlocks the keyring
// with that account.
func (s *Service) CreateHDWallet(
	ctx context.Context, mnemonic []string, password, accountName string,
) (*domain.Account, error) {
	w, err := hdwallet.NewWalletFromMnemonic(hdwallet.NewWalletFromMnemonicOpts{
		Mnemonic: mnemonic,
	})
	if err != nil {
		return nil, err
	}

	prv, addr, err := w.DeriveKeyPair(hdwallet.DeriveKeyPairOpts{Index: 0})
	if err != nil {
		return nil, err
	}

	encryptedSecret, err := cypher.Encrypt(cypher.EncryptOpts{
		PlainText: []byte(strings.Join(mnemonic, " ")),
		Password:  password,
	})
	if err != nil {
		return nil, err
	}

	wallet := domain.NewWallet(domain.WalletTypeHD, encryptedSecret, password)
	if accountName == "" {
		accountName = "Account 1"
	}
	account := domain.NewAccount(
		wallet.ID, accountName, addr.Hex(), domain.AccountTypeMain, 0, "",
	)
	wallet.AccountCount = 1

	if err := s.repoManager.WalletRepository().AddWallet(ctx, wallet); err != nil {
		return nil, err
	}
	if err := s.repoManager.AccountRepository().AddAccount(ctx, account); err != nil {
		return nil, err
	}

	s.session.Unlock(vault.NewSigningHandle(account.ID, addr, prv), password)
	log.WithField("account", account.ID).Info("created new HD wallet")

	return account, nil
}

// RestoreWallet is CreateHDWallet for a user-supplied mnemonic.
func (s *Service) RestoreWallet(
	ctx context.Context, mnemonic []string, password, accountName string,
) (*domain.Account, error) {
	return s.CreateHDWallet(ctx, mnemonic, password, accountName)
}

// ImportPrivateKey persists an imported wallet wrapping the raw key and its
// single account.
func (s *Service) ImportPrivateKey(
	ctx context.Context, privateKeyHex, password, accountName string,
) (*domain.Account, error) {
	prv, addr, err := hdwallet.KeyPairFromPrivateKey(
		hdwallet.KeyPairFromPrivateKeyOpts{PrivateKeyHex: privateKeyHex},
	)
	if err != nil {
		return nil, err
	}

	encryptedSecret, err := cypher.Encrypt(cypher.EncryptOpts{
		PlainText: []byte(strings.TrimPrefix(privateKeyHex, "0x")),
		Password:  password,
	})
	if err != nil {
		return nil, err
	}

	wallet := domain.NewWallet(domain.WalletTypeImported, encryptedSecret, password)
	if accountName == "" {
		accountName = "Imported account"
	}
	account := domain.NewAccount(
		wallet.ID, accountName, addr.Hex(), domain.AccountTypeImported, 0, "",
	)
	wallet.AccountCount = 1

	if err := s.repoManager.WalletRepository().AddWallet(ctx, wallet); err != nil {
		return nil, err
	}
	if err := s.repoManager.AccountRepository().AddAccount(ctx, account); err != nil {
		return nil, err
	}

	if s.session.IsUnlocked() {
		if err := s.session.AddHandle(
			vault.NewSigningHandle(account.ID, addr, prv),
		); err != nil {
			log.WithError(err).Warn("could not add imported account to keyring")
		}
	}
	return account, nil
}

// DeriveSubAccount derives the next account of an HD wallet. The password
// falls back to the cached one when empty.
func (s *Service) DeriveSubAccount(
	ctx context.Context, walletID, name, password string,
) (*domain.Account, error) {
	wallet, err := s.repoManager.WalletRepository().GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if wallet.Type != domain.WalletTypeHD {
		return nil, fmt.Errorf("cannot derive accounts from an imported wallet")
	}

	if password == "" {
		password = s.session.CachedPassword()
	}
	if password == "" {
		return nil, domain.ErrInvalidPassword
	}

	accounts, err := s.repoManager.AccountRepository().GetAccountsForWallet(
		ctx, walletID,
	)
	if err != nil {
		return nil, err
	}
	var parentID string
	for _, a := range accounts {
		if a.Type == domain.AccountTypeMain {
			parentID = a.ID
			break
		}
	}

	secret, err := s.vault.ExportMnemonic(ctx, walletID, password)
	if err != nil {
		return nil, err
	}
	w, err := hdwallet.NewWalletFromMnemonic(hdwallet.NewWalletFromMnemonicOpts{
		Mnemonic: secret,
	})
	if err != nil {
		return nil, err
	}

	index := uint32(wallet.AccountCount)
	prv, addr, err := w.DeriveKeyPair(hdwallet.DeriveKeyPairOpts{Index: index})
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = fmt.Sprintf("Account %d", index+1)
	}
	account := domain.NewAccount(
		wallet.ID, name, addr.Hex(), domain.AccountTypeSub, index, parentID,
	)
	wallet.AccountCount++

	if err := s.repoManager.AccountRepository().AddAccount(ctx, account); err != nil {
		return nil, err
	}
	if err := s.repoManager.WalletRepository().UpdateWallet(ctx, wallet); err != nil {
		return nil, err
	}

	if s.session.IsUnlocked() {
		if err := s.session.AddHandle(
			vault.NewSigningHandle(account.ID, addr, prv),
		); err != nil {
			log.WithError(err).Warn("could not add derived account to keyring")
		}
	}
	return account, nil
}

// DeleteAccount removes the account. Deleting the last account of a wallet
// deletes the wallet as well.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	account, err := s.repoManager.AccountRepository().GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.repoManager.AccountRepository().DeleteAccount(ctx, accountID); err != nil {
		return err
	}

	remaining, err := s.repoManager.AccountRepository().GetAccountsForWallet(
		ctx, account.WalletID,
	)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		if err := s.repoManager.WalletRepository().DeleteWallet(
			ctx, account.WalletID,
		); err != nil {
			return err
		}
		log.WithField("wallet", account.WalletID).Debug(
			"deleted wallet left without accounts",
		)
		return nil
	}

	wallet, err := s.repoManager.WalletRepository().GetWallet(ctx, account.WalletID)
	if err != nil {
		return err
	}
	wallet.AccountCount = len(remaining)
	return s.repoManager.WalletRepository().UpdateWallet(ctx, wallet)
}

// Unlock decrypts the signing key of the given account and transitions the
// keyring session to unlocked.
func (s *Service) Unlock(
	ctx context.Context, accountID, password string,
) error {
	if accountID == "" {
		settings, err := s.repoManager.SettingsRepository().GetSettings(ctx)
		if err == nil && settings.DefaultAccountID != "" {
			accountID = settings.DefaultAccountID
		}
	}
	if accountID == "" {
		accounts, err := s.repoManager.AccountRepository().GetAllAccounts(ctx)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			return domain.ErrAccountNotFound
		}
		accountID = accounts[0].ID
	}

	handle, err := s.vault.UnlockSigningHandle(ctx, accountID, password)
	if err != nil {
		return err
	}
	s.session.Unlock(handle, password)
	return nil
}

// Lock clears the keyring. The session hook broadcasts the empty accounts
// event to every connected origin.
func (s *Service) Lock(_ context.Context) {
	s.session.Lock()
}

// SwitchAccount makes the given account the active one, unlocking its
// signing handle with the supplied or cached password if needed, and
// notifies connected pages.
func (s *Service) SwitchAccount(
	ctx context.Context, accountID, password string,
) error {
	account, err := s.repoManager.AccountRepository().GetAccount(ctx, accountID)
	if err != nil {
		return err
	}

	if _, err := s.session.Handle(accountID); err != nil {
		if password == "" {
			password = s.session.CachedPassword()
		}
		if password == "" {
			return domain.ErrWalletLocked
		}
		handle, err := s.vault.UnlockSigningHandle(ctx, accountID, password)
		if err != nil {
			return err
		}
		if s.session.IsUnlocked() {
			if err := s.session.AddHandle(handle); err != nil {
				return err
			}
		} else {
			s.session.Unlock(handle, password)
		}
	}

	settings, err := s.repoManager.SettingsRepository().GetSettings(ctx)
	if err != nil {
		return err
	}
	settings.DefaultAccountID = accountID
	if err := s.repoManager.SettingsRepository().UpdateSettings(
		ctx, settings,
	); err != nil {
		return err
	}

	if s.registry != nil {
		s.registry.Broadcast(
			provider.EventAccountsChanged, []string{account.Address},
		)
	}
	return nil
}

// ChangePassword re-encrypts every wallet secret with the new password and
// locks the session so the next unlock must use it.
func (s *Service) ChangePassword(
	ctx context.Context, oldPassword, newPassword string,
) error {
	if err := s.vault.ChangeEncryptionPassword(
		ctx, oldPassword, newPassword,
	); err != nil {
		return err
	}
	s.session.Lock()
	return nil
}

// ExportMnemonic reveals the mnemonic of an HD wallet.
func (s *Service) ExportMnemonic(
	ctx context.Context, walletID, password string,
) ([]string, error) {
	return s.vault.ExportMnemonic(ctx, walletID, password)
}

// ExportPrivateKey reveals the raw signing key of an account.
func (s *Service) ExportPrivateKey(
	ctx context.Context, accountID, password string,
) (string, error) {
	return s.vault.ExportPrivateKey(ctx, accountID, password)
}

// State is the wallet status surfaced to the extension UI.
type State struct {
	Initialized bool             `json:"initialized"`
	Unlocked    bool             `json:"unlocked"`
	Accounts    []domain.Account `json:"accounts"`
}

// GetState reports whether a wallet exists, whether it is unlocked, and the
// known accounts.
func (s *Service) GetState(ctx context.Context) (*State, error) {
	accounts, err := s.repoManager.AccountRepository().GetAllAccounts(ctx)
	if err != nil {
		return nil, err
	}
	return &State{
		Initialized: len(accounts) > 0,
		Unlocked:    s.session.IsUnlocked(),
		Accounts:    accounts,
	}, nil
}

// Reset wipes every wallet, account and authorization and locks the
// session.
func (s *Service) Reset(ctx context.Context) error {
	s.session.Lock()

	accounts, err := s.repoManager.AccountRepository().GetAllAccounts(ctx)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		if err := s.repoManager.AccountRepository().DeleteAccount(
			ctx, account.ID,
		); err != nil {
			return err
		}
	}
	wallets, err := s.repoManager.WalletRepository().GetAllWallets(ctx)
	if err != nil {
		return err
	}
	for _, wallet := range wallets {
		if err := s.repoManager.WalletRepository().DeleteWallet(
			ctx, wallet.ID,
		); err != nil {
			return err
		}
	}
	return s.repoManager.AuthorizationRepository().DeleteAllAuthorizations(ctx)
}
