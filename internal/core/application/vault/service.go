package vault

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"

	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/internal/core/ports"
	"github.com/dappward/walletd/pkg/cypher"
	"github.com/dappward/walletd/pkg/hdwallet"
)

// Service decrypts and derives signing keys out of the encrypted store. It
// never holds decrypted material itself: callers are responsible for placing
// returned handles into the keyring session.
type Service struct {
	repoManager ports.RepoManager
}

func NewService(repoManager ports.RepoManager) (*Service, error) {
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	return &Service{repoManager}, nil
}

// UnlockSigningHandle decrypts the backing secret of the given account and
// returns a handle over the derived key. The address re-derived from the
// decrypted material must match the stored one, a mismatch is surfaced as
// domain.ErrAddressIntegrityMismatch and never as a password error.
func (s *Service) UnlockSigningHandle(
	ctx context.Context, accountID, password string,
) (*SigningHandle, error) {
	account, err := s.repoManager.AccountRepository().GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.repoManager.WalletRepository().GetWallet(ctx, account.WalletID)
	if err != nil {
		return nil, err
	}

	secret, err := s.decryptSecret(wallet, password)
	if err != nil {
		return nil, err
	}

	prv, addr, err := deriveKeyPair(wallet, account, secret)
	if err != nil {
		return nil, err
	}

	if addr != common.HexToAddress(account.Address) {
		log.WithField("account", account.ID).Error(
			"derived address does not match the stored one",
		)
		return nil, domain.ErrAddressIntegrityMismatch
	}

	return NewSigningHandle(account.ID, addr, prv), nil
}

// ExportMnemonic reveals the mnemonic of an HD wallet.
func (s *Service) ExportMnemonic(
	ctx context.Context, walletID, password string,
) ([]string, error) {
	wallet, err := s.repoManager.WalletRepository().GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if wallet.Type != domain.WalletTypeHD {
		return nil, fmt.Errorf("wallet has no mnemonic")
	}

	secret, err := s.decryptSecret(wallet, password)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(secret), " "), nil
}

// ExportPrivateKey reveals the raw signing key of an account in hex form.
func (s *Service) ExportPrivateKey(
	ctx context.Context, accountID, password string,
) (string, error) {
	handle, err := s.UnlockSigningHandle(ctx, accountID, password)
	if err != nil {
		return "", err
	}
	defer handle.Zero()

	return fmt.Sprintf("0x%x", handle.prv.D), nil
}

// ChangeEncryptionPassword re-encrypts the secrets of all wallets with the
// new password. The re-encrypted records are persisted in one transaction:
// either all of them or none.
func (s *Service) ChangeEncryptionPassword(
	ctx context.Context, oldPassword, newPassword string,
) error {
	if len(newPassword) <= 0 {
		return domain.ErrInvalidParams
	}

	wallets, err := s.repoManager.WalletRepository().GetAllWallets(ctx)
	if err != nil {
		return err
	}

	reencrypted := make([]domain.Wallet, 0, len(wallets))
	for _, w := range wallets {
		secret, err := s.decryptSecret(&w, oldPassword)
		if err != nil {
			return err
		}
		encryptedSecret, err := cypher.Encrypt(cypher.EncryptOpts{
			PlainText: secret,
			Password:  newPassword,
		})
		if err != nil {
			return err
		}
		w.EncryptedSecret = encryptedSecret
		w.PasswordHash = btcutil.Hash160([]byte(newPassword))
		reencrypted = append(reencrypted, w)
	}

	return s.repoManager.WalletRepository().ReplaceAll(ctx, reencrypted)
}

func (s *Service) decryptSecret(
	wallet *domain.Wallet, password string,
) ([]byte, error) {
	secret, err := cypher.Decrypt(cypher.DecryptOpts{
		CypherText: wallet.EncryptedSecret,
		Password:   password,
	})
	if err != nil {
		if errors.Is(err, cypher.ErrInvalidPassword) ||
			errors.Is(err, cypher.ErrNullPassword) {
			return nil, domain.ErrInvalidPassword
		}
		return nil, err
	}
	return secret, nil
}

func deriveKeyPair(
	wallet *domain.Wallet, account *domain.Account, secret []byte,
) (*ecdsa.PrivateKey, common.Address, error) {
	if wallet.Type == domain.WalletTypeImported || account.IsImported() {
		return hdwallet.KeyPairFromPrivateKey(hdwallet.KeyPairFromPrivateKeyOpts{
			PrivateKeyHex: string(secret),
		})
	}

	w, err := hdwallet.NewWalletFromMnemonic(hdwallet.NewWalletFromMnemonicOpts{
		Mnemonic: strings.Split(string(secret), " "),
	})
	if err != nil {
		return nil, common.Address{}, err
	}
	return w.DeriveKeyPair(hdwallet.DeriveKeyPairOpts{
		Index: account.DerivationIndex,
	})
}
