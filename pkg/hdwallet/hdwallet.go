package hdwallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet holds the BIP39 mnemonic of a hierarchical-deterministic wallet and
// derives Ethereum-style accounts on the m/44'/60'/0'/0/index path.
type Wallet struct {
	mnemonic string
}

// NewWalletFromMnemonicOpts is the struct given to NewWalletFromMnemonic method
type NewWalletFromMnemonicOpts struct {
	Mnemonic []string
}

func (o NewWalletFromMnemonicOpts) validate() error {
	if len(o.Mnemonic) <= 0 {
		return ErrNullMnemonic
	}
	if !isMnemonicValid(strings.Join(o.Mnemonic, " ")) {
		return ErrInvalidMnemonic
	}
	return nil
}

// NewWalletFromMnemonic returns a Wallet for the provided mnemonic
func NewWalletFromMnemonic(opts NewWalletFromMnemonicOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Wallet{mnemonic: strings.Join(opts.Mnemonic, " ")}, nil
}

// Mnemonic returns the wallet's mnemonic as a list of words
func (w *Wallet) Mnemonic() []string {
	return strings.Split(w.mnemonic, " ")
}

// DeriveKeyPairOpts is the struct given to DeriveKeyPair method
type DeriveKeyPairOpts struct {
	Index uint32
}

func (o DeriveKeyPairOpts) validate() error {
	if o.Index >= hdkeychain.HardenedKeyStart {
		return ErrOutOfRangeDerivationIndex
	}
	return nil
}

// DeriveKeyPair derives the signing key at m/44'/60'/0'/0/index along with
// the Ethereum address it controls.
func (w *Wallet) DeriveKeyPair(
	opts DeriveKeyPairOpts,
) (*ecdsa.PrivateKey, common.Address, error) {
	if err := opts.validate(); err != nil {
		return nil, common.Address{}, err
	}

	seed := seedFromMnemonic(w.mnemonic)
	masterKey, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, common.Address{}, err
	}

	path := []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 60,
		hdkeychain.HardenedKeyStart + 0,
		0,
		opts.Index,
	}
	key := masterKey
	for _, child := range path {
		key, err = key.Derive(child)
		if err != nil {
			return nil, common.Address{}, err
		}
	}

	ecPrv, err := key.ECPrivKey()
	if err != nil {
		return nil, common.Address{}, err
	}
	prv, err := crypto.ToECDSA(ecPrv.Serialize())
	if err != nil {
		return nil, common.Address{}, err
	}

	return prv, crypto.PubkeyToAddress(prv.PublicKey), nil
}

// KeyPairFromPrivateKeyOpts is the struct given to KeyPairFromPrivateKey method
type KeyPairFromPrivateKeyOpts struct {
	PrivateKeyHex string
}

func (o KeyPairFromPrivateKeyOpts) validate() error {
	buf := strings.TrimPrefix(o.PrivateKeyHex, "0x")
	if len(buf) <= 0 {
		return ErrNullPrivateKey
	}
	raw, err := hex.DecodeString(buf)
	if err != nil || len(raw) != 32 {
		return ErrInvalidPrivateKey
	}
	return nil
}

// KeyPairFromPrivateKey returns the signing key encoded by the provided raw
// hex string along with the Ethereum address it controls.
func KeyPairFromPrivateKey(
	opts KeyPairFromPrivateKeyOpts,
) (*ecdsa.PrivateKey, common.Address, error) {
	if err := opts.validate(); err != nil {
		return nil, common.Address{}, err
	}

	prv, err := crypto.HexToECDSA(strings.TrimPrefix(opts.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, common.Address{}, ErrInvalidPrivateKey
	}
	return prv, crypto.PubkeyToAddress(prv.PublicKey), nil
}
