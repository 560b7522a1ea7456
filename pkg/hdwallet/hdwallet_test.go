package hdwallet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMnemonic = strings.Split(
	"abandon abandon abandon abandon abandon abandon abandon abandon "+
		"abandon abandon abandon about", " ",
)

func TestNewMnemonic(t *testing.T) {
	mnemonic, err := NewMnemonic(NewMnemonicOpts{})
	require.NoError(t, err)
	assert.Len(t, mnemonic, 24)

	mnemonic, err = NewMnemonic(NewMnemonicOpts{EntropySize: 128})
	require.NoError(t, err)
	assert.Len(t, mnemonic, 12)
}

func TestFailingNewMnemonic(t *testing.T) {
	tests := []struct {
		entropySize int
		err         error
	}{
		{100, ErrInvalidEntropySize},
		{300, ErrInvalidEntropySize},
		{-32, ErrInvalidEntropySize},
	}
	for _, tt := range tests {
		_, err := NewMnemonic(NewMnemonicOpts{EntropySize: tt.entropySize})
		assert.Equal(t, tt.err, err)
	}
}

func TestDeriveKeyPair(t *testing.T) {
	w, err := NewWalletFromMnemonic(NewWalletFromMnemonicOpts{
		Mnemonic: testMnemonic,
	})
	require.NoError(t, err)

	prv, addr, err := w.DeriveKeyPair(DeriveKeyPairOpts{Index: 0})
	require.NoError(t, err)
	require.NotNil(t, prv)
	// Well-known first account of the BIP39 test vector mnemonic.
	assert.Equal(
		t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", addr.Hex(),
	)

	// Derivation is deterministic.
	_, addr2, err := w.DeriveKeyPair(DeriveKeyPairOpts{Index: 0})
	require.NoError(t, err)
	assert.Equal(t, addr, addr2)

	// Different index, different address.
	_, addr3, err := w.DeriveKeyPair(DeriveKeyPairOpts{Index: 1})
	require.NoError(t, err)
	assert.NotEqual(t, addr, addr3)
}

func TestFailingNewWalletFromMnemonic(t *testing.T) {
	tests := []struct {
		mnemonic []string
		err      error
	}{
		{nil, ErrNullMnemonic},
		{[]string{"not", "a", "valid", "mnemonic"}, ErrInvalidMnemonic},
		// valid words, broken checksum
		{strings.Split(
			"abandon abandon abandon abandon abandon abandon abandon "+
				"abandon abandon abandon abandon abandon", " ",
		), ErrInvalidMnemonic},
	}
	for _, tt := range tests {
		_, err := NewWalletFromMnemonic(NewWalletFromMnemonicOpts{
			Mnemonic: tt.mnemonic,
		})
		assert.Equal(t, tt.err, err)
	}
}

func TestKeyPairFromPrivateKey(t *testing.T) {
	prv, addr, err := KeyPairFromPrivateKey(KeyPairFromPrivateKeyOpts{
		PrivateKeyHex: "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
	})
	require.NoError(t, err)
	require.NotNil(t, prv)
	assert.NotEmpty(t, addr.Hex())

	tests := []struct {
		key string
		err error
	}{
		{"", ErrNullPrivateKey},
		{"0x", ErrNullPrivateKey},
		{"zzzz", ErrInvalidPrivateKey},
		{"abcdef", ErrInvalidPrivateKey},
	}
	for _, tt := range tests {
		_, _, err := KeyPairFromPrivateKey(KeyPairFromPrivateKeyOpts{
			PrivateKeyHex: tt.key,
		})
		assert.Equal(t, tt.err, err)
	}
}
