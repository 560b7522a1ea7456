package hdwallet

import "errors"

var (
	// ErrNullMnemonic ...
	ErrNullMnemonic = errors.New("mnemonic is null")
	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
	// ErrInvalidEntropySize ...
	ErrInvalidEntropySize = errors.New(
		"entropy size must be a multiple of 32 in the range [128,256]",
	)
	// ErrNullPrivateKey ...
	ErrNullPrivateKey = errors.New("private key is null")
	// ErrInvalidPrivateKey ...
	ErrInvalidPrivateKey = errors.New("private key must be a 32 byte hex string")
	// ErrOutOfRangeDerivationIndex ...
	ErrOutOfRangeDerivationIndex = errors.New(
		"derivation index must not be hardened",
	)
)
