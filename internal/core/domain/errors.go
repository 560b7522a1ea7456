package domain

import "errors"

var (
	// ErrWalletLocked is thrown when an operation needs an unlocked keyring
	ErrWalletLocked = errors.New("wallet is locked")
	// ErrInvalidPassword ...
	ErrInvalidPassword = errors.New("password is not valid")
	// ErrUserRejected is thrown when the user declined a request or closed
	// the approval window without deciding
	ErrUserRejected = errors.New("user rejected the request")
	// ErrRequestTimeout is thrown when no decision arrived within the
	// request lifetime
	ErrRequestTimeout = errors.New("request timed out")
	// ErrUnauthorized is thrown when the calling origin has not completed
	// the connect flow
	ErrUnauthorized = errors.New("origin is not authorized")
	// ErrAlreadyPending is thrown when an identical request is already
	// awaiting a user decision
	ErrAlreadyPending = errors.New("request already pending")
	// ErrAccountNotFound ...
	ErrAccountNotFound = errors.New("account not found")
	// ErrWalletNotFound ...
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrTransactionNotFound ...
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrAddressIntegrityMismatch is thrown when the address derived from
	// decrypted material disagrees with the stored one. This is corruption,
	// not a bad password
	ErrAddressIntegrityMismatch = errors.New(
		"derived address does not match the stored one",
	)
	// ErrUnrecognizedChain ...
	ErrUnrecognizedChain = errors.New("chain is not recognized")
	// ErrInvalidParams ...
	ErrInvalidParams = errors.New("invalid params")
	// ErrRequestNotFound ...
	ErrRequestNotFound = errors.New("pending request not found")
	// ErrWindowNotOpened is thrown when the host could not create the
	// approval window
	ErrWindowNotOpened = errors.New("approval window could not be opened")
	// ErrNetworkFailure is thrown on transport-level failures of the RPC
	// forwarder, as opposed to protocol-level RPC errors
	ErrNetworkFailure = errors.New("network failure")
	// ErrInvalidChainID ...
	ErrInvalidChainID = errors.New("chain id must be a hex string")
)
