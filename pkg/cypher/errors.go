package cypher

import "errors"

var (
	// ErrNullPlainText ...
	ErrNullPlainText = errors.New("text to encrypt must not be null")
	// ErrNullCypherText ...
	ErrNullCypherText = errors.New("cypher to decrypt must not be null")
	// ErrNullPassword ...
	ErrNullPassword = errors.New("password must not be null")
	// ErrInvalidCypherText ...
	ErrInvalidCypherText = errors.New("cypher must be in base64 format")
	// ErrInvalidPassword is returned when the ciphertext cannot be opened
	// with the key derived from the given password.
	ErrInvalidPassword = errors.New("password is not valid")
)
