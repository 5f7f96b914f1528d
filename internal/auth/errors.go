package auth

import "errors"

var (
	ErrNoCredentials = errors.New("no AWS credentials configured")
	ErrBadAuthHeader = errors.New("malformed relayed authorization header")
	ErrBadCiphertext = errors.New("ciphertext too short or corrupted")
)
