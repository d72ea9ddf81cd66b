// Package service holds the application logic between the HTTP layer and
// the repositories.
package service

import "errors"

var (
	ErrEmailTaken         = errors.New("account with this email already exists")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrEmailNotConfirmed  = errors.New("email address not confirmed")
	// ErrVerification: the token parsed but no account matches its address.
	ErrVerification = errors.New("verification error")
)
