package service

import "errors"

// Handlers map these to HTTP status codes.
var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUserNotFound        = errors.New("user not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrInvalidAction       = errors.New("invalid action")
)
