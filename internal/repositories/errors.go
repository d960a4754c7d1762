package repositories

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable wraps any store I/O failure, including timeouts.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrSessionOwnerMismatch is returned when a session id is already owned
	// by a different user.
	ErrSessionOwnerMismatch = errors.New("session owned by another user")
	// ErrSessionExpired is returned when touching a reaped session; reaped
	// sessions are never reactivated.
	ErrSessionExpired = errors.New("session expired")
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}
