package auth

import (
	"errors"
	"fmt"
)

// Business failures returned by the service. Handlers map these onto the
// unified code/message envelope; nothing here leaks storage details.
var (
	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords. The two must stay indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyResolved    = errors.New("reset request already resolved")
)

// LockedError reports which kind of lock rejected a login. Lock state is
// not a secret, so the caller may see it; only the temporary lock exposes
// an ETA.
type LockedError struct {
	Permanent        bool
	RemainingMinutes int
}

func (e *LockedError) Error() string {
	if e.Permanent {
		return "account permanently locked"
	}
	return fmt.Sprintf("account temporarily locked, %d minutes remaining", e.RemainingMinutes)
}

// Unwrap makes errors.Is(err, ErrAccountLocked) hold.
func (e *LockedError) Unwrap() error { return ErrAccountLocked }
