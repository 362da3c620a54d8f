package syncctl

import (
	"errors"
	"fmt"

	"github.com/dasdy/gridsync/model"
)

var (
	ErrNotMounted = errors.New("view is not mounted")
	ErrNilGrid    = errors.New("grid is nil")
)

// PeerRegistrationError is returned when the two views cannot be linked, usually
// because one of them went away before registration.
type PeerRegistrationError struct {
	Role   model.Role
	Reason string
}

func (e *PeerRegistrationError) Error() string {
	return fmt.Sprintf("could not register peers: %s view %s", e.Role, e.Reason)
}
