package session

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidName is wrapped by every ValidateName failure.
var ErrInvalidName = errors.New("invalid session name")

// maxSocketPath is sun_path on Linux less the terminating NUL.
const maxSocketPath = 107

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateName checks that name is usable as a directory and that the
// daemon socket under it fits a unix socket address.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w %q: want 1-64 of a-z 0-9 _ -, starting with a letter or digit", ErrInvalidName, name)
	}
	if p := SocketPath(name); len(p) > maxSocketPath {
		return fmt.Errorf("%w %q: socket path %s is longer than %d bytes", ErrInvalidName, name, p, maxSocketPath)
	}
	return nil
}
