package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned by Open after Destroy.
var ErrDestroyed = errors.New("sealed value has been destroyed")

// Sealed holds a secret string encrypted inside a memguard enclave.
type Sealed struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	destroyed bool
}

// Seal copies value into a new enclave. The caller's string is not modified.
func Seal(value string) *Sealed {
	// memguard wipes the slice it is given, so hand it a private copy.
	buf := []byte(value)
	return &Sealed{enclave: memguard.NewEnclave(buf)}
}

// Open decrypts the value and returns a plain copy. The locked buffer used for
// decryption is destroyed before returning.
func (s *Sealed) Open() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return "", ErrDestroyed
	}
	if s.enclave == nil {
		// memguard returns a nil enclave for empty input
		return "", nil
	}

	locked, err := s.enclave.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()

	// LockedBuffer.String aliases memory that Destroy wipes; convert to copy.
	return string(locked.Bytes()), nil
}

// Destroy drops the enclave. It is idempotent.
func (s *Sealed) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enclave = nil
	s.destroyed = true
}

// String never reveals the sealed value.
func (s *Sealed) String() string {
	return "[REDACTED]"
}
