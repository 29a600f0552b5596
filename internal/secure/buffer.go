// Package secure provides memory-safe storage for cached secret material.
//
// The secret resolver keeps a process-lifetime cache of every secret in a
// resolved bws project. Those plaintext maps would otherwise sit in ordinary
// heap memory for the life of the run; Buffer keeps them encrypted at rest
// and locked against swapping via memguard.
package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// Buffer holds sensitive bytes encrypted at rest in memory.
type Buffer struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex
	// destroyed allows idempotent Destroy() and prevents use after destroy
	destroyed bool
}

// NewBuffer copies data into a protected memory region. The caller keeps
// ownership of the input slice and should zero it when no longer needed.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{enclave: memguard.NewEnclave(data)}
}

// Open decrypts the buffer and returns the plaintext bytes in a locked
// buffer. The caller MUST call Destroy() on the returned LockedBuffer as
// soon as the bytes have been consumed.
func (b *Buffer) Open() (*memguard.LockedBuffer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return nil, errors.New("secure buffer already destroyed")
	}
	return b.enclave.Open()
}

// Destroy marks the buffer as unusable. The encrypted enclave itself is safe
// to leave for garbage collection.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyed = true
	b.enclave = nil
}

// Destroyed reports whether Destroy has been called.
func (b *Buffer) Destroyed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.destroyed
}
