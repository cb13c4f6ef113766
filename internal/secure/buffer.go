package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned by Use after Destroy has been called.
var ErrDestroyed = errors.New("secure buffer destroyed")

// Buffer holds a secret payload encrypted in memory until it is used.
type Buffer struct {
	mu        sync.Mutex
	enclave   *memguard.Enclave
	size      int
	destroyed bool
}

// Seal moves data into an encrypted enclave. memguard wipes the source
// slice, so callers must not reuse it.
func Seal(data []byte) *Buffer {
	b := &Buffer{size: len(data)}
	if len(data) > 0 {
		b.enclave = memguard.NewEnclave(data)
	}
	return b
}

// SealString seals a copy of s.
func SealString(s string) *Buffer {
	return Seal([]byte(s))
}

// Len returns the size of the sealed payload.
func (b *Buffer) Len() int {
	return b.size
}

// Use decrypts the payload into a locked buffer, hands the plaintext to fn
// and wipes it afterwards.
func (b *Buffer) Use(fn func(plain []byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrDestroyed
	}
	if b.enclave == nil {
		return fn(nil)
	}

	locked, err := b.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// Destroy drops the enclave. Safe to call more than once.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.enclave = nil
	b.destroyed = true
}
