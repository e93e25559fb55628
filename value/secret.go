package value

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/mlld-lang/mlld-core/invariant"
)

// redactionMask hides secret values in any text/log path that isn't an
// explicit, capability-gated unwrap.
const redactionMask = "***"

// SecretHandle wraps a `secret`-labeled value's raw text so that the
// only ways to read it are the masked/opaque accessors below, grounded
// directly on core/sdk/secret.Handle. Guards (spec.md
// §4.7) operate on the StructuredValue, not the handle, but any
// component rendering a secret-labeled value for display (the
// materializer, `/log`) should reach for a SecretHandle instead of the
// raw `.text` to avoid accidental leakage.
type SecretHandle struct {
	value string
}

// NewSecretHandle wraps a raw secret value.
func NewSecretHandle(value string) *SecretHandle {
	return &SecretHandle{value: value}
}

// String panics: printing a tainted secret via fmt verbs is exactly the
// accidental-leak path this type exists to prevent.
func (h *SecretHandle) String() string {
	panic("attempted to print tainted secret - use Mask() or UnsafeUnwrap()")
}

// Mask returns the first and last n characters with the middle redacted,
// e.g. Mask(3) on "sk-12345-abcdef" yields "sk-***def".
func (h *SecretHandle) Mask(n int) string {
	invariant.Precondition(n >= 0, "mask count must be non-negative")
	if len(h.value) <= n*2 {
		return redactionMask
	}
	return h.value[:n] + redactionMask + h.value[len(h.value)-n:]
}

// Len returns the value's length without exposing it.
func (h *SecretHandle) Len() int { return len(h.value) }

// Equal compares two secrets in constant time.
func (h *SecretHandle) Equal(other *SecretHandle) bool {
	invariant.NotNil(other, "other")
	if h.Len() != other.Len() {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(h.value), []byte(other.value)) == 1
}

// UnsafeUnwrap returns the raw value. Only the Executor Bridge (C5)
// should call this, when binding a secret-labeled parameter into a
// subprocess/code invocation that has been allowed through a guard.
func (h *SecretHandle) UnsafeUnwrap() string {
	return h.value
}

// Fingerprint returns a keyed BLAKE2b-256 hash of the value for
// resolver integrity checks (spec.md §4.8 point 2) and scrubber-style
// matching, without ever exposing the plaintext. key must be at least
// 32 bytes, generated per-run so fingerprints don't correlate across
// runs.
func (h *SecretHandle) Fingerprint(key []byte) string {
	invariant.Precondition(len(key) >= 32, "fingerprint key must be at least 32 bytes")
	hash, err := blake2b.New256(key)
	if err != nil {
		panic(fmt.Sprintf("failed to create BLAKE2b hash: %v", err))
	}
	hash.Write([]byte(h.value))
	return hex.EncodeToString(hash.Sum(nil))
}

// GoString prevents %#v from leaking the value.
func (h *SecretHandle) GoString() string {
	return fmt.Sprintf("secret.Handle{%s}", h.Mask(3))
}
