package crypto

import (
	"crypto"
	"errors"
	"time"
)

// KeyType represents the type of cryptographic key.
type KeyType string

const (
	KeyTypeEd25519 KeyType = "Ed25519"
	KeyTypeX25519  KeyType = "X25519"
)

// Ciphersuite is the single hard-coded MLS ciphersuite this facade speaks.
// Changing ciphersuite is an out-of-band coordinated operation that
// requires starting a new group (spec §4.1) — there is no runtime
// negotiation, so this is a constant, not a registry entry.
const Ciphersuite = "X25519-AES128GCM-SHA256-Ed25519"

// KeyPair represents a cryptographic key pair used either for signing
// (Ed25519, identity and leaf keys) or for key agreement (X25519, HPKE
// init keys).
type KeyPair interface {
	// PublicKey returns the public key
	PublicKey() crypto.PublicKey

	// PrivateKey returns the private key
	PrivateKey() crypto.PrivateKey

	// Type returns the key type
	Type() KeyType

	// Sign signs the given message
	Sign(message []byte) ([]byte, error)

	// Verify verifies the signature
	Verify(message, signature []byte) error

	// ID returns a unique identifier for this key pair
	ID() string
}

// KeyStorage provides storage for key pairs, used both for long-term
// identity keys and for the single-use KeyPackage init keys held
// pending consumption by a Welcome (spec §3 "KeyPackage").
type KeyStorage interface {
	// Store stores a key pair with the given ID
	Store(id string, keyPair KeyPair) error

	// Load loads a key pair by ID
	Load(id string) (KeyPair, error)

	// Delete removes a key pair by ID
	Delete(id string) error

	// List returns all stored key IDs
	List() ([]string, error)

	// Exists checks if a key exists
	Exists(id string) bool
}

// KeyRotationConfig configures a crypto/rotation KeyRotator. With
// KeepOldKeys set, Rotate also keeps the replaced pair in storage under
// "<id>.old.<old key id>".
type KeyRotationConfig struct {
	KeepOldKeys bool
}

// KeyRotationEvent records a single rotation for audit/debugging.
type KeyRotationEvent struct {
	Timestamp time.Time
	OldKeyID  string
	NewKeyID  string
	Reason    string
}

// KeyRotator rotates a stored key pair in place, returning the fresh pair.
type KeyRotator interface {
	Rotate(id string) (KeyPair, error)
	GetRotationHistory(id string) ([]KeyRotationEvent, error)
}

// CryptoError is the typed error family for primitive operation failures
// (spec §4.1: "failures are boolean (verify) or typed CryptoError").
type CryptoError struct {
	Kind string
	Err  error
}

func (e *CryptoError) Error() string {
	if e.Err != nil {
		return e.Kind + ": " + e.Err.Error()
	}
	return e.Kind
}

func (e *CryptoError) Unwrap() error { return e.Err }

const (
	CryptoErrInvalidKey    = "InvalidKey"
	CryptoErrVerifyFailed  = "VerifyFailed"
	CryptoErrDecryptFailed = "DecryptFailed"
)

func newCryptoError(kind string, err error) *CryptoError {
	return &CryptoError{Kind: kind, Err: err}
}

// Common errors
var (
	ErrKeyNotFound        = errors.New("key not found")
	ErrInvalidKeyType     = errors.New("invalid key type")
	ErrInvalidKeyFormat   = errors.New("invalid key format")
	ErrKeyExists          = errors.New("key already exists")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrSignNotSupported   = errors.New("sign not supported for this key type")
	ErrVerifyNotSupported = errors.New("verify not supported for this key type")
)
