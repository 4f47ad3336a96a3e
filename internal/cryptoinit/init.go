// Package cryptoinit initializes the crypto package with implementations
// from subpackages to avoid circular dependencies.
package cryptoinit

import (
	"github.com/spacepanda-project/spacepanda/crypto"
	"github.com/spacepanda-project/spacepanda/crypto/keys"
	"github.com/spacepanda-project/spacepanda/crypto/storage"
)

func init() {
	// Register key generators
	crypto.SetKeyGenerators(
		func() (crypto.KeyPair, error) { return keys.GenerateEd25519KeyPair() },
		func() (crypto.KeyPair, error) { return keys.GenerateX25519KeyPair() },
	)

	// Register storage constructors
	crypto.SetStorageConstructors(
		func() crypto.KeyStorage { return storage.NewMemoryKeyStorage() },
	)
}
