package crypto

import "crypto/ecdh"

// x25519ScalarMult computes the X25519 shared point for a raw 32-byte
// scalar and a raw 32-byte peer point, using the standard library's
// constant-time ecdh implementation.
func x25519ScalarMult(scalar, point []byte) ([]byte, error) {
	curve := ecdh.X25519()
	sk, err := curve.NewPrivateKey(scalar)
	if err != nil {
		return nil, err
	}
	pk, err := curve.NewPublicKey(point)
	if err != nil {
		return nil, err
	}
	return sk.ECDH(pk)
}
