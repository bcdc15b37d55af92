package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
)

// KeyBits is the modulus size of generated identity keys.
const KeyBits = 2048

const publicKeyBlock = "PUBLIC KEY"

var (
	// ErrNoPEMBlock is returned when the input contains no PEM block of the expected type.
	ErrNoPEMBlock = errors.New("no PEM block found")
	// ErrNotRSA is returned when a decoded key is not an RSA key.
	ErrNotRSA = errors.New("key is not RSA")
)

// KeyPair holds a worker's identity keys. PublicPEM is the exported form of
// Private's public half; it never changes after generation.
type KeyPair struct {
	Private   *rsa.PrivateKey
	PublicPEM []byte
}

// GenerateKeyPair produces a fresh RSA key pair of KeyBits bits.
//
// A failure here leaves the caller without an identity; workers treat it as
// fatal.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return &KeyPair{
		Private:   priv,
		PublicPEM: pem.EncodeToMemory(&pem.Block{Type: publicKeyBlock, Bytes: pubDER}),
	}, nil
}

// Sign returns the hex-encoded signature of message under key.
func Sign(message string, key *rsa.PrivateKey) (string, error) {
	if key == nil {
		return "", errors.New("sign: nil private key")
	}
	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// Verify reports whether signature is a valid hex-encoded signature of message
// under the PEM-encoded public key. Malformed keys, malformed signatures and
// mismatches all yield false.
func Verify(message, signature string, publicPEM []byte) bool {
	pub, err := ParsePublicKey(publicPEM)
	if err != nil {
		return false
	}
	return VerifyKey(message, signature, pub)
}

// VerifyKey is Verify for an already parsed key. A nil key never verifies.
func VerifyKey(message, signature string, pub *rsa.PublicKey) bool {
	if pub == nil {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) == 0 {
		return false
	}
	digest := sha256.Sum256([]byte(message))
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil
}

// ParsePublicKey decodes a PEM-encoded SPKI RSA public key.
func ParsePublicKey(publicPEM []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(publicPEM)
	if block == nil || block.Type != publicKeyBlock {
		return nil, ErrNoPEMBlock
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, ErrNotRSA
	}
	return pub, nil
}
