// Package security signs screening reports so a client can check that a
// report hash was produced by this server instance.
package security

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrBadSignature is returned when a signature does not recover to the expected signer
var ErrBadSignature = errors.New("signature does not match signer")

// Signer holds a secp256k1 key generated at startup
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner generates a fresh signing key
func NewSigner() (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address is the Ethereum address derived from the signing key
func (s *Signer) Address() string {
	return s.address.Hex()
}

// SignHash signs a 0x-prefixed 32-byte hash and returns the 65-byte [R || S || V] signature as hex
func (s *Signer) SignHash(hash string) (string, error) {
	digest, err := decodeHash(hash)
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	return hexutil.Encode(sig), nil
}

// Verify checks that signature over hash was made by signer
func Verify(hash, signature, signer string) error {
	digest, err := decodeHash(hash)
	if err != nil {
		return err
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %w", err)
	}
	if !strings.EqualFold(crypto.PubkeyToAddress(*pub).Hex(), signer) {
		return ErrBadSignature
	}
	return nil
}

func decodeHash(hash string) ([]byte, error) {
	digest, err := hexutil.Decode(hash)
	if err != nil {
		return nil, fmt.Errorf("invalid hash encoding: %w", err)
	}
	if len(digest) != common.HashLength {
		return nil, fmt.Errorf("hash must be %d bytes, got %d", common.HashLength, len(digest))
	}
	return digest, nil
}
