package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fiscalerp/backend/internal/domain/certificate"
)

// Keeper seals and opens certificate material with a 256-bit master key.
// Ciphertext layout is nonce || AES-GCM output, so each sealed blob is
// self-contained.
type Keeper struct {
	aead        cipher.AEAD
	fingerprint string
}

// NewKeeper builds a keeper from a hex-encoded 32-byte master key
func NewKeeper(masterKeyHex string) (*Keeper, error) {
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	sum := sha256.Sum256(key)
	return &Keeper{aead: aead, fingerprint: hex.EncodeToString(sum[:8])}, nil
}

// Fingerprint identifies the master key without revealing it. Stored next to
// sealed records so a key mismatch is reported instead of a garbled open.
func (k *Keeper) Fingerprint() string {
	return k.fingerprint
}

// Seal encrypts plaintext under the master key
func (k *Keeper) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return k.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a sealed blob. A blob sealed under a different master key
// fails authentication and maps to ErrDecryptionKeyMismatch.
func (k *Keeper) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < k.aead.NonceSize()+k.aead.Overhead() {
		return nil, fmt.Errorf("%w: sealed blob too short", certificate.ErrDecryptionKeyMismatch)
	}
	nonce, ciphertext := sealed[:k.aead.NonceSize()], sealed[k.aead.NonceSize():]
	plaintext, err := k.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certificate.ErrDecryptionKeyMismatch, err)
	}
	return plaintext, nil
}

// Rewrap opens a blob sealed by old and reseals it under this keeper.
// Used by the key rotation command.
func (k *Keeper) Rewrap(old *Keeper, sealed []byte) ([]byte, error) {
	plaintext, err := old.Open(sealed)
	if err != nil {
		return nil, err
	}
	return k.Seal(plaintext)
}
