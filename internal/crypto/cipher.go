package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// NonceSize - размер nonce для AES-GCM (12 bytes стандартный размер)
const NonceSize = 12

// Sealer шифрует тела запросов AES-256-GCM.
// Формат: nonce (12 bytes) + ciphertext + auth_tag (16 bytes).
// Дополнительные данные (обычно путь запроса) привязывают тело к
// эндпоинту, так что его нельзя переслать на другой.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer создает Sealer для 32-байтного ключа
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("seal key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal шифрует plaintext, аутентифицируя вместе с ним aad
func (s *Sealer) Seal(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	// Шифротекст дописывается сразу после nonce
	return s.aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Open расшифровывает данные Seal и проверяет aad
func (s *Sealer) Open(sealed, aad []byte) ([]byte, error) {
	if len(sealed) < NonceSize+s.aead.Overhead() {
		return nil, fmt.Errorf("sealed data too short")
	}

	plaintext, err := s.aead.Open(nil, sealed[:NonceSize], sealed[NonceSize:], aad)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: authentication failed or corrupted data: %w", err)
	}
	return plaintext, nil
}
