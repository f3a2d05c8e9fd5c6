package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// FingerprintLen длина отпечатка в hex символах
const FingerprintLen = 16

// Fingerprint возвращает короткий публичный отпечаток ключа. Узлы
// публикуют его при обнаружении, чтобы находить членов своего кластера,
// не раскрывая сам ключ.
func Fingerprint(key []byte) (string, error) {
	if len(key) == 0 {
		return "", fmt.Errorf("key cannot be empty")
	}
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])[:FingerprintLen], nil
}

// VerifyFingerprint проверяет, что отпечаток принадлежит ключу
func VerifyFingerprint(key []byte, fingerprint string) error {
	expected, err := Fingerprint(key)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(fingerprint)) != 1 {
		return fmt.Errorf("fingerprint does not match cluster key")
	}
	return nil
}
