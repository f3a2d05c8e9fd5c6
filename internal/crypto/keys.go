// Package crypto выводит ключи кластера из общего пароля и шифрует
// тела запросов синхронизации между узлами.
package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"

	"github.com/iudanet/ledgersync/internal/validation"
)

// ClusterKeys ключи, общие для всех узлов одного кластера
type ClusterKeys struct {
	TokenKey []byte // TokenKey ключ подписи JWT между узлами (32 bytes)
	SealKey  []byte // SealKey ключ шифрования тел запросов (32 bytes)
}

// Параметры Argon2id
const (
	// Argon2Time - количество итераций (time cost)
	Argon2Time = 1
	// Argon2Memory - объем памяти в KB (64MB = 64*1024 KB)
	Argon2Memory = 64 * 1024
	// Argon2Threads - количество параллельных потоков
	Argon2Threads = 4
	// Argon2KeyLen - длина выходного ключа в байтах
	Argon2KeyLen = 32
)

// clusterSalt соль зависит только от имени кластера: все узлы с одним
// паролем должны получить одинаковые ключи без обмена данными
func clusterSalt(cluster string) []byte {
	sum := blake2b.Sum256([]byte("ledgersync/cluster/" + cluster))
	return sum[:]
}

// DeriveClusterKeys генерирует два независимых ключа из пароля кластера.
// Использует Argon2id с разными context strings для независимости ключей.
func DeriveClusterKeys(passphrase, cluster string) (*ClusterKeys, error) {
	if err := validation.ValidatePassphrase(passphrase); err != nil {
		return nil, err
	}
	if cluster == "" {
		return nil, fmt.Errorf("cluster name cannot be empty")
	}

	salt := clusterSalt(cluster)
	base := []byte(passphrase)

	tokenContext := append(append([]byte{}, base...), "token"...)
	sealContext := append(append([]byte{}, base...), "seal"...)

	return &ClusterKeys{
		TokenKey: argon2.IDKey(tokenContext, salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen),
		SealKey:  argon2.IDKey(sealContext, salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen),
	}, nil
}
