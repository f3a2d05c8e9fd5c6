package httpsync

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenIssuer издатель токенов узлов
	TokenIssuer = "ledgersync"
	// DefaultTokenTTL срок жизни токена одного запроса
	DefaultTokenTTL = time.Minute
)

// Claims JWT claims узла. Subject содержит node id отправителя.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken подписывает токен узла ключом кластера (HS256)
func IssueToken(key []byte, nodeID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   nodeID,
			Issuer:    TokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken проверяет подпись, срок и издателя токена
func ValidateToken(key []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	}, jwt.WithIssuer(TokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// contextKey тип для ключей контекста
type contextKey string

// PeerIDKey ключ для хранения node id аутентифицированного узла
const PeerIDKey contextKey = "peer_id"

// PeerID извлекает node id узла, прошедшего AuthMiddleware
func PeerID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(PeerIDKey).(string)
	return id, ok
}
