// Package jwt выпускает короткоживущие сервисные токены, которыми клиент
// подписывает запросы к бэкенду, и разбирает их обратно.
package jwt

import (
	"time"
)

// Maker описывает интерфейс для генерации и парсинга сервисных токенов.
type Maker interface {
	// GenerateToken выпускает токен от имени клиента для указанного субъекта
	GenerateToken(subject string) (string, error)
	// ParseToken проверяет подпись и возвращает claims
	ParseToken(tokenStr string) (*ServiceClaims, error)
}

// MakerImpl реализует Maker с использованием общего секрета и TTL.
type MakerImpl struct {
	secretKey string
	issuer    string
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewJWTMaker создаёт MakerImpl. issuer попадает в claim "iss" каждого токена.
func NewJWTMaker(secretKey, issuer string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		issuer:    issuer,
		tokenTTL:  ttl,
		now:       time.Now,
	}
}
