// Package jwt реализует генерацию и парсинг JWT токенов сессии
// с пользовательскими claim полями: uid учётной записи, email и роль.
package jwt

import (
	"time"
)

// Maker описывает интерфейс для генерации и парсинга токенов сессии.
type Maker interface {
	// GenerateToken выпускает токен для учётной записи с её ролью.
	GenerateToken(userUID, email, role string) (string, error)
	// ParseToken проверяет подпись и возвращает claims токена.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker на секретном ключе HMAC
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов
	tokenTTL  time.Duration // Время жизни токена
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
