package auth

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Ошибки проверки токена
var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token is expired")
	ErrTokenInvalid   = errors.New("token validation failed")
)

// Claims содержит поля токена, выпущенного внешним сервисом аутентификации
type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService проверяет HS256-токены общим секретом.
// Выдача токенов нужна только для служебных утилит и тестов.
type JWTService struct {
	secret []byte
	issuer string
}

// NewJWTService создает сервис проверки токенов
func NewJWTService(secret, issuer string) (*JWTService, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &JWTService{secret: []byte(secret), issuer: issuer}, nil
}

// GenerateToken выпускает токен для пользователя
func (s *JWTService) GenerateToken(userID uint, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token for user #%d failed: %w", userID, err)
	}
	return signed, nil
}

// ParseToken проверяет подпись, срок действия и издателя токена
func (s *JWTService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, ErrTokenMalformed
			case ve.Errors&jwt.ValidationErrorExpired != 0:
				log.Printf("[JWT] Токен пользователя ID=%d истек", claims.UserID)
				return nil, ErrTokenExpired
			case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				log.Printf("[JWT] Ошибка: неверная подпись токена для пользователя ID=%d", claims.UserID)
				return nil, ErrTokenInvalid
			}
		}
		log.Printf("[JWT] Ошибка при разборе токена: %v", err)
		return nil, ErrTokenInvalid
	}

	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		log.Printf("[JWT] Ошибка: неожиданный издатель %q для пользователя ID=%d", claims.Issuer, claims.UserID)
		return nil, ErrTokenInvalid
	}
	if claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
