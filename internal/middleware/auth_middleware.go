package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/pkg/auth"
)

// Ключи контекста gin, которые выставляет AuthMiddleware
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
)

// TokenParser проверяет токен доступа
type TokenParser interface {
	ParseToken(tokenString string) (*auth.Claims, error)
}

// AuthMiddleware обеспечивает аутентификацию и проверку ролей для защищенных маршрутов
type AuthMiddleware struct {
	parser TokenParser
}

// NewAuthMiddleware создает middleware аутентификации
func NewAuthMiddleware(parser TokenParser) *AuthMiddleware {
	return &AuthMiddleware{parser: parser}
}

// RequireAuth проверяет Bearer-токен и кладет пользователя в контекст
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required", "error_type": "token_missing"})
			c.Abort()
			return
		}

		// Проверяем формат заголовка Bearer {token}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
			c.Abort()
			return
		}

		claims, err := m.parser.ParseToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
			c.Abort()
			return
		}
		if !entity.IsKnownRole(claims.Role) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Unknown role", "error_type": "role_unknown"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireRoles пропускает только пользователей с одной из перечисленных ролей.
// Должен применяться ПОСЛЕ RequireAuth.
func (m *AuthMiddleware) RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		if _, ok := allowed[role.(string)]; !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient role", "error_type": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// StaffOnly - сокращение для администратора и координатора
func (m *AuthMiddleware) StaffOnly() gin.HandlerFunc {
	return m.RequireRoles(entity.RoleAdmin, entity.RoleCoordinator)
}

// AdminOnly проверяет, является ли пользователь администратором
func (m *AuthMiddleware) AdminOnly() gin.HandlerFunc {
	return m.RequireRoles(entity.RoleAdmin)
}
