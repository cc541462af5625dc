package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/pkg/auth"
)

// NewTokenCmd выпускает тестовый токен доступа (локальная разработка и smoke-проверки)
func NewTokenCmd() *cobra.Command {
	var (
		secret string
		issuer string
		userID uint
		email  string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Выпустить JWT для локальной проверки API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !entity.IsKnownRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			if userID == 0 {
				return fmt.Errorf("--user-id is required")
			}

			jwtService, err := auth.NewJWTService(secret, issuer)
			if err != nil {
				return err
			}
			token, err := jwtService.GenerateToken(userID, email, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("AUTH_JWT_SECRET"), "HMAC-секрет (по умолчанию AUTH_JWT_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", os.Getenv("AUTH_ISSUER"), "издатель токена")
	cmd.Flags().UintVar(&userID, "user-id", 0, "ID пользователя")
	cmd.Flags().StringVar(&email, "email", "", "e-mail пользователя")
	cmd.Flags().StringVar(&role, "role", entity.RoleStudent, "роль: admin, coordinator, student")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "время жизни токена")
	return cmd
}
