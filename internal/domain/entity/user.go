package entity

import (
	"time"
)

// Роли пользователей платформы
const (
	RoleAdmin       = "admin"
	RoleCoordinator = "coordinator"
	RoleStudent     = "student"
)

// User представляет пользователя в системе.
// Учетные данные и выдача сессий находятся во внешнем сервисе аутентификации,
// здесь хранится только профиль, нужный для авторизации и аналитики.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email      string    `gorm:"size:100;not null;uniqueIndex" json:"email"`
	FullName   string    `gorm:"size:200;not null;default:''" json:"full_name"`
	Role       string    `gorm:"size:20;not null;default:'student';index" json:"role"`
	Department string    `gorm:"size:100;not null;default:''" json:"department"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (User) TableName() string {
	return "users"
}

// IsStaff возвращает true для администраторов и координаторов
func (u *User) IsStaff() bool {
	return IsStaffRole(u.Role)
}

// IsStaffRole проверяет роль без загрузки пользователя (роль берется из токена)
func IsStaffRole(role string) bool {
	return role == RoleAdmin || role == RoleCoordinator
}

// IsKnownRole проверяет, что роль входит в поддерживаемый набор
func IsKnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleCoordinator, RoleStudent:
		return true
	}
	return false
}
