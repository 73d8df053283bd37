// Package models содержит доменную модель пользователя системы.
package models

import "time"

// Role роль доступа пользователя. Поле является проекцией набора подписок
// и всегда может быть пересчитано из них.
type Role string

const (
	RoleUser    Role = "user"
	RolePremium Role = "premium"
	// RoleAdmin присваивается вне этого сервиса и синхронизацией не меняется.
	RoleAdmin Role = "admin"
)

// User профиль пользователя в части, которой владеет сервис.
type User struct {
	UID       string
	Role      Role
	UpdatedAt time.Time
}

// Entitlement итоговое представление премиум-доступа пользователя.
type Entitlement struct {
	UID       string     `json:"uid"`
	Role      Role       `json:"role"`
	Premium   bool       `json:"premium"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
