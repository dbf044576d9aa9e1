package models

import (
	"encoding/json"
	"time"
)

// Role is the coarse privilege level attached to a user at registration.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the resolved caller of an authenticated request.
type Identity struct {
	Username string
	Role     Role
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Payload is an opaque JSON document body. The server never inspects it.
type Payload = json.RawMessage

type Metrics struct {
	UserCount     int64 `json:"user_count"`
	DocumentCount int64 `json:"document_count"`
}
