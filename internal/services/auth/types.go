package auth

import (
	"errors"
	"time"
)

const RoleAdmin = "ADMIN"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

type AccessClaims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}
