package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the identity fields carried by marketplace bearer tokens.
// They are issued by the user service and consumed read-only by the
// gateway, which forwards them to backends as a serialized header.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}
