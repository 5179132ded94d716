package jwt

import "github.com/golang-jwt/jwt"

// RoleAdmin is the only role allowed through RequireAdmin.
const RoleAdmin = "admin"

// Payload defines the claims of an admin API token.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID identifies the token holder in logs.
	ID string `json:"id"`

	// Role is the permission level of the holder.
	Role string `json:"role"`
}
