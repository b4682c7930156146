package domain

import "github.com/golang-jwt/jwt/v5"

// Claims is the JWT payload accepted by the operational endpoints.
type Claims struct {
	ServiceName string `json:"service_name"`
	jwt.RegisteredClaims
}
