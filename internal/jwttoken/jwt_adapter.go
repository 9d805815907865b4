package jwttoken

import (
	"lifebank/internal/platform/middleware"
	id "lifebank/pkg/domain"
	dErrors "lifebank/pkg/domain-errors"
)

// JWTServiceAdapter bridges the JWT service to the middleware's validator
// interface, translating raw claim strings into typed identity values.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token carries an invalid user id")
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token carries an invalid role")
	}
	return &middleware.JWTClaims{UserID: userID, Role: role}, nil
}
