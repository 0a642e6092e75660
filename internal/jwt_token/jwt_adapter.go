package jwttoken

import (
	"govdash/pkg/domain"
	authmw "govdash/pkg/platform/middleware/auth"
)

// JWTServiceAdapter lets the auth middleware depend on a narrow validator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (domain.Actor, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return domain.Anonymous, err
	}
	return claims.Actor()
}

var _ authmw.TokenValidator = (*JWTServiceAdapter)(nil)
