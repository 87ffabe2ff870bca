package usecase

import (
	authdomain "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/domain"
	authdto "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/dto"
)

// AuthUsecase defines the interface for account and credential operations
type AuthUsecase interface {
	Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	GoogleSignIn(idToken string) (*authdto.TokenResponse, error)
	RefreshToken(refreshToken string) (*authdto.TokenResponse, error)
	Logout(refreshToken string) error

	// Authorize resolves the caller of a protected operation. An expired or
	// unverifiable access token is refreshed at most once using refresh.
	Authorize(access, refresh string) (*authdomain.Identity, error)

	RegisterDevice(userID, token, deviceInfo string) error
	UnregisterDevice(token string) error
}
