package usecase

import (
	"errors"
	"fmt"
	"time"

	authdomain "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/domain"
	authdto "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/dto"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/repository"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/config"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	defaultGoogleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
)

// errAccessRejected marks an access token that failed verification in a way
// a refresh can recover from: expired, not yet valid, or signed differently.
var errAccessRejected = errors.New("access token rejected")

// errUserLookup marks a storage failure while loading the token's subject.
// It is not the caller's fault and never maps to an AuthError.
var errUserLookup = errors.New("load token subject")

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo   repository.UserRepository
	deviceRepo repository.DeviceTokenRepository
	config     *config.Config
	http       *resty.Client
	tokenInfo  string
	now        func() time.Time
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(userRepo repository.UserRepository, deviceRepo repository.DeviceTokenRepository, cfg *config.Config) AuthUsecase {
	return NewAuthUsecaseWithClock(userRepo, deviceRepo, cfg, time.Now)
}

// NewAuthUsecaseWithClock is NewAuthUsecase with a custom clock for token
// issuing and verification.
func NewAuthUsecaseWithClock(userRepo repository.UserRepository, deviceRepo repository.DeviceTokenRepository, cfg *config.Config, now func() time.Time) AuthUsecase {
	return &authUsecase{
		userRepo:   userRepo,
		deviceRepo: deviceRepo,
		config:     cfg,
		http:       resty.New().SetTimeout(cfg.UpstreamTimeout),
		tokenInfo:  defaultGoogleTokenInfoURL,
		now:        now,
	}
}

func (u *authUsecase) Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error) {
	user, err := u.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, authdomain.ErrInvalidCredentials
	}

	if user.Provider != authdomain.ProviderEmail {
		return nil, authdomain.ErrUseGoogleSignIn
	}

	if !repository.CheckPasswordHash(req.Password, user.Password) {
		return nil, authdomain.ErrInvalidCredentials
	}

	return u.generateTokens(user)
}

func (u *authUsecase) Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error) {
	existing, err := u.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return nil, authdomain.ErrEmailTaken
	}

	hashedPassword, err := repository.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &authdomain.User{
		Email:    req.Email,
		Password: hashedPassword,
		Name:     req.Name,
		Provider: authdomain.ProviderEmail,
	}

	if err := u.userRepo.Create(user); err != nil {
		return nil, err
	}

	return u.generateTokens(user)
}

// GoogleTokenInfo represents the response from Google's tokeninfo endpoint
type GoogleTokenInfo struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	EmailVerified string `json:"email_verified"` // Google returns this as string "true" or "false"
	Aud           string `json:"aud"`
}

func (u *authUsecase) GoogleSignIn(idToken string) (*authdto.TokenResponse, error) {
	var info GoogleTokenInfo
	resp, err := u.http.R().
		SetQueryParam("id_token", idToken).
		SetResult(&info).
		Get(u.tokenInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to verify Google token: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d", authdomain.ErrGoogleTokenRejected, resp.StatusCode())
	}
	if info.EmailVerified != "true" {
		return nil, fmt.Errorf("%w: email is not verified", authdomain.ErrGoogleTokenRejected)
	}
	if u.config.GoogleClientID != "" && info.Aud != u.config.GoogleClientID {
		return nil, fmt.Errorf("%w: audience mismatch", authdomain.ErrGoogleTokenRejected)
	}

	user, err := u.userRepo.FindByEmail(info.Email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		user = &authdomain.User{
			Email:     info.Email,
			Name:      info.Name,
			AvatarURL: info.Picture,
			Provider:  authdomain.ProviderGoogle,
		}
		if err := u.userRepo.Create(user); err != nil {
			return nil, err
		}
	} else {
		user.Name = info.Name
		user.AvatarURL = info.Picture
		if err := u.userRepo.Update(user); err != nil {
			return nil, err
		}
	}

	return u.generateTokens(user)
}

func (u *authUsecase) RefreshToken(refreshToken string) (*authdto.TokenResponse, error) {
	user, err := u.userFromRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	return u.generateTokens(user)
}

func (u *authUsecase) Logout(refreshToken string) error {
	return u.userRepo.DeleteRefreshToken(refreshToken)
}

func (u *authUsecase) Authorize(access, refresh string) (*authdomain.Identity, error) {
	if access == "" {
		return nil, authdomain.NewAuthError(authdomain.ReasonMissingCredential, "authorization header required")
	}

	user, err := u.verifyAccess(access)
	if err == nil {
		return &authdomain.Identity{User: user}, nil
	}
	if errors.Is(err, errUserLookup) {
		return nil, err
	}
	if !errors.Is(err, errAccessRejected) {
		return nil, authdomain.NewAuthError(authdomain.ReasonMalformed, err.Error())
	}
	if refresh == "" {
		return nil, authdomain.NewAuthError(authdomain.ReasonExpiredNoRefresh, "access token expired and no refresh token provided")
	}

	// One refresh per call; the minted token is verified but never refreshed again
	owner, err := u.userFromRefresh(refresh)
	if err != nil {
		return nil, authdomain.NewAuthError(authdomain.ReasonRefreshFailed, err.Error())
	}
	minted, err := u.generateAccessToken(owner)
	if err != nil {
		return nil, authdomain.NewAuthError(authdomain.ReasonRefreshFailed, err.Error())
	}
	user, err = u.verifyAccess(minted)
	if errors.Is(err, errUserLookup) {
		return nil, err
	}
	if err != nil {
		return nil, authdomain.NewAuthError(authdomain.ReasonRefreshFailed, err.Error())
	}
	return &authdomain.Identity{User: user, RefreshedAccessToken: minted}, nil
}

func (u *authUsecase) RegisterDevice(userID, token, deviceInfo string) error {
	return u.deviceRepo.SaveToken(userID, token, deviceInfo)
}

func (u *authUsecase) UnregisterDevice(token string) error {
	return u.deviceRepo.DeleteToken(token)
}

func (u *authUsecase) parse(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(u.now))
}

// verifyAccess wraps errAccessRejected for failures a refresh can fix and
// errUserLookup for storage failures. Other errors mean the token is
// structurally wrong.
func (u *authUsecase) verifyAccess(tokenString string) (*authdomain.User, error) {
	token, err := u.parse(tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenNotValidYet) || errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("%w: %v", errAccessRejected, err)
		}
		return nil, fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["typ"] != tokenTypeAccess {
		return nil, errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, errors.New("invalid token claims")
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUserLookup, err)
	}
	if user == nil {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (u *authUsecase) userFromRefresh(refreshToken string) (*authdomain.User, error) {
	token, err := u.parse(refreshToken)
	if err != nil || !token.Valid {
		return nil, authdomain.ErrInvalidRefreshToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["typ"] != tokenTypeRefresh {
		return nil, authdomain.ErrInvalidRefreshToken
	}

	// Check if token exists in repository
	storedToken, err := u.userRepo.FindRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if storedToken == nil || storedToken.ExpiresAt.Before(u.now()) {
		return nil, fmt.Errorf("%w: revoked or expired", authdomain.ErrInvalidRefreshToken)
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID != storedToken.UserID {
		return nil, authdomain.ErrInvalidRefreshToken
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (u *authUsecase) generateTokens(user *authdomain.User) (*authdto.TokenResponse, error) {
	accessToken, err := u.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := u.generateRefreshToken(user)
	if err != nil {
		return nil, err
	}

	refreshTokenEntity := &authdomain.RefreshToken{
		Token:     refreshToken,
		UserID:    user.ID,
		ExpiresAt: u.now().Add(u.config.JWTRefreshExpiry),
	}
	if err := u.userRepo.SaveRefreshToken(refreshTokenEntity); err != nil {
		return nil, err
	}

	return &authdto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

func (u *authUsecase) generateAccessToken(user *authdomain.User) (string, error) {
	now := u.now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"typ":     tokenTypeAccess,
		"jti":     uuid.New().String(),
		"exp":     now.Add(u.config.JWTAccessExpiry).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

func (u *authUsecase) generateRefreshToken(user *authdomain.User) (string, error) {
	now := u.now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"typ":     tokenTypeRefresh,
		"jti":     uuid.New().String(),
		"exp":     now.Add(u.config.JWTRefreshExpiry).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}
