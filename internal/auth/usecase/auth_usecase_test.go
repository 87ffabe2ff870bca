package usecase

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authdomain "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/domain"
	authdto "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/dto"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/repository"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/testutil"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestUsecase(t *testing.T) (*authUsecase, *testClock) {
	db := testutil.NewDB(t, &authdomain.User{}, &authdomain.RefreshToken{}, &authdomain.DeviceToken{})
	cfg := &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 24 * time.Hour,
		UpstreamTimeout:  5 * time.Second,
	}
	clock := &testClock{now: time.Now()}
	uc := NewAuthUsecaseWithClock(
		repository.NewUserRepository(db),
		repository.NewDeviceTokenRepository(db),
		cfg,
		clock.Now,
	)
	return uc.(*authUsecase), clock
}

func registerAlice(t *testing.T, uc AuthUsecase) *authdto.TokenResponse {
	resp, err := uc.Register(&authdto.RegisterRequest{Email: "alice@example.com", Password: "hunter22", Name: "Alice"})
	require.NoError(t, err)
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	uc, _ := newTestUsecase(t)
	registerAlice(t, uc)

	_, err := uc.Register(&authdto.RegisterRequest{Email: "ALICE@example.com", Password: "other123", Name: "A"})
	assert.ErrorIs(t, err, authdomain.ErrEmailTaken)

	resp, err := uc.Login(&authdto.LoginRequest{Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Alice", resp.User.Name)

	_, err = uc.Login(&authdto.LoginRequest{Email: "alice@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
}

func TestAuthorizeMissingCredential(t *testing.T) {
	uc, _ := newTestUsecase(t)

	_, err := uc.Authorize("", "whatever")
	assert.ErrorIs(t, err, authdomain.ErrMissingCredential)
}

func TestAuthorizeValidAccess(t *testing.T) {
	uc, _ := newTestUsecase(t)
	tokens := registerAlice(t, uc)

	id, err := uc.Authorize(tokens.AccessToken, "")
	require.NoError(t, err)
	assert.Equal(t, tokens.User.ID, id.User.ID)
	assert.False(t, id.Refreshed())
}

func TestAuthorizeExpiredWithoutRefresh(t *testing.T) {
	uc, clock := newTestUsecase(t)
	tokens := registerAlice(t, uc)
	clock.Advance(20 * time.Minute)

	_, err := uc.Authorize(tokens.AccessToken, "")
	assert.ErrorIs(t, err, authdomain.ErrExpiredNoRefresh)
}

func TestAuthorizeExpiredRefreshesOnce(t *testing.T) {
	uc, clock := newTestUsecase(t)
	tokens := registerAlice(t, uc)
	clock.Advance(20 * time.Minute)

	id, err := uc.Authorize(tokens.AccessToken, tokens.RefreshToken)
	require.NoError(t, err)
	require.True(t, id.Refreshed())
	assert.Equal(t, tokens.User.ID, id.User.ID)
	assert.NotEqual(t, tokens.AccessToken, id.RefreshedAccessToken)

	// the minted token is good on its own
	again, err := uc.Authorize(id.RefreshedAccessToken, "")
	require.NoError(t, err)
	assert.False(t, again.Refreshed())
}

func TestAuthorizeBadSignatureUsesRefresh(t *testing.T) {
	uc, _ := newTestUsecase(t)
	tokens := registerAlice(t, uc)

	other, _ := newTestUsecase(t)
	other.config = &config.Config{JWTSecret: "another-secret", JWTAccessExpiry: time.Minute, JWTRefreshExpiry: time.Hour}
	forged, err := other.generateAccessToken(tokens.User)
	require.NoError(t, err)

	_, err = uc.Authorize(forged, "")
	assert.ErrorIs(t, err, authdomain.ErrExpiredNoRefresh)

	id, err := uc.Authorize(forged, tokens.RefreshToken)
	require.NoError(t, err)
	assert.True(t, id.Refreshed())
}

func TestAuthorizeRefreshFailed(t *testing.T) {
	uc, clock := newTestUsecase(t)
	tokens := registerAlice(t, uc)
	clock.Advance(20 * time.Minute)

	_, err := uc.Authorize(tokens.AccessToken, "not-a-jwt")
	assert.ErrorIs(t, err, authdomain.ErrRefreshFailed)

	// an access token is not accepted where a refresh token is expected
	_, err = uc.Authorize(tokens.AccessToken, tokens.AccessToken)
	assert.ErrorIs(t, err, authdomain.ErrRefreshFailed)
}

func TestAuthorizeRevokedRefresh(t *testing.T) {
	uc, clock := newTestUsecase(t)
	tokens := registerAlice(t, uc)
	require.NoError(t, uc.Logout(tokens.RefreshToken))
	clock.Advance(20 * time.Minute)

	_, err := uc.Authorize(tokens.AccessToken, tokens.RefreshToken)
	assert.ErrorIs(t, err, authdomain.ErrRefreshFailed)
}

func TestAuthorizeMalformed(t *testing.T) {
	uc, _ := newTestUsecase(t)
	tokens := registerAlice(t, uc)

	_, err := uc.Authorize("garbage", tokens.RefreshToken)
	assert.ErrorIs(t, err, authdomain.ErrMalformed)

	// refresh tokens are not access tokens
	_, err = uc.Authorize(tokens.RefreshToken, tokens.RefreshToken)
	assert.ErrorIs(t, err, authdomain.ErrMalformed)
}

func TestAuthorizeUnknownSubject(t *testing.T) {
	uc, _ := newTestUsecase(t)
	ghost, err := uc.generateAccessToken(&authdomain.User{ID: "ghost", Email: "ghost@example.com"})
	require.NoError(t, err)

	_, err = uc.Authorize(ghost, "")
	assert.ErrorIs(t, err, authdomain.ErrMalformed)
}

type failingUserRepo struct {
	repository.UserRepository
	err error
}

func (r *failingUserRepo) FindByID(id string) (*authdomain.User, error) {
	return nil, r.err
}

func TestAuthorizeUserLookupFailureIsNotAuthError(t *testing.T) {
	uc, _ := newTestUsecase(t)
	tokens := registerAlice(t, uc)
	dbErr := errors.New("connection reset")
	uc.userRepo = &failingUserRepo{UserRepository: uc.userRepo, err: dbErr}

	_, err := uc.Authorize(tokens.AccessToken, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	var authErr *authdomain.AuthError
	assert.False(t, errors.As(err, &authErr))
}

func TestRefreshTokenIssuesNewPair(t *testing.T) {
	uc, _ := newTestUsecase(t)
	tokens := registerAlice(t, uc)

	resp, err := uc.RefreshToken(tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, resp.RefreshToken)

	// the old refresh token stays valid for its own device
	_, err = uc.RefreshToken(tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestGoogleSignInCreatesUser(t *testing.T) {
	uc, _ := newTestUsecase(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "id-token", r.URL.Query().Get("id_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"bob@example.com","name":"Bob","email_verified":"true"}`))
	}))
	defer srv.Close()
	uc.tokenInfo = srv.URL

	resp, err := uc.GoogleSignIn("id-token")
	require.NoError(t, err)
	assert.Equal(t, authdomain.ProviderGoogle, resp.User.Provider)

	_, err = uc.Login(&authdto.LoginRequest{Email: "bob@example.com", Password: "anything"})
	assert.ErrorIs(t, err, authdomain.ErrUseGoogleSignIn)
}

func TestGoogleSignInRejected(t *testing.T) {
	uc, _ := newTestUsecase(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	uc.tokenInfo = srv.URL

	_, err := uc.GoogleSignIn("bad")
	assert.ErrorIs(t, err, authdomain.ErrGoogleTokenRejected)
}

func TestDeviceRegistration(t *testing.T) {
	uc, _ := newTestUsecase(t)
	tokens := registerAlice(t, uc)

	require.NoError(t, uc.RegisterDevice(tokens.User.ID, "device-1", "firefox"))
	require.NoError(t, uc.RegisterDevice(tokens.User.ID, "device-1", "firefox 2"))

	got, err := uc.deviceRepo.GetTokensByUserID(tokens.User.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "firefox 2", got[0].DeviceInfo)

	require.NoError(t, uc.UnregisterDevice("device-1"))
	got, err = uc.deviceRepo.GetTokensByUserID(tokens.User.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
