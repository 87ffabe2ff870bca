package delivery

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	authdomain "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/domain"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuth struct {
	usecase.AuthUsecase
	identity *authdomain.Identity
	err      error

	calls      int
	gotAccess  string
	gotRefresh string
}

func (s *stubAuth) Authorize(access, refresh string) (*authdomain.Identity, error) {
	s.calls++
	s.gotAccess, s.gotRefresh = access, refresh
	return s.identity, s.err
}

func newGateRouter(auth usecase.AuthUsecase, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(auth, zerolog.Nop()), handler)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGateMissingCredential(t *testing.T) {
	auth := &stubAuth{}
	ran := false
	r := newGateRouter(auth, func(c *gin.Context) { ran = true })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(authdomain.ReasonMissingCredential), decode(t, w)["reason"])
	assert.False(t, ran)
	assert.Zero(t, auth.calls)
}

func TestGateMalformedHeader(t *testing.T) {
	auth := &stubAuth{}
	r := newGateRouter(auth, func(c *gin.Context) {})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(authdomain.ReasonMalformed), decode(t, w)["reason"])
	assert.Zero(t, auth.calls)
}

func TestGateExpiredWithoutRefreshSkipsHandler(t *testing.T) {
	auth := &stubAuth{err: authdomain.NewAuthError(authdomain.ReasonExpiredNoRefresh, "expired")}
	ran := false
	r := newGateRouter(auth, func(c *gin.Context) { ran = true })

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer old")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(authdomain.ReasonExpiredNoRefresh), decode(t, w)["reason"])
	assert.False(t, ran)
}

func TestGateUnexpectedErrorIsServerError(t *testing.T) {
	auth := &stubAuth{err: errors.New("db down")}
	r := newGateRouter(auth, func(c *gin.Context) {})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "authorization unavailable", body["error"])
	assert.NotContains(t, body, "reason")
}

func TestGateValidAccessPassesThrough(t *testing.T) {
	user := &authdomain.User{ID: "u-1"}
	auth := &stubAuth{identity: &authdomain.Identity{User: user}}
	r := newGateRouter(auth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("userID")})
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set(RefreshHeader, "r-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "u-1", body["user_id"])
	assert.NotContains(t, body, "access")
	assert.Empty(t, w.Header().Get(NewAccessTokenHeader))
	assert.Equal(t, "good", auth.gotAccess)
	assert.Equal(t, "r-1", auth.gotRefresh)
}

func TestGateGraftsRefreshedToken(t *testing.T) {
	user := &authdomain.User{ID: "u-1"}
	auth := &stubAuth{identity: &authdomain.Identity{User: user, RefreshedAccessToken: "minted"}}
	r := newGateRouter(auth, func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"id": "evt-1"})
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer old")
	req.Header.Set(RefreshHeader, "r-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "minted", w.Header().Get(NewAccessTokenHeader))
	body := decode(t, w)
	assert.Equal(t, "evt-1", body["id"])
	assert.Equal(t, "minted", body["access"])
	assert.Equal(t, 1, auth.calls)
}

func TestGateLeavesNonObjectBodies(t *testing.T) {
	user := &authdomain.User{ID: "u-1"}
	auth := &stubAuth{identity: &authdomain.Identity{User: user, RefreshedAccessToken: "minted"}}
	r := newGateRouter(auth, func(c *gin.Context) {
		c.JSON(http.StatusOK, []string{"a", "b"})
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer old")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "minted", w.Header().Get(NewAccessTokenHeader))
	assert.JSONEq(t, `["a","b"]`, w.Body.String())
}

func TestGraftAccessToken(t *testing.T) {
	assert.JSONEq(t, `{"a":1,"access":"t"}`, string(graftAccessToken([]byte(`{"a":1}`), "t")))
	assert.Equal(t, "", string(graftAccessToken(nil, "t")))
	assert.Equal(t, "plain", string(graftAccessToken([]byte("plain"), "t")))
	assert.Equal(t, "{broken", string(graftAccessToken([]byte("{broken"), "t")))
}
