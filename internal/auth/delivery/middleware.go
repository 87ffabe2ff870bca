package delivery

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	authdomain "github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/domain"
	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// RefreshHeader carries the optional refresh token of a protected call.
	RefreshHeader = "Refresh"
	// NewAccessTokenHeader is set on responses whose access token was refreshed.
	NewAccessTokenHeader = "X-New-Access-Token"

	accessField = "access"
)

// AuthMiddleware resolves the caller of a protected route. When the access
// token had to be refreshed, the new one is added to the response as the
// X-New-Access-Token header and, for JSON object bodies, an "access" field.
func AuthMiddleware(authUsecase usecase.AuthUsecase, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "tokengate").Logger()

	return func(c *gin.Context) {
		access, headerErr := bearerToken(c.GetHeader("Authorization"))
		if headerErr != nil {
			reject(c, headerErr)
			return
		}

		identity, err := authUsecase.Authorize(access, c.GetHeader(RefreshHeader))
		if err != nil {
			var authErr *authdomain.AuthError
			if !errors.As(err, &authErr) {
				log.Error().Err(err).Msg("authorization failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authorization unavailable"})
				return
			}
			reject(c, authErr)
			return
		}

		c.Set("user", identity.User)
		c.Set("userID", identity.User.ID)
		c.Set("identity", identity)

		if !identity.Refreshed() {
			c.Next()
			return
		}

		log.Debug().Str("user_id", identity.User.ID).Msg("access token refreshed")

		original := c.Writer
		buffered := &graftWriter{ResponseWriter: original}
		c.Writer = buffered
		c.Next()
		c.Writer = original

		original.Header().Set(NewAccessTokenHeader, identity.RefreshedAccessToken)
		body := graftAccessToken(buffered.body.Bytes(), identity.RefreshedAccessToken)
		original.Header().Del("Content-Length")
		original.WriteHeader(buffered.Status())
		if len(body) > 0 {
			_, _ = original.Write(body)
		}
	}
}

func bearerToken(header string) (string, *authdomain.AuthError) {
	if header == "" {
		return "", authdomain.NewAuthError(authdomain.ReasonMissingCredential, "authorization header required")
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", authdomain.NewAuthError(authdomain.ReasonMalformed, "invalid authorization header format")
	}
	return parts[1], nil
}

func reject(c *gin.Context, err *authdomain.AuthError) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":  err.Error(),
		"reason": err.Reason,
	})
}

// graftAccessToken adds the access field to a JSON object body. Any other
// body is returned untouched.
func graftAccessToken(body []byte, token string) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return body
	}
	raw, err := json.Marshal(token)
	if err != nil {
		return body
	}
	fields[accessField] = raw
	out, err := json.Marshal(fields)
	if err != nil {
		return body
	}
	return out
}

// graftWriter holds the handler's response until the token is grafted on.
// Headers still go straight to the underlying writer.
type graftWriter struct {
	gin.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *graftWriter) WriteHeader(code int) {
	if code > 0 {
		w.status = code
	}
}

func (w *graftWriter) WriteHeaderNow() {}

func (w *graftWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *graftWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

func (w *graftWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *graftWriter) Size() int {
	return w.body.Len()
}

func (w *graftWriter) Written() bool {
	return w.status != 0 || w.body.Len() > 0
}
