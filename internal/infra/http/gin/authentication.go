package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

const principalContextKey = "wheelshare.principal"

// Principal is the authenticated caller as resolved by the identity
// collaborator. Identity itself lives outside this service; only token
// resolution crosses the boundary.
type Principal struct {
	ID    string
	Roles []string
}

func (p Principal) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range p.Roles {
		if strings.ToLower(r) == role {
			return true
		}
	}
	return false
}

var ErrUnknownToken = errors.New("unknown token")

// TokenVerifier resolves a bearer token to a principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// StaticTokenVerifier is the dev/test implementation: a fixed token→principal
// table.
type StaticTokenVerifier struct {
	tokens map[string]Principal
}

func NewStaticTokenVerifier(tokens map[string]Principal) *StaticTokenVerifier {
	cp := make(map[string]Principal, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &StaticTokenVerifier{tokens: cp}
}

func (v *StaticTokenVerifier) Verify(_ context.Context, token string) (Principal, error) {
	p, ok := v.tokens[token]
	if !ok {
		return Principal{}, ErrUnknownToken
	}
	return p, nil
}

type AuthMiddleware struct {
	Verifier TokenVerifier
	Logger   *slog.Logger
}

// Handle resolves the bearer token when present; requests without a valid
// token continue anonymously and individual handlers enforce access.
func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Verifier == nil {
		c.Next()
		return
	}
	p, err := m.Verifier.Verify(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, ErrUnknownToken) && m.Logger != nil {
			m.Logger.Debug("token verification failed", "error", err)
		}
		c.Next()
		return
	}
	setPrincipal(c, p)
	c.Next()
}

func setPrincipal(c *gin.Context, p Principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (Principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return Principal{}, false
	}
	p, ok := val.(Principal)
	return p, ok
}

func requireRole(c *gin.Context, role string) (Principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return Principal{}, false
	}
	if role != "" && !p.HasRole(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return Principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
