// Package session carries the shopper's identity explicitly through request
// contexts instead of global state.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned when a request carries no usable token.
var ErrUnauthorized = errors.New("unauthorized")

// Roles recognised by the marketplace.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// Session identifies the shopper on whose behalf backend calls are made.
type Session struct {
	// Token is the raw bearer token, forwarded to the backend unchanged.
	Token  string
	UserID string
	Role   string
	// Verified is set when the token signature was checked locally. The
	// claims of an unverified session are only trusted by the backend.
	Verified bool
}

// Identity returns a stable key for data held on behalf of the session
// outside the backend. Verified sessions are keyed by user, unverified ones
// by a digest of their token so a forged user claim cannot reach another
// shopper's data.
func (s Session) Identity() string {
	if s.Verified {
		return s.UserID
	}
	sum := sha256.Sum256([]byte(s.Token))
	return "token:" + hex.EncodeToString(sum[:16])
}

// Claims is the payload of tokens issued by the marketplace backend.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type sessionKey struct{}

// WithContext returns a copy of ctx carrying s.
func WithContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored in ctx.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// Parser turns bearer tokens into sessions.
//
// With a secret, tokens must carry a valid HMAC signature. Without one the
// signature is not checked locally and the backend, which receives the same
// token, stays authoritative; expiry is still enforced and the session is
// marked unverified.
type Parser struct {
	secret []byte
	now    func() time.Time
}

// NewParser creates a Parser. An empty secret disables signature checks.
func NewParser(secret []byte) *Parser {
	return &Parser{secret: secret, now: time.Now}
}

// ParseHeader extracts the session from an Authorization header value of
// the form "Bearer <token>".
func (p *Parser) ParseHeader(header string) (Session, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return Session{}, ErrUnauthorized
	}
	return p.Parse(strings.TrimSpace(token))
}

// Parse validates token and returns the session it describes.
func (p *Parser) Parse(token string) (Session, error) {
	claims := &Claims{}

	verified := len(p.secret) > 0
	if verified {
		parser := jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
			jwt.WithTimeFunc(p.now),
		)
		if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return p.secret, nil
		}); err != nil {
			return Session{}, errors.Wrap(ErrUnauthorized, err.Error())
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return Session{}, errors.Wrap(ErrUnauthorized, err.Error())
		}
		if claims.ExpiresAt != nil && !p.now().Before(claims.ExpiresAt.Time) {
			return Session{}, errors.Wrap(ErrUnauthorized, "token expired")
		}
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return Session{}, errors.Wrap(ErrUnauthorized, "token has no user")
	}

	role := claims.Role
	if role == "" {
		role = RoleBuyer
	}

	return Session{Token: token, UserID: userID, Role: role, Verified: verified}, nil
}
