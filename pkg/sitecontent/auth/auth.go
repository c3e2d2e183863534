// Package auth issues and verifies the single admin session token. Tokens are
// HS256 JWTs carrying an admin claim and a token id; the id must still be
// active in the SessionStore, so logout revokes a token before it expires.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/site-content/pkg/sitecontent"
)

const (
	// CookieName is the cookie carrying the session token
	CookieName = "session"

	// DefaultTTL is how long a session token stays valid
	DefaultTTL = 2 * time.Hour

	adminClaim = "admin"
)

// ErrInvalidCredentials is returned by Login for a wrong password
var ErrInvalidCredentials = errors.New("invalid credentials")

// Config holds the admin credential and token settings
type Config struct {
	Secret       string
	Password     string        // plain admin password, used when PasswordHash is empty
	PasswordHash string        // bcrypt hash of the admin password
	TTL          time.Duration // default: DefaultTTL
	SecureCookie bool
}

// Session is an issued admin token
type Session struct {
	ID        string    `json:"-"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service authenticates the admin and authorizes requests
type Service struct {
	ja       *jwtauth.JWTAuth
	config   Config
	sessions SessionStore
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an auth service. A nil session store defaults to a MemoryStore.
func New(config Config, sessions SessionStore, opts ...Option) (*Service, error) {
	if config.Secret == "" {
		return nil, errors.New("session secret is required")
	}
	if config.Password == "" && config.PasswordHash == "" {
		return nil, errors.New("admin password or password hash is required")
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if sessions == nil {
		sessions = NewMemoryStore()
	}

	s := &Service{
		ja:       jwtauth.New("HS256", []byte(config.Secret), nil),
		config:   config,
		sessions: sessions,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login checks the admin password and issues a session token
func (s *Service) Login(ctx context.Context, password string) (*Session, error) {
	if !s.checkPassword(password) {
		s.logger.Warn("Admin login rejected")
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	sess := &Session{ID: uuid.NewString(), ExpiresAt: now.Add(s.config.TTL)}

	claims := map[string]interface{}{
		adminClaim: true,
		"jti":      sess.ID,
	}
	jwtauth.SetIssuedAt(claims, now)
	jwtauth.SetExpiry(claims, sess.ExpiresAt)

	_, token, err := s.ja.Encode(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	sess.Token = token

	if err := s.sessions.Save(ctx, sess.ID, sess.ExpiresAt); err != nil {
		return nil, err
	}

	s.logger.Info("Admin logged in", "session_id", sess.ID, "expires_at", sess.ExpiresAt)
	return sess, nil
}

func (s *Service) checkPassword(password string) bool {
	if s.config.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.config.PasswordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(s.config.Password), []byte(password)) == 1
}

// Logout revokes the token found in ctx. It is a no-op without a token.
func (s *Service) Logout(ctx context.Context) error {
	token, _, _ := jwtauth.FromContext(ctx)
	if token == nil || token.JwtID() == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, token.JwtID()); err != nil {
		return err
	}
	s.logger.Info("Admin logged out", "session_id", token.JwtID())
	return nil
}

// Authorize implements sitecontent.Authorizer. ctx must carry a token placed
// there by Verifier or ContextWithToken.
func (s *Service) Authorize(ctx context.Context) error {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", sitecontent.ErrUnauthorized, err)
	}
	if token == nil {
		return fmt.Errorf("%w: no session token", sitecontent.ErrUnauthorized)
	}
	if exp := token.Expiration(); !exp.IsZero() && !exp.After(s.now()) {
		return fmt.Errorf("%w: session expired", sitecontent.ErrUnauthorized)
	}
	if admin, _ := claims[adminClaim].(bool); !admin {
		return fmt.Errorf("%w: not an admin session", sitecontent.ErrUnauthorized)
	}

	active, err := s.sessions.Active(ctx, token.JwtID())
	if err != nil {
		s.logger.Error("Session lookup failed", "error", err)
		return fmt.Errorf("%w: %v", sitecontent.ErrUnauthorized, err)
	}
	if !active {
		return fmt.Errorf("%w: session revoked", sitecontent.ErrUnauthorized)
	}
	return nil
}

// ContextWithToken verifies tokenString and stores the result in ctx the
// same way the Verifier middleware does
func (s *Service) ContextWithToken(ctx context.Context, tokenString string) context.Context {
	token, err := jwtauth.VerifyToken(s.ja, tokenString)
	return jwtauth.NewContext(ctx, token, err)
}

// Verifier is HTTP middleware that reads the token from the Authorization
// header or the session cookie
func (s *Service) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verify(s.ja, jwtauth.TokenFromHeader, tokenFromCookie)
}

func tokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetCookie writes the session cookie
func (s *Service) SetCookie(w http.ResponseWriter, sess *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(s.config.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.config.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearCookie expires the session cookie
func (s *Service) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}
