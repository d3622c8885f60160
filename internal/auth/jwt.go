// Package auth issues and checks vault access tokens.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/fruitsalade/vaultbox/internal/fault"
	"github.com/fruitsalade/vaultbox/internal/logging"
	"github.com/fruitsalade/vaultbox/internal/metrics"
	"github.com/fruitsalade/vaultbox/internal/quota"
	"github.com/fruitsalade/vaultbox/pkg/protocol"
)

type contextKey string

const claimsContextKey contextKey = "vault_claims"

const (
	issuer     = "vaultbox"
	vaultScope = "vault"
)

// Credentials is the password check the authenticator relies on.
type Credentials interface {
	IsConfigured() (bool, error)
	Verify(plaintext string) (bool, error)
	// ChangedAt is the last password change or reset; tokens issued
	// earlier are refused.
	ChangedAt() (time.Time, error)
}

// Claims holds JWT token claims.
type Claims struct {
	Scope string `json:"scope"`
	// IssuedNano is the issue time in Unix nanoseconds. iat only carries
	// whole seconds, too coarse to order a token against a password change.
	IssuedNano int64 `json:"iat_ns"`
	jwt.RegisteredClaims
}

// Token is a signed access token and its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Options configures an Auth.
type Options struct {
	Secret        []byte
	TTL           time.Duration
	AuthPerMinute int // 0 disables login throttling
}

// Auth handles vault password login and token checks.
type Auth struct {
	creds   Credentials
	secret  []byte
	ttl     time.Duration
	rpm     int
	limiter *quota.RateLimiter
	now     func() time.Time
}

// New creates a new Auth handler.
func New(creds Credentials, opts Options) *Auth {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Auth{
		creds:   creds,
		secret:  opts.Secret,
		ttl:     ttl,
		rpm:     opts.AuthPerMinute,
		limiter: quota.NewRateLimiter(),
		now:     time.Now,
	}
}

// Authenticate checks the vault password and issues a token.
func (a *Auth) Authenticate(password string) (Token, error) {
	if password == "" {
		return Token{}, fault.Invalid("vault auth", "", "password is required")
	}
	configured, err := a.creds.IsConfigured()
	if err != nil {
		return Token{}, err
	}
	if !configured {
		return Token{}, fault.Unauthorized("vault auth", "vault password is not set")
	}
	ok, err := a.creds.Verify(password)
	if err != nil {
		return Token{}, err
	}
	if !ok {
		return Token{}, fault.Unauthorized("vault auth", "invalid password")
	}
	return a.Issue()
}

// Issue signs a new vault token.
func (a *Auth) Issue() (Token, error) {
	now := a.now()
	exp := now.Add(a.ttl)
	claims := &Claims{
		Scope:      vaultScope,
		IssuedNano: now.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return Token{}, fault.New(fault.KindIO, "vault auth", "", fmt.Errorf("sign token: %w", err))
	}
	return Token{Value: signed, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Validate parses a token and checks signature, expiry, scope and that it
// was issued after the last password change.
func (a *Auth) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fault.Unauthorized("vault token", err.Error())
	}
	if !token.Valid || claims.Scope != vaultScope {
		return nil, fault.Unauthorized("vault token", "invalid token")
	}

	changed, err := a.creds.ChangedAt()
	if err != nil {
		return nil, err
	}
	if claims.IssuedNano == 0 || time.Unix(0, claims.IssuedNano).Before(changed) {
		return nil, fault.Unauthorized("vault token", "token predates the current vault password")
	}
	return claims, nil
}

// Middleware returns HTTP middleware that requires a valid vault token.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r)
		if tokenStr == "" {
			sendAuthError(w, http.StatusUnauthorized, "missing vault token")
			return
		}

		claims, err := a.Validate(tokenStr)
		if err != nil {
			if fault.KindOf(err) != fault.KindUnauthorized {
				logging.WithContext(r.Context()).Error("vault token check failed", zap.Error(err))
				sendAuthError(w, http.StatusInternalServerError, "token check failed")
				return
			}
			sendAuthError(w, http.StatusUnauthorized, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims extracts claims from the request context.
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}

// HandleLogin handles POST /api/vault/auth
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	key := clientKey(r)
	if !a.limiter.Allow(key, a.rpm) {
		metrics.RecordRateLimitHit()
		w.Header().Set("Retry-After", strconv.Itoa(a.limiter.RetryAfter(key, a.rpm)))
		sendAuthError(w, http.StatusTooManyRequests, "too many vault login attempts")
		return
	}

	var req protocol.VaultAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	logger := logging.WithContext(r.Context())
	tok, err := a.Authenticate(req.Password)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		switch fault.KindOf(err) {
		case fault.KindInvalidInput:
			sendAuthError(w, http.StatusBadRequest, "password is required")
		case fault.KindUnauthorized:
			logger.Warn("vault login failed", zap.String("client", key), zap.Error(err))
			sendAuthError(w, http.StatusUnauthorized, "invalid password")
		default:
			logger.Error("vault login error", zap.Error(err))
			sendAuthError(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	metrics.RecordAuthAttempt(true)
	logger.Info("vault unlocked", zap.String("client", key), zap.Time("expires_at", tok.ExpiresAt))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.VaultAuthResponse{
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
	})
}

// CleanupLimiter drops login buckets idle for longer than maxAge.
func (a *Auth) CleanupLimiter(maxAge time.Duration) {
	a.limiter.Cleanup(maxAge)
}

func extractToken(r *http.Request) string {
	// Bearer token from Authorization header
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// Query parameter fallback
	return r.URL.Query().Get("token")
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func sendAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
