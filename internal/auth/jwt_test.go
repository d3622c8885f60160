package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fruitsalade/vaultbox/internal/fault"
	"github.com/fruitsalade/vaultbox/pkg/protocol"
)

type fakeCreds struct {
	password string
	changed  time.Time
}

func (f *fakeCreds) IsConfigured() (bool, error) { return f.password != "", nil }

func (f *fakeCreds) Verify(p string) (bool, error) {
	return f.password != "" && p == f.password, nil
}

func (f *fakeCreds) ChangedAt() (time.Time, error) { return f.changed, nil }

func newTestAuth(creds *fakeCreds, rpm int) (*Auth, *time.Time) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	a := New(creds, Options{Secret: []byte("test-secret"), TTL: 30 * time.Minute, AuthPerMinute: rpm})
	a.now = func() time.Time { return now }
	return a, &now
}

func TestAuthenticate(t *testing.T) {
	creds := &fakeCreds{password: "longenough1"}
	a, _ := newTestAuth(creds, 0)

	if _, err := a.Authenticate("wrong"); fault.KindOf(err) != fault.KindUnauthorized {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := a.Authenticate(""); fault.KindOf(err) != fault.KindInvalidInput {
		t.Errorf("empty password: %v", err)
	}

	tok, err := a.Authenticate("longenough1")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if tok.Value == "" {
		t.Fatal("empty token")
	}
	if want := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC); !tok.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, want)
	}
	if _, err := a.Validate(tok.Value); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestAuthenticateUnconfigured(t *testing.T) {
	a, _ := newTestAuth(&fakeCreds{}, 0)
	if _, err := a.Authenticate("anything-goes"); fault.KindOf(err) != fault.KindUnauthorized {
		t.Errorf("unconfigured vault: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	creds := &fakeCreds{password: "longenough1"}
	a, now := newTestAuth(creds, 0)
	tok, err := a.Issue()
	if err != nil {
		t.Fatal(err)
	}

	t.Run("expired", func(t *testing.T) {
		saved := *now
		*now = now.Add(31 * time.Minute)
		defer func() { *now = saved }()
		if _, err := a.Validate(tok.Value); fault.KindOf(err) != fault.KindUnauthorized {
			t.Errorf("expired token accepted: %v", err)
		}
	})

	t.Run("other secret", func(t *testing.T) {
		other := New(creds, Options{Secret: []byte("different")})
		other.now = a.now
		if _, err := other.Validate(tok.Value); fault.KindOf(err) != fault.KindUnauthorized {
			t.Errorf("foreign token accepted: %v", err)
		}
	})

	t.Run("wrong scope", func(t *testing.T) {
		claims := &Claims{Scope: "files", RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(*now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}}
		s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		if _, err := a.Validate(s); fault.KindOf(err) != fault.KindUnauthorized {
			t.Errorf("wrong scope accepted: %v", err)
		}
	})

	t.Run("password changed", func(t *testing.T) {
		creds.changed = now.Add(5 * time.Second)
		defer func() { creds.changed = time.Time{} }()
		if _, err := a.Validate(tok.Value); fault.KindOf(err) != fault.KindUnauthorized {
			t.Errorf("token from before password change accepted: %v", err)
		}
	})

	t.Run("password changed within the same second", func(t *testing.T) {
		creds.changed = now.Add(300 * time.Millisecond)
		defer func() { creds.changed = time.Time{} }()
		if _, err := a.Validate(tok.Value); fault.KindOf(err) != fault.KindUnauthorized {
			t.Errorf("token from earlier in the change's second accepted: %v", err)
		}

		saved := *now
		*now = now.Add(500 * time.Millisecond)
		defer func() { *now = saved }()
		later, err := a.Issue()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := a.Validate(later.Value); err != nil {
			t.Errorf("token issued after the change rejected: %v", err)
		}
	})
}

func TestMiddleware(t *testing.T) {
	a, _ := newTestAuth(&fakeCreds{password: "longenough1"}, 0)
	tok, _ := a.Issue()

	var gotClaims *Claims
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
		{"bearer", "Bearer " + tok.Value, "", http.StatusOK},
		{"query", "", "?token=" + tok.Value, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotClaims = nil
			req := httptest.NewRequest(http.MethodGet, "/api/vault/list"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && gotClaims == nil {
				t.Error("claims not stored in context")
			}
			if tt.want == http.StatusUnauthorized {
				var body protocol.ErrorResponse
				json.NewDecoder(rec.Body).Decode(&body)
				if body.Code != http.StatusUnauthorized {
					t.Errorf("error body code = %d", body.Code)
				}
			}
		})
	}
}

func TestHandleLoginRateLimited(t *testing.T) {
	a, _ := newTestAuth(&fakeCreds{password: "longenough1"}, 2)

	login := func(password string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/vault/auth",
			strings.NewReader(`{"password":"`+password+`"}`))
		req.RemoteAddr = "192.0.2.7:51000"
		rec := httptest.NewRecorder()
		a.HandleLogin(rec, req)
		return rec
	}

	if rec := login("wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d", rec.Code)
	}
	rec := login("longenough1")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp protocol.VaultAuthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Token == "" {
		t.Errorf("login response %+v, %v", resp, err)
	}

	rec = login("longenough1")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("third attempt status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}
