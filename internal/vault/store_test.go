package vault

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/crypto/bcrypt"

	"github.com/fruitsalade/vaultbox/internal/fault"
)

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	s := NewStore(fsys, "/base/.vault/.vault-config.json", bcrypt.MinCost)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	if err := s.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	return s, fsys
}

func TestEnsureCreatesEmptyRecord(t *testing.T) {
	s, fsys := newTestStore(t)

	data, err := afero.ReadFile(fsys, s.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if v, ok := raw["passwordHash"]; !ok || v != nil {
		t.Errorf("passwordHash = %v (present %v), want explicit null", v, ok)
	}
	if _, ok := raw["lastModified"]; ok {
		t.Error("lastModified should be omitted on a fresh record")
	}

	ok, err := s.IsConfigured()
	if err != nil || ok {
		t.Errorf("IsConfigured = %v, %v", ok, err)
	}

	// Ensure does not clobber an existing record.
	if err := s.SetPassword("", "longenough1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Ensure(); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.IsConfigured(); !ok {
		t.Error("Ensure reset an existing password")
	}
}

func TestSetPasswordAndVerify(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.SetPassword("", "short"); fault.KindOf(err) != fault.KindInvalidInput {
		t.Errorf("short password: %v", err)
	}
	// Eight bytes but four characters.
	if err := s.SetPassword("", "éééé"); fault.KindOf(err) != fault.KindInvalidInput {
		t.Errorf("short multibyte password: %v", err)
	}
	if err := s.SetPassword("", "longenough1"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}

	ok, err := s.Verify("wrong")
	if err != nil || ok {
		t.Errorf("Verify(wrong) = %v, %v", ok, err)
	}
	ok, err = s.Verify("longenough1")
	if err != nil || !ok {
		t.Errorf("Verify(right) = %v, %v", ok, err)
	}

	cfg, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LastModified == nil || cfg.PasswordHash == nil || strings.Contains(*cfg.PasswordHash, "longenough1") {
		t.Errorf("unexpected record %+v", cfg)
	}
}

func TestRotateRequiresCurrent(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.SetPassword("", "longenough1"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		current string
		next    string
		kind    fault.Kind
	}{
		{"missing current", "", "another-pass", fault.KindUnauthorized},
		{"wrong current", "nope-nope", "another-pass", fault.KindUnauthorized},
		{"short new", "longenough1", "tiny", fault.KindInvalidInput},
		{"too long", "longenough1", strings.Repeat("p", 80), fault.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SetPassword(tt.current, tt.next)
			if fault.KindOf(err) != tt.kind {
				t.Errorf("kind = %v, want %v (err %v)", fault.KindOf(err), tt.kind, err)
			}
		})
	}

	if err := s.SetPassword("longenough1", "another-pass"); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if ok, _ := s.Verify("longenough1"); ok {
		t.Error("old password still verifies")
	}
	if ok, _ := s.Verify("another-pass"); !ok {
		t.Error("new password does not verify")
	}
}

func TestReset(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.SetPassword("", "longenough1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	ok, err := s.IsConfigured()
	if err != nil || ok {
		t.Errorf("IsConfigured after reset = %v, %v", ok, err)
	}
	if ok, _ := s.Verify("longenough1"); ok {
		t.Error("Verify should fail after reset")
	}
	cfg, _ := s.Load()
	if cfg.ResetDate == nil {
		t.Error("resetDate not recorded")
	}

	// After a reset a new password can be set without the old one.
	if err := s.SetPassword("", "fresh-password"); err != nil {
		t.Errorf("SetPassword after reset: %v", err)
	}
}

func TestCorruptRecord(t *testing.T) {
	s, fsys := newTestStore(t)
	if err := afero.WriteFile(fsys, s.Path(), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.IsConfigured(); fault.KindOf(err) != fault.KindIO {
		t.Errorf("corrupt record kind = %v", fault.KindOf(err))
	}
}
