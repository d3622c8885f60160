package api

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/crypto/bcrypt"

	"github.com/fruitsalade/vaultbox/internal/auth"
	"github.com/fruitsalade/vaultbox/internal/config"
	"github.com/fruitsalade/vaultbox/internal/fault"
	"github.com/fruitsalade/vaultbox/internal/quota"
	"github.com/fruitsalade/vaultbox/internal/storage"
	"github.com/fruitsalade/vaultbox/internal/vault"
	"github.com/fruitsalade/vaultbox/internal/zones"
	"github.com/fruitsalade/vaultbox/pkg/protocol"
)

type testEnv struct {
	handler  http.Handler
	zones    *zones.Manager
	settings string
}

func newTestEnv(t *testing.T, limits quota.Limits, resetEnabled bool) *testEnv {
	t.Helper()
	m, err := zones.New(zones.Options{BaseDir: t.TempDir(), Limits: limits})
	if err != nil {
		t.Fatal(err)
	}
	store := vault.NewStore(afero.NewOsFs(), m.VaultConfigPath(), bcrypt.MinCost)
	if err := store.Ensure(); err != nil {
		t.Fatal(err)
	}
	settings := filepath.Join(t.TempDir(), "settings.yaml")
	srv := NewServer(Options{
		Zones:        m,
		Vault:        store,
		Auth:         auth.New(store, auth.Options{Secret: []byte("test-secret"), TTL: time.Minute}),
		SettingsFile: settings,
		ResetEnabled: resetEnabled,
		CORSOrigin:   "*",
	})
	return &testEnv{handler: srv.Handler(), zones: m, settings: settings}
}

func defaultLimits() quota.Limits {
	return quota.Limits{StorageLimit: 1 << 30, FileSizeLimit: 1 << 30}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), true)
	rec := env.do(t, http.MethodGet, "/health", nil, "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestCreateEditAndList(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), true)

	expectStatus(t, env.do(t, http.MethodPost, "/api/files/folder", protocol.CreateRequest{Name: "docs"}, ""), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/files/file", protocol.CreateRequest{Path: "docs", Name: "a.txt"}, ""), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPut, "/api/files/content", protocol.ContentBody{Path: "docs/a.txt", Content: "hi"}, ""), http.StatusOK)

	rec := env.do(t, http.MethodGet, "/api/files/list?path=/", nil, "")
	expectStatus(t, rec, http.StatusOK)
	var entries []storage.Entry
	decodeBody(t, rec, &entries)
	if len(entries) != 1 || entries[0].Name != "docs" || len(entries[0].Children) != 1 {
		t.Fatalf("list = %+v", entries)
	}
	if c := entries[0].Children[0]; c.Name != "a.txt" || c.Size != "0.0 KB" || c.Type != storage.TypeFile {
		t.Errorf("child = %+v", c)
	}

	rec = env.do(t, http.MethodGet, "/api/files/content?path=docs/a.txt", nil, "")
	expectStatus(t, rec, http.StatusOK)
	var content protocol.ContentBody
	decodeBody(t, rec, &content)
	if content.Content != "hi" {
		t.Errorf("content = %q", content.Content)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/files/folder", protocol.CreateRequest{Name: "docs"}, ""), http.StatusConflict)
	expectStatus(t, env.do(t, http.MethodPost, "/api/files/folder", protocol.CreateRequest{Name: ""}, ""), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/api/files/list?path=missing", nil, ""), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, "/api/files/list?path=.vault", nil, ""), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPut, "/api/files/content", protocol.ContentBody{Path: "ghost.txt", Content: "x"}, ""), http.StatusNotFound)
}

func TestRenameEndpoint(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), true)
	expectStatus(t, env.do(t, http.MethodPost, "/api/files/file", protocol.CreateRequest{Name: "a.txt"}, ""), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/files/file", protocol.CreateRequest{Name: "b.txt"}, ""), http.StatusOK)

	expectStatus(t, env.do(t, http.MethodPost, "/api/files/rename", protocol.RenameRequest{OldName: "a.txt", NewName: "b.txt"}, ""), http.StatusConflict)
	expectStatus(t, env.do(t, http.MethodPost, "/api/files/rename", protocol.RenameRequest{OldName: "a.txt", NewName: "c.txt"}, ""), http.StatusOK)
	if _, err := os.Stat(filepath.Join(env.zones.BaseDir(), "c.txt")); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
}

func TestDeleteTrashRestore(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), true)
	expectStatus(t, env.do(t, http.MethodPost, "/api/files/folder", protocol.CreateRequest{Name: "docs"}, ""), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/files/file", protocol.CreateRequest{Path: "docs", Name: "a.txt"}, ""), http.StatusOK)

	rec := env.do(t, http.MethodDelete, "/api/files/docs/a.txt", nil, "")
	expectStatus(t, rec, http.StatusOK)
	var del protocol.DeleteResponse
	decodeBody(t, rec, &del)
	if !del.Success || del.WasDirectory || del.ShouldNavigateHome || del.TrashName != "a.txt" {
		t.Errorf("delete response = %+v", del)
	}

	rec = env.do(t, http.MethodGet, "/api/files/trash", nil, "")
	expectStatus(t, rec, http.StatusOK)
	var trash []storage.Entry
	decodeBody(t, rec, &trash)
	if len(trash) != 1 || trash[0].Name != "a.txt" {
		t.Fatalf("trash = %+v", trash)
	}

	rec = env.do(t, http.MethodPost, "/api/files/trash/restore/a.txt", nil, "")
	expectStatus(t, rec, http.StatusOK)
	var mv protocol.MoveResponse
	decodeBody(t, rec, &mv)
	if mv.Name != "a.txt" {
		t.Errorf("restore response = %+v", mv)
	}
	if _, err := os.Stat(filepath.Join(env.zones.BaseDir(), "a.txt")); err != nil {
		t.Errorf("restored file not at root: %v", err)
	}

	rec = env.do(t, http.MethodDelete, "/api/files/docs", nil, "")
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &del)
	if !del.WasDirectory || !del.ShouldNavigateHome {
		t.Errorf("folder delete response = %+v", del)
	}

	expectStatus(t, env.do(t, http.MethodDelete, "/api/files/trash/docs", nil, ""), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodDelete, "/api/files/trash/docs", nil, ""), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodDelete, "/api/files/ghost", nil, ""), http.StatusNotFound)
}

func TestDeleteByQueryReachesShadowedPaths(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), true)
	expectStatus(t, env.do(t, http.MethodPost, "/api/files/folder", protocol.CreateRequest{Name: "trash"}, ""), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/files/file", protocol.CreateRequest{Path: "trash", Name: "x.txt"}, ""), http.StatusOK)

	expectStatus(t, env.do(t, http.MethodDelete, "/api/files?path=trash/x.txt", nil, ""), http.StatusOK)
	if _, err := os.Stat(filepath.Join(env.zones.Root(zones.Trash), "x.txt")); err != nil {
		t.Errorf("file not in trash: %v", err)
	}
}

func TestDeleteAllAndEmptyTrash(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), true)
	for _, name := range []string{"a.txt", "b.txt"} {
		expectStatus(t, env.do(t, http.MethodPost, "/api/files/file", protocol.CreateRequest{Name: name}, ""), http.StatusOK)
	}

	rec := env.do(t, http.MethodDelete, "/api/files/all", nil, "")
	expectStatus(t, rec, http.StatusOK)
	var bulk protocol.BulkResponse
	decodeBody(t, rec, &bulk)
	if !bulk.Success || len(bulk.Moved) != 2 {
		t.Errorf("delete all = %+v", bulk)
	}

	rec = env.do(t, http.MethodDelete, "/api/files/trash/empty", nil, "")
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &bulk)
	if !bulk.Success || len(bulk.Moved) != 2 {
		t.Errorf("empty trash = %+v", bulk)
	}
}

func multipartBody(t *testing.T, dir string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("path", dir); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
		h.Set("Content-Type", "application/octet-stream")
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(part, content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, dir string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ctype := multipartBody(t, dir, files)
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, quota.Limits{StorageLimit: 20, FileSizeLimit: 10}, true)

	rec := env.upload(t, "", map[string]string{"photos/trip/a.txt": "hello"})
	expectStatus(t, rec, http.StatusOK)
	var e storage.Entry
	decodeBody(t, rec, &e)
	if e.Path != "photos/trip/a.txt" {
		t.Errorf("uploaded entry = %+v", e)
	}
	data, err := os.ReadFile(filepath.Join(env.zones.BaseDir(), "photos", "trip", "a.txt"))
	if err != nil || string(data) != "hello" {
		t.Errorf("stored = %q, %v", data, err)
	}

	expectStatus(t, env.upload(t, "", map[string]string{"photos/trip/a.txt": "again"}), http.StatusConflict)
	expectStatus(t, env.upload(t, "", map[string]string{"big.bin": strings.Repeat("x", 11)}), http.StatusBadRequest)
	expectStatus(t, env.upload(t, "", map[string]string{"b.bin": strings.Repeat("x", 10)}), http.StatusOK)
	expectStatus(t, env.upload(t, "", map[string]string{"c.bin": strings.Repeat("x", 10)}), http.StatusRequestEntityTooLarge)
	expectStatus(t, env.upload(t, "nowhere", map[string]string{"d.bin": "d"}), http.StatusNotFound)
	expectStatus(t, env.upload(t, "", nil), http.StatusBadRequest)
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), true)
	base := env.zones.BaseDir()
	if err := os.MkdirAll(filepath.Join(base, "proj", "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(base, "proj", "a.txt"), []byte("alpha"), 0644)
	os.WriteFile(filepath.Join(base, "proj", "sub", "b.txt"), []byte("beta"), 0644)

	rec := env.do(t, http.MethodGet, "/api/files/download/proj/a.txt", nil, "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "alpha" {
		t.Errorf("file body = %q", rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "a.txt") {
		t.Errorf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}

	rec = env.do(t, http.MethodGet, "/api/files/download/proj", nil, "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("content type = %q", rec.Header().Get("Content-Type"))
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["proj/a.txt"] || !names["proj/sub/b.txt"] {
		t.Errorf("zip entries = %v", names)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/api/files/download/missing.txt", nil, ""), http.StatusNotFound)
}

func TestStorageAndSettings(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), true)
	os.WriteFile(filepath.Join(env.zones.BaseDir(), "big.bin"), make([]byte, 2*1024*1024), 0644)

	rec := env.do(t, http.MethodGet, "/api/files/storage", nil, "")
	expectStatus(t, rec, http.StatusOK)
	var info zones.StorageInfo
	decodeBody(t, rec, &info)
	if info.Used != 2097152 || info.Percentage != 0.2 {
		t.Errorf("storage = %+v", info)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/settings/storage", protocol.StorageSettings{StorageLimit: 0, FileSizeLimit: 1}, ""), http.StatusBadRequest)

	want := protocol.StorageSettings{StorageLimit: 4 << 20, FileSizeLimit: 1 << 20}
	expectStatus(t, env.do(t, http.MethodPost, "/api/settings/storage", want, ""), http.StatusOK)

	rec = env.do(t, http.MethodGet, "/api/settings/storage", nil, "")
	expectStatus(t, rec, http.StatusOK)
	var got protocol.StorageSettings
	decodeBody(t, rec, &got)
	if got != want {
		t.Errorf("settings = %+v", got)
	}

	saved, found, err := config.LoadSettings(env.settings, defaultLimits())
	if err != nil || !found || saved.StorageLimit != want.StorageLimit {
		t.Errorf("persisted settings = %+v %v %v", saved, found, err)
	}

	rec = env.do(t, http.MethodGet, "/api/files/storage", nil, "")
	decodeBody(t, rec, &info)
	if info.Percentage != 50 {
		t.Errorf("percentage after limit change = %v", info.Percentage)
	}
}

func TestVaultRequiresToken(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), true)

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/api/vault/list"},
		{http.MethodPost, "/api/vault/archive"},
		{http.MethodPost, "/api/vault/restore/x"},
		{http.MethodDelete, "/api/vault/x"},
	} {
		rec := env.do(t, tc.method, tc.target, nil, "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token = %d", tc.method, tc.target, rec.Code)
		}
		rec = env.do(t, tc.method, tc.target, nil, "not-a-token")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s with bad token = %d", tc.method, tc.target, rec.Code)
		}
	}
}

func TestVaultFlow(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), true)

	rec := env.do(t, http.MethodGet, "/api/vault/status", nil, "")
	var status protocol.VaultStatusResponse
	decodeBody(t, rec, &status)
	if status.Configured {
		t.Fatal("fresh vault reports configured")
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/vault/password", protocol.VaultPasswordRequest{NewPassword: "short"}, ""), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, "/api/vault/password", protocol.VaultPasswordRequest{NewPassword: "hunter22"}, ""), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/vault/password", protocol.VaultPasswordRequest{CurrentPassword: "wrong-one", NewPassword: "another1"}, ""), http.StatusUnauthorized)

	expectStatus(t, env.do(t, http.MethodPost, "/api/vault/auth", protocol.VaultAuthRequest{Password: "nope-nope"}, ""), http.StatusUnauthorized)
	rec = env.do(t, http.MethodPost, "/api/vault/auth", protocol.VaultAuthRequest{Password: "hunter22"}, "")
	expectStatus(t, rec, http.StatusOK)
	var tok protocol.VaultAuthResponse
	decodeBody(t, rec, &tok)
	if tok.Token == "" {
		t.Fatal("empty token")
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/files/folder", protocol.CreateRequest{Name: "proj"}, ""), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/files/file", protocol.CreateRequest{Path: "proj", Name: "a.txt"}, ""), http.StatusOK)

	rec = env.do(t, http.MethodPost, "/api/vault/archive", protocol.ArchiveRequest{Path: "proj"}, tok.Token)
	expectStatus(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodGet, "/api/vault/list", nil, tok.Token)
	expectStatus(t, rec, http.StatusOK)
	var entries []storage.Entry
	decodeBody(t, rec, &entries)
	if len(entries) != 1 || entries[0].Name != "proj" {
		t.Fatalf("vault list = %+v", entries)
	}

	// The vault never leaks through the active zone.
	expectStatus(t, env.do(t, http.MethodGet, "/api/files/list?path=.vault", nil, ""), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/api/files/download/.vault/proj/a.txt", nil, ""), http.StatusBadRequest)

	expectStatus(t, env.do(t, http.MethodPost, "/api/vault/restore/proj", nil, tok.Token), http.StatusOK)
	if _, err := os.Stat(filepath.Join(env.zones.BaseDir(), "proj", "a.txt")); err != nil {
		t.Errorf("restored folder missing: %v", err)
	}
	expectStatus(t, env.do(t, http.MethodDelete, "/api/vault/proj", nil, tok.Token), http.StatusNotFound)

	expectStatus(t, env.do(t, http.MethodPost, "/api/vault/reset", nil, ""), http.StatusOK)
	rec = env.do(t, http.MethodGet, "/api/vault/status", nil, "")
	decodeBody(t, rec, &status)
	if status.Configured {
		t.Error("vault still configured after reset")
	}
}

func TestVaultResetDisabled(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), false)
	expectStatus(t, env.do(t, http.MethodPost, "/api/vault/password", protocol.VaultPasswordRequest{NewPassword: "hunter22"}, ""), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/vault/reset", nil, ""), http.StatusForbidden)

	rec := env.do(t, http.MethodGet, "/api/vault/status", nil, "")
	var status protocol.VaultStatusResponse
	decodeBody(t, rec, &status)
	if !status.Configured {
		t.Error("password lost although reset is disabled")
	}
}

func TestThumbnail(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), true)

	img := image.NewRGBA(image.Rect(0, 0, 512, 256))
	for x := 0; x < 512; x++ {
		img.Set(x, x%256, color.RGBA{R: 200, A: 255})
	}
	f, err := os.Create(filepath.Join(env.zones.BaseDir(), "wide.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()
	os.WriteFile(filepath.Join(env.zones.BaseDir(), "notes.txt"), []byte("x"), 0644)

	rec := env.do(t, http.MethodGet, "/api/files/thumb?path=wide.png", nil, "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	thumb, _, err := image.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if b := thumb.Bounds(); b.Dx() != 256 || b.Dy() != 128 {
		t.Errorf("thumbnail size = %dx%d", b.Dx(), b.Dy())
	}

	// GIF header declaring a 65535x65535 canvas and no image data.
	huge := []byte{'G', 'I', 'F', '8', '9', 'a', 0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x3b}
	os.WriteFile(filepath.Join(env.zones.BaseDir(), "huge.gif"), huge, 0644)
	expectStatus(t, env.do(t, http.MethodGet, "/api/files/thumb?path=huge.gif", nil, ""), http.StatusRequestEntityTooLarge)

	expectStatus(t, env.do(t, http.MethodGet, "/api/files/thumb?path=notes.txt", nil, ""), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/api/files/thumb?path=wide.png&zone=vault", nil, ""), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/api/files/thumb?path=gone.png&zone=trash", nil, ""), http.StatusNotFound)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), true)
	req := httptest.NewRequest(http.MethodOptions, "/api/files/list", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fault.Invalid("op", "p", "bad"), http.StatusBadRequest},
		{fault.NotFound("op", "p"), http.StatusNotFound},
		{fault.Conflict("op", "p"), http.StatusConflict},
		{fault.Unauthorized("op", "no"), http.StatusUnauthorized},
		{quota.Limits{StorageLimit: 1, FileSizeLimit: 1}.CheckStorage(1, 1), http.StatusRequestEntityTooLarge},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
