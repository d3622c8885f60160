// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fruitsalade/vaultbox/internal/auth"
	"github.com/fruitsalade/vaultbox/internal/fault"
	"github.com/fruitsalade/vaultbox/internal/logging"
	"github.com/fruitsalade/vaultbox/internal/metrics"
	"github.com/fruitsalade/vaultbox/internal/vault"
	"github.com/fruitsalade/vaultbox/internal/zones"
	"github.com/fruitsalade/vaultbox/pkg/protocol"
)

// maxContentSize is the largest file the text editor endpoints will load.
const maxContentSize = 5 << 20

// Options wires the server to its collaborators.
type Options struct {
	Zones        *zones.Manager
	Vault        *vault.Store
	Auth         *auth.Auth
	SettingsFile string
	ResetEnabled bool
	CORSOrigin   string
	WebAppDir    string
	WebDAV       http.Handler // nil disables /webdav/
}

// Server is the HTTP server.
type Server struct {
	zones        *zones.Manager
	vault        *vault.Store
	auth         *auth.Auth
	settingsFile string
	resetEnabled bool
	corsOrigin   string
	webAppDir    string
	dav          http.Handler
}

// NewServer creates a new server.
func NewServer(opts Options) *Server {
	return &Server{
		zones:        opts.Zones,
		vault:        opts.Vault,
		auth:         opts.Auth,
		settingsFile: opts.SettingsFile,
		resetEnabled: opts.ResetEnabled,
		corsOrigin:   opts.CORSOrigin,
		webAppDir:    opts.WebAppDir,
		dav:          opts.WebDAV,
	}
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Active zone
	mux.HandleFunc("GET /api/files/list", s.handleList)
	mux.HandleFunc("POST /api/files/folder", s.handleCreateFolder)
	mux.HandleFunc("POST /api/files/file", s.handleCreateFile)
	mux.HandleFunc("POST /api/files/rename", s.handleRename)
	mux.HandleFunc("DELETE /api/files/all", s.handleDeleteAll)
	mux.HandleFunc("DELETE /api/files", s.handleDelete)
	mux.HandleFunc("DELETE /api/files/{path...}", s.handleDelete)
	mux.HandleFunc("POST /api/files/upload", s.handleUpload)
	mux.HandleFunc("GET /api/files/download/{path...}", s.handleDownload)
	mux.HandleFunc("GET /api/files/content", s.handleGetContent)
	mux.HandleFunc("PUT /api/files/content", s.handlePutContent)
	mux.HandleFunc("GET /api/files/thumb", s.handleThumb)
	mux.HandleFunc("GET /api/files/storage", s.handleStorage)

	// Trash
	mux.HandleFunc("GET /api/files/trash", s.handleTrashList)
	mux.HandleFunc("DELETE /api/files/trash/empty", s.handleTrashEmpty)
	mux.HandleFunc("POST /api/files/trash/restore/{name...}", s.handleTrashRestore)
	mux.HandleFunc("DELETE /api/files/trash/{name...}", s.handleTrashPurge)

	// Settings
	mux.HandleFunc("GET /api/settings/storage", s.handleGetSettings)
	mux.HandleFunc("POST /api/settings/storage", s.handleUpdateSettings)

	// Vault credential endpoints (no token)
	mux.HandleFunc("GET /api/vault/status", s.handleVaultStatus)
	mux.HandleFunc("POST /api/vault/password", s.handleVaultPassword)
	mux.HandleFunc("POST /api/vault/reset", s.handleVaultReset)
	mux.HandleFunc("POST /api/vault/auth", s.auth.HandleLogin)

	// Vault zone (token required)
	mux.Handle("GET /api/vault/list", s.vaultOnly(s.handleVaultList))
	mux.Handle("POST /api/vault/archive", s.vaultOnly(s.handleVaultArchive))
	mux.Handle("POST /api/vault/restore/{name...}", s.vaultOnly(s.handleVaultRestore))
	mux.Handle("DELETE /api/vault/{name...}", s.vaultOnly(s.handleVaultDelete))

	if s.dav != nil {
		mux.Handle("/webdav/", s.dav)
		mux.Handle("/webdav", s.dav)
	}

	if s.webAppDir != "" {
		logging.Info("serving web app from disk", zap.String("dir", s.webAppDir))
		mux.Handle("/", http.FileServer(http.Dir(s.webAppDir)))
	}

	// Metrics must see the request the mux annotates with its pattern.
	return logging.Middleware(metrics.Middleware(s.cors(mux)))
}

func (s *Server) vaultOnly(h http.HandlerFunc) http.Handler {
	return s.auth.Middleware(h)
}

// cors allows the browser client to be served from another origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, protocol.HealthResponse{Status: "ok"})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	s.sendJSON(w, code, protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// sendFault maps an error kind to its status code. I/O failures are logged
// and reported without detail.
func (s *Server) sendFault(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logging.WithContext(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		resp := protocol.ErrorResponse{Error: "internal server error", Code: code}
		if id := logging.GetRequestID(r.Context()); id != "" {
			resp.Details = "request " + id
		}
		s.sendJSON(w, code, resp)
		return
	}
	s.sendError(w, code, err.Error())
}

func statusFor(err error) int {
	if errors.Is(err, fault.ErrQuotaExceeded) {
		return http.StatusRequestEntityTooLarge
	}
	switch fault.KindOf(err) {
	case fault.KindInvalidInput:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindConflict:
		return http.StatusConflict
	case fault.KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
