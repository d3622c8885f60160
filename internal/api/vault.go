package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fruitsalade/vaultbox/internal/logging"
	"github.com/fruitsalade/vaultbox/pkg/protocol"
)

// ─── Credential ─────────────────────────────────────────────────────────────

func (s *Server) handleVaultStatus(w http.ResponseWriter, r *http.Request) {
	ok, err := s.vault.IsConfigured()
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, protocol.VaultStatusResponse{Configured: ok})
}

// handleVaultPassword sets the first password or rotates an existing one.
// Rotation is authorized by the current password, not by a token.
func (s *Server) handleVaultPassword(w http.ResponseWriter, r *http.Request) {
	var req protocol.VaultPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.vault.SetPassword(req.CurrentPassword, req.NewPassword); err != nil {
		s.sendFault(w, r, err)
		return
	}
	logging.WithContext(r.Context()).Info("vault password set")
	s.sendJSON(w, http.StatusOK, protocol.MessageResponse{Success: true, Message: "vault password set"})
}

func (s *Server) handleVaultReset(w http.ResponseWriter, r *http.Request) {
	if !s.resetEnabled {
		s.sendError(w, http.StatusForbidden, "vault reset is disabled")
		return
	}
	if err := s.vault.Reset(); err != nil {
		s.sendFault(w, r, err)
		return
	}
	logging.WithContext(r.Context()).Warn("vault password reset over HTTP",
		zap.String("remote_addr", r.RemoteAddr))
	s.sendJSON(w, http.StatusOK, protocol.MessageResponse{Success: true, Message: "vault password reset"})
}

// ─── Vault zone ─────────────────────────────────────────────────────────────

func (s *Server) handleVaultList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.zones.ListVault(r.Context())
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, entries)
}

func (s *Server) handleVaultArchive(w http.ResponseWriter, r *http.Request) {
	var req protocol.ArchiveRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.zones.ArchiveToVault(req.Path)
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, moveResponse(res))
}

func (s *Server) handleVaultRestore(w http.ResponseWriter, r *http.Request) {
	res, err := s.zones.RestoreFromVault(r.PathValue("name"))
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, moveResponse(res))
}

func (s *Server) handleVaultDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.zones.DeleteFromVault(r.PathValue("name")); err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, protocol.MessageResponse{Success: true, Message: "deleted permanently"})
}
