package api

import (
	"net/http"

	"github.com/fruitsalade/vaultbox/internal/config"
	"github.com/fruitsalade/vaultbox/internal/quota"
	"github.com/fruitsalade/vaultbox/pkg/protocol"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	l := s.zones.Limits()
	s.sendJSON(w, http.StatusOK, protocol.StorageSettings{
		StorageLimit:  l.StorageLimit,
		FileSizeLimit: l.FileSizeLimit,
	})
}

// handleUpdateSettings persists the new limits, then applies them.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req protocol.StorageSettings
	if !s.decode(w, r, &req) {
		return
	}
	l := quota.Limits{StorageLimit: req.StorageLimit, FileSizeLimit: req.FileSizeLimit}
	if err := l.Validate(); err != nil {
		s.sendFault(w, r, err)
		return
	}
	if s.settingsFile != "" {
		if err := config.SaveSettings(s.settingsFile, config.SettingsFrom(l)); err != nil {
			s.sendFault(w, r, err)
			return
		}
	}
	if err := s.zones.UpdateConfig(l); err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, req)
}
