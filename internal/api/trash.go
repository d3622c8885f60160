package api

import (
	"net/http"

	"github.com/fruitsalade/vaultbox/internal/zones"
	"github.com/fruitsalade/vaultbox/pkg/protocol"
)

func (s *Server) handleTrashList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.zones.ListTrash(r.Context())
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, entries)
}

func (s *Server) handleTrashEmpty(w http.ResponseWriter, r *http.Request) {
	res, err := s.zones.EmptyTrash()
	s.sendBulk(w, r, res, err)
}

func (s *Server) handleTrashRestore(w http.ResponseWriter, r *http.Request) {
	res, err := s.zones.RestoreFromTrash(r.PathValue("name"))
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, moveResponse(res))
}

func (s *Server) handleTrashPurge(w http.ResponseWriter, r *http.Request) {
	if err := s.zones.DeleteFromTrash(r.PathValue("name")); err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, protocol.MessageResponse{Success: true, Message: "deleted permanently"})
}

func moveResponse(res zones.MoveResult) protocol.MoveResponse {
	return protocol.MoveResponse{Success: true, Name: res.Name, Path: res.Path}
}
