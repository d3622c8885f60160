package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/fruitsalade/vaultbox/internal/fsutil"
	"github.com/fruitsalade/vaultbox/internal/logging"
	"github.com/fruitsalade/vaultbox/internal/metrics"
	"github.com/fruitsalade/vaultbox/internal/storage"
	"github.com/fruitsalade/vaultbox/internal/zones"
	"github.com/fruitsalade/vaultbox/pkg/protocol"
)

// ─── Listing ────────────────────────────────────────────────────────────────

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.zones.ListActive(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	info, err := s.zones.StorageInfo(r.Context())
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, info)
}

// ─── Create / rename / delete ───────────────────────────────────────────────

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req protocol.CreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	e, err := s.zones.CreateFolder(req.Path, req.Name)
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	var req protocol.CreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	e, err := s.zones.CreateFile(req.Path, req.Name)
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, e)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req protocol.RenameRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.zones.Rename(req.OldName, req.NewName); err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, protocol.MessageResponse{Success: true, Message: "renamed"})
}

// handleDelete serves DELETE /api/files/{path...} and DELETE /api/files?path=.
// The query form reaches active paths under a top-level folder named "trash"
// or "all", which the more specific routes shadow.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	p := r.PathValue("path")
	if p == "" {
		p = r.URL.Query().Get("path")
	}
	res, err := s.zones.Delete(p)
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, protocol.DeleteResponse{
		Success:            true,
		WasDirectory:       res.WasDirectory,
		ShouldNavigateHome: res.WasDirectory,
		TrashName:          res.TrashName,
	})
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	res, err := s.zones.DeleteAll()
	s.sendBulk(w, r, res, err)
}

// sendBulk reports a best-effort bulk operation. Partial failures still
// answer 200 with the failed entries listed.
func (s *Server) sendBulk(w http.ResponseWriter, r *http.Request, res zones.BulkResult, err error) {
	if err != nil && len(res.Done) == 0 && len(res.Failed) == 0 {
		s.sendFault(w, r, err)
		return
	}
	resp := protocol.BulkResponse{Success: err == nil, Moved: res.Done}
	if resp.Moved == nil {
		resp.Moved = []string{}
	}
	for name, ferr := range res.Failed {
		resp.Failed = append(resp.Failed, protocol.BulkFailure{Name: name, Error: ferr.Error()})
	}
	if err != nil {
		logging.WithContext(r.Context()).Warn("bulk operation partially failed",
			zap.Int("failed", len(res.Failed)), zap.Error(err))
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// ─── Upload ─────────────────────────────────────────────────────────────────

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limits := s.zones.Limits()
	r.Body = http.MaxBytesReader(w, r.Body, limits.StorageLimit+(1<<20))

	mr, err := r.MultipartReader()
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "expected multipart/form-data")
		return
	}

	var (
		dir     string
		created []storage.Entry
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.sendError(w, http.StatusBadRequest, "malformed multipart body")
			return
		}

		// The path field must precede the file parts it applies to.
		switch part.FormName() {
		case "path":
			data, err := io.ReadAll(io.LimitReader(part, 4096))
			if err != nil {
				part.Close()
				s.sendError(w, http.StatusBadRequest, "malformed path field")
				return
			}
			dir = strings.TrimSpace(string(data))
		case "file":
			name := uploadName(part.Header.Get("Content-Disposition"), part.FileName())
			e, err := s.zones.Upload(r.Context(), dir, name, part, -1)
			if err != nil {
				part.Close()
				s.sendFault(w, r, err)
				return
			}
			created = append(created, e)
		}
		part.Close()
	}

	switch len(created) {
	case 0:
		s.sendError(w, http.StatusBadRequest, "no file provided")
	case 1:
		s.sendJSON(w, http.StatusOK, created[0])
	default:
		s.sendJSON(w, http.StatusOK, created)
	}
}

// uploadName returns the client-supplied file name including any relative
// folder path. multipart.Part.FileName strips directories, so the raw
// Content-Disposition is consulted first.
func uploadName(disposition, fallback string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}
	return fallback
}

// ─── Download ───────────────────────────────────────────────────────────────

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	f, info, err := s.zones.Open(zones.Active, r.PathValue("path"))
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	defer f.Close()

	name := info.Name()
	if !info.IsDir() {
		w.Header().Set("Content-Disposition", contentDisposition(name))
		metrics.RecordDownload("file")
		http.ServeContent(w, r, name, info.ModTime(), f)
		return
	}

	if fsutil.Sanitize(r.PathValue("path")) == "" {
		name = "files"
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", contentDisposition(name+".zip"))
	metrics.RecordDownload("zip")
	if err := storage.WriteZip(r.Context(), w, f.Name(), name); err != nil {
		// Headers are gone; the client sees a truncated archive.
		logging.WithContext(r.Context()).Warn("zip download aborted",
			zap.String("path", r.PathValue("path")), zap.Error(err))
	}
}

func contentDisposition(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

// ─── Text content ───────────────────────────────────────────────────────────

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	content, err := s.zones.ReadContent(p, maxContentSize)
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, protocol.ContentBody{Path: p, Content: content})
}

func (s *Server) handlePutContent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxContentSize)
	var req protocol.ContentBody
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Content) > maxContentSize {
		s.sendError(w, http.StatusBadRequest, fmt.Sprintf("content exceeds %d bytes", maxContentSize))
		return
	}
	e, err := s.zones.WriteContent(r.Context(), req.Path, req.Content)
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, e)
}
