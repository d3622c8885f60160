package webdav

import (
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"github.com/fruitsalade/vaultbox/internal/logging"
	"github.com/fruitsalade/vaultbox/internal/zones"
)

// Prefix is the URL path the handler is mounted under.
const Prefix = "/webdav"

// NewHandler creates a WebDAV HTTP handler for the active zone.
func NewHandler(m *zones.Manager) http.Handler {
	return &webdav.Handler{
		Prefix:     Prefix,
		FileSystem: NewFS(m),
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				logging.WithContext(r.Context()).Debug("webdav request failed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err))
			}
		},
	}
}
