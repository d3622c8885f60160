package api

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	// decoders
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/fruitsalade/vaultbox/internal/fault"
	"github.com/fruitsalade/vaultbox/internal/zones"
)

const (
	thumbMaxSize = 256
	// thumbMaxPixels bounds the decoded source image (about 160 MiB as RGBA).
	thumbMaxPixels = 40_000_000
)

var thumbExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zone, err := zones.ParseZone(q.Get("zone"))
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	if zone == zones.Vault {
		s.sendError(w, http.StatusBadRequest, "thumbnails are not served from the vault")
		return
	}
	p := q.Get("path")
	if !thumbExts[strings.ToLower(path.Ext(p))] {
		s.sendError(w, http.StatusBadRequest, "unsupported image type")
		return
	}

	f, info, err := s.zones.Open(zone, p)
	if err != nil {
		s.sendFault(w, r, err)
		return
	}
	defer f.Close()
	if info.IsDir() {
		s.sendFault(w, r, fault.Invalid("thumbnail", p, "not a file"))
		return
	}

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		s.sendError(w, http.StatusUnsupportedMediaType, "cannot decode image")
		return
	}
	if int64(cfg.Width)*int64(cfg.Height) > thumbMaxPixels {
		s.sendError(w, http.StatusRequestEntityTooLarge, "image dimensions too large for a thumbnail")
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		s.sendFault(w, r, fault.Wrap("thumbnail", p, err))
		return
	}

	src, _, err := image.Decode(f)
	if err != nil {
		s.sendError(w, http.StatusUnsupportedMediaType, "cannot decode image")
		return
	}
	data, err := makeThumb(src, thumbMaxSize)
	if err != nil {
		s.sendFault(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(data)
}

// makeThumb scales src to fit within limit pixels on its longer side and
// encodes it as JPEG. Smaller images keep their size.
func makeThumb(src image.Image, limit int) ([]byte, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fault.Invalid("thumbnail", "", "empty image")
	}

	nw, nh := w, h
	if w > h {
		if w > limit {
			nw = limit
			nh = int(float64(h) * (float64(limit) / float64(w)))
		}
	} else if h > limit {
		nh = limit
		nw = int(float64(w) * (float64(limit) / float64(h)))
	}
	nw = max(nw, 1)
	nh = max(nh, 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 82}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
