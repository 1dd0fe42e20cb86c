package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"artscope/internal/domain"
)

const noArtworksMessage = "No artworks found in database"

// multipart parts beyond this are spooled to disk by net/http
const maxMemory = 8 << 20

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if limit := s.cfg.MaxUploadBytes; limit > 0 {
		if r.ContentLength > limit {
			s.writeError(w, r, &http.MaxBytesError{Limit: limit})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	image, err := readUpload(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.scan.Scan(r.Context(), image)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out.Empty() {
		writeJSON(w, http.StatusOK, map[string]string{"message": noArtworksMessage})
		return
	}
	writeJSON(w, http.StatusOK, domain.NewMatchPayload(out.Artwork, out.Score, s.precision))
}

// readUpload returns the bytes of the multipart field "file".
func readUpload(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: expected multipart/form-data: %v", errBadRequest, err)
	}
	defer r.MultipartForm.RemoveAll()

	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: missing form field \"file\"", errBadRequest)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: uploaded file is empty", errBadRequest)
	}
	return data, nil
}

func (s *Server) handleListArtworks(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artworks": list,
		"count":    len(list),
	})
}

func (s *Server) handleGetArtwork(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, fmt.Errorf("%w: invalid artwork id %q", errBadRequest, r.PathValue("id")))
		return
	}
	a, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := s.catalog.Count(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"error":  err.Error(),
			"model":  s.model,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"artworks": n,
		"model":    s.model,
	})
}
