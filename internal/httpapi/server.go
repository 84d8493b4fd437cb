// Package httpapi exposes correlf's fingerprinting and comparison
// pipeline over HTTP: multipart uploads in, JSON comparison records
// out. Routing uses the stdlib net/http.ServeMux method+path pattern
// syntax; no router library appears anywhere in the retrieval pack to
// justify pulling one in.
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/omertheroot/correlf/internal/apperr"
	"github.com/omertheroot/correlf/internal/compare"
	"github.com/omertheroot/correlf/internal/ingest"
)

// Server wires the ingest.Service into an http.Handler.
type Server struct {
	Service         *ingest.Service
	UploadSizeLimit int64
	Logger          *slog.Logger
	mux             *http.ServeMux
}

// NewServer constructs a Server and registers its routes.
func NewServer(svc *ingest.Service, uploadSizeLimit int64, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{Service: svc, UploadSizeLimit: uploadSizeLimit, Logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /api", s.handleAnalyze)
	s.mux.HandleFunc("POST /api/compare", s.handleCompare)
	s.mux.HandleFunc("POST /api/upload-zip", s.handleUploadZip)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.UploadSizeLimit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.UploadSizeLimit)
	}
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe runs the HTTP surface on addr, for the `correlf
// serve` subcommand.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// handleAnalyze implements POST /api (spec.md §6): a single-file
// upload compared against the whole catalog, with optional
// minScore/maxScore/rating query filters.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	name, path, data, cleanup, err := s.readUpload(r, "file")
	if err != nil {
		writeError(w, err)
		return
	}
	defer cleanup()

	comparisons, err := s.Service.Analyze(r.Context(), name, path, data)
	if err != nil {
		writeError(w, err)
		return
	}

	filtered := filterComparisons(comparisons, r.URL.Query())
	writeJSON(w, http.StatusOK, filtered)
}

// handleCompare implements POST /api/compare: two uploaded files
// compared in-memory, neither persisted.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	nameA, pathA, dataA, cleanupA, err := s.readUpload(r, "file1")
	if err != nil {
		writeError(w, err)
		return
	}
	defer cleanupA()

	nameB, pathB, dataB, cleanupB, err := s.readUpload(r, "file2")
	if err != nil {
		writeError(w, err)
		return
	}
	defer cleanupB()

	cmp, err := s.Service.Compare(r.Context(), nameA, pathA, dataA, nameB, pathB, dataB)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// handleUploadZip implements POST /api/upload-zip: bulk archive
// ingestion, no response body beyond 204.
func (s *Server) handleUploadZip(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.limit()); err != nil {
		writeError(w, apperr.Wrap(apperr.InvalidEncoding, "parsing multipart form", err))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperr.Wrap(apperr.MissingFilename, "reading upload-zip field", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.IoFailure, "reading zip upload body", err))
		return
	}

	results, err := s.Service.IngestZip(r.Context(), data)
	if err != nil {
		writeError(w, err)
		return
	}

	s.Logger.Info("bulk ingest complete", "entries", len(results))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) limit() int64 {
	if s.UploadSizeLimit > 0 {
		return s.UploadSizeLimit
	}
	return 32 << 20
}

// readUpload pulls one multipart field out of the request into a temp
// file (C5's coderec bridge needs a filesystem path) and returns its
// bytes alongside a cleanup func the caller must defer.
func (s *Server) readUpload(r *http.Request, field string) (name, path string, data []byte, cleanup func(), err error) {
	if parseErr := r.ParseMultipartForm(s.limit()); parseErr != nil {
		return "", "", nil, func() {}, apperr.Wrap(apperr.InvalidEncoding, "parsing multipart form", parseErr)
	}

	f, header, ferr := r.FormFile(field)
	if ferr != nil {
		return "", "", nil, func() {}, apperr.Wrap(apperr.MissingFilename, "reading upload field "+field, ferr)
	}
	defer f.Close()

	if header.Filename == "" {
		return "", "", nil, func() {}, apperr.New(apperr.MissingFilename, "upload missing original filename")
	}

	data, err = io.ReadAll(f)
	if err != nil {
		return "", "", nil, func() {}, apperr.Wrap(apperr.IoFailure, "reading upload body", err)
	}

	tmp, err := os.CreateTemp("", "correlf-upload-")
	if err != nil {
		return "", "", nil, func() {}, apperr.Wrap(apperr.IoFailure, "creating temp file for upload", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", "", nil, func() {}, apperr.Wrap(apperr.IoFailure, "writing temp file for upload", err)
	}
	tmp.Close()

	return header.Filename, tmp.Name(), data, func() { os.Remove(tmp.Name()) }, nil
}

// filterComparisons applies the minScore/maxScore/rating query
// predicates spec.md §6 describes. An unrecognized rating value is
// treated as "no rating filter" (spec.md §7's malformed-query rule).
func filterComparisons(comparisons []*compare.Comparison, q map[string][]string) []*compare.Comparison {
	minScore, hasMin := parseFloatParam(q, "minScore")
	maxScore, hasMax := parseFloatParam(q, "maxScore")
	rating, hasRating := parseRatingParam(q, "rating")

	out := make([]*compare.Comparison, 0, len(comparisons))
	for _, c := range comparisons {
		if c == nil {
			continue
		}
		if hasMin && c.SimilarityScore < minScore {
			continue
		}
		if hasMax && c.SimilarityScore > maxScore {
			continue
		}
		if hasRating && c.SimilarityRating != rating {
			continue
		}
		out = append(out, c)
	}
	return out
}

func parseFloatParam(q map[string][]string, key string) (float64, bool) {
	vals, ok := q[key]
	if !ok || len(vals) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(vals[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseRatingParam(q map[string][]string, key string) (compare.Rating, bool) {
	vals, ok := q[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	switch vals[0] {
	case "high":
		return compare.RatingHigh, true
	case "medium":
		return compare.RatingMedium, true
	case "low":
		return compare.RatingLow, true
	default:
		return "", false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an apperr.Kind to its HTTP status per spec.md §7:
// every taxonomy kind is a client error (400) except an untagged
// internal bug, which becomes 500.
func writeError(w http.ResponseWriter, err error) {
	kind, ok := apperr.KindOf(err)
	status := http.StatusInternalServerError
	if ok {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  kind.String(),
	})
}
