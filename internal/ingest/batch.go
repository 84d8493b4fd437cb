// Package ingest implements bulk archive ingestion and rank-by-
// similarity analysis (C10): extracting a zip archive's entries into
// a scoped temp directory, fanning fingerprint extraction out across
// a worker pool adapted from the teacher's search.go Searcher.Run,
// and comparing an upload against every row in the catalog.
package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/omertheroot/correlf/internal/apperr"
	"github.com/omertheroot/correlf/internal/catalog"
	"github.com/omertheroot/correlf/internal/coderec"
	"github.com/omertheroot/correlf/internal/compare"
	"github.com/omertheroot/correlf/internal/fingerprint"
	"github.com/omertheroot/correlf/internal/taskpool"
	"golang.org/x/sync/errgroup"
)

// EntryResult describes the ingest outcome for a single archive
// entry. Failure of one entry never aborts the rest (spec.md §4.10).
type EntryResult struct {
	Name      string
	Record    *catalog.FileRecord
	Persisted bool
	Err       error
}

// Service wires together the extractor, the catalog repository, and
// a worker pool sized per spec.md §5.
type Service struct {
	Extractor *fingerprint.Extractor
	Repo      catalog.Repository
	Comparer  *compare.Comparator
	Workers   int
	Logger    *slog.Logger
}

// NewService builds an ingest Service. A nil logger falls back to
// slog.Default(), matching the ambient logging convention the rest of
// the module uses.
func NewService(extractor *fingerprint.Extractor, repo catalog.Repository, comparer *compare.Comparator, workers int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Extractor: extractor, Repo: repo, Comparer: comparer, Workers: workers, Logger: logger}
}

// IngestZip extracts every non-directory entry of archiveBytes into a
// scoped temp directory, classifies code regions for every extracted
// path through one ClassifyBatch call (one classifier invocation per
// BatchSize-sized group) (spec.md §4.10: "run the classifier (C5) in batches of BATCH_SIZE
// entries over all extracted paths"), then fingerprints each entry in
// parallel against its pre-computed regions and persists any entry
// whose (hash, filename) pair is not already in the catalog. Entry
// iteration order is preserved in the returned slice for logging, per
// spec.md §5's ordering guarantee; persistence order itself is not
// guaranteed.
func (s *Service) IngestZip(ctx context.Context, archiveBytes []byte) ([]EntryResult, error) {
	zr, err := zip.NewReader(bytes.NewReader(archiveBytes), int64(len(archiveBytes)))
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidEncoding, "opening zip archive", err)
	}

	tmp, err := apperr.NewScopedTempDir("", "correlf-ingest-")
	if err != nil {
		return nil, err
	}
	defer tmp.Close()

	type entry struct {
		name string
		path string
	}
	var entries []entry

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		dest := filepath.Join(tmp.Path, filepath.Base(f.Name))
		if err := extractEntry(f, dest); err != nil {
			s.Logger.Warn("failed to extract archive entry", "entry", f.Name, "error", err)
			continue
		}
		entries = append(entries, entry{name: f.Name, path: dest})
	}

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.path
	}
	regionsByPath, err := s.Extractor.Coderec.ClassifyBatch(ctx, paths)
	if err != nil {
		s.Logger.Warn("batch classification failed, falling back to per-file classification", "error", err)
		regionsByPath = nil
	}

	results := make([]EntryResult, len(entries))
	pool := taskpool.New(s.Workers)
	var wg sync.WaitGroup

	for i, e := range entries {
		i, e := i, e
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			if regions, ok := regionsByPath[e.path]; ok {
				results[i] = s.ingestOneWithRegions(ctx, e.name, e.path, regions)
			} else {
				results[i] = s.ingestOne(ctx, e.name, e.path)
			}
		})
	}
	wg.Wait()
	pool.Close()

	return results, nil
}

// IngestFile fingerprints the single file at path and persists it if
// no catalog row already shares its (hash, filename) pair. Exported
// for callers that ingest a loose file or a watched directory entry,
// as opposed to a zip archive.
func (s *Service) IngestFile(ctx context.Context, name, path string) (EntryResult, error) {
	return s.ingestOne(ctx, name, path), nil
}

// IngestDir walks root (adapted from the teacher's search.go
// Searcher.walk: a filepath.Walk feeding a worker pool, here a
// taskpool.Pool instead of a raw goroutine/channel pair) and
// fingerprints every regular file it finds, recursively.
func (s *Service) IngestDir(ctx context.Context, root string) ([]EntryResult, error) {
	var names, paths []string
	walkErr := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			s.Logger.Warn("error walking ingest directory", "path", p, "error", err)
			return nil
		}
		if info.IsDir() {
			return nil
		}
		names = append(names, filepath.Base(p))
		paths = append(paths, p)
		return nil
	})
	if walkErr != nil {
		return nil, apperr.Wrap(apperr.IoFailure, "walking ingest directory "+root, walkErr)
	}

	results := make([]EntryResult, len(paths))
	pool := taskpool.New(s.Workers)
	var wg sync.WaitGroup
	for i := range paths {
		i := i
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			results[i] = s.ingestOne(ctx, names[i], paths[i])
		})
	}
	wg.Wait()
	pool.Close()

	return results, nil
}

// ingestOne classifies and fingerprints one file on its own, for
// callers that did not already classify it as part of a batch
// (IngestFile, IngestDir, and IngestZip's fallback when batch
// classification itself fails).
func (s *Service) ingestOne(ctx context.Context, name, path string) EntryResult {
	select {
	case <-ctx.Done():
		return EntryResult{Name: name, Err: ctx.Err()}
	default:
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.Logger.Warn("failed to read extracted entry", "entry", name, "error", err)
		return EntryResult{Name: name, Err: err}
	}

	rec, err := s.Extractor.Extract(ctx, filepath.Base(name), path, data)
	return s.persist(name, rec, err)
}

// ingestOneWithRegions fingerprints one file against code regions
// already produced by a batched coderec classification (spec.md
// §4.10), skipping the per-file Classify call.
func (s *Service) ingestOneWithRegions(ctx context.Context, name, path string, regions []coderec.Region) EntryResult {
	select {
	case <-ctx.Done():
		return EntryResult{Name: name, Err: ctx.Err()}
	default:
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.Logger.Warn("failed to read extracted entry", "entry", name, "error", err)
		return EntryResult{Name: name, Err: err}
	}

	rec, err := s.Extractor.ExtractWithRegions(ctx, filepath.Base(name), path, data, regions)
	return s.persist(name, rec, err)
}

// persist looks up (sha256, filename) in the catalog and saves rec
// only if no row already shares that pair, the uniqueness rule spec.md
// §4.10 gives every ingest path.
func (s *Service) persist(name string, rec *catalog.FileRecord, extractErr error) EntryResult {
	if extractErr != nil {
		s.Logger.Warn("failed to fingerprint archive entry", "entry", name, "error", extractErr)
		return EntryResult{Name: name, Err: extractErr}
	}

	existing, found, err := s.Repo.FindByHashAndFilename(rec.SHA256, rec.Filename)
	if err != nil {
		s.Logger.Warn("catalog lookup failed during ingest", "entry", name, "error", err)
		return EntryResult{Name: name, Record: rec, Err: err}
	}
	if found {
		return EntryResult{Name: name, Record: existing, Persisted: false}
	}

	if err := s.Repo.Save(rec); err != nil {
		s.Logger.Warn("failed to persist archive entry", "entry", name, "error", err)
		return EntryResult{Name: name, Record: rec, Err: err}
	}
	return EntryResult{Name: name, Record: rec, Persisted: true}
}

// Analyze builds a fingerprint for upload, persisting it if no
// catalog row shares its (hash, filename) pair, then compares it
// against every row already in the catalog, per spec.md §4.10. The
// returned list follows catalog snapshot order and is not sorted by
// score — callers filter/sort as needed.
func (s *Service) Analyze(ctx context.Context, filename, path string, data []byte) ([]*compare.Comparison, error) {
	rec, err := s.Extractor.Extract(ctx, filename, path, data)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.Repo.FindAll()
	if err != nil {
		return nil, err
	}

	if _, found, err := s.Repo.FindByHashAndFilename(rec.SHA256, rec.Filename); err != nil {
		return nil, err
	} else if !found {
		if err := s.Repo.Save(rec); err != nil {
			return nil, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	comparisons := make([]*compare.Comparison, len(snapshot))

	for i := range snapshot {
		i := i
		row := snapshot[i]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			cmp, err := s.Comparer.Compare(rec, &row)
			if err != nil {
				return err
			}
			comparisons[i] = cmp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return comparisons, nil
}

// Compare builds in-memory representations for two inputs and
// delegates to the comparator, per spec.md §4.10's compare(a, b)
// operation. Neither input is persisted.
func (s *Service) Compare(ctx context.Context, nameA, pathA string, dataA []byte, nameB, pathB string, dataB []byte) (*compare.Comparison, error) {
	recA, err := s.Extractor.Extract(ctx, nameA, pathA, dataA)
	if err != nil {
		return nil, err
	}
	recB, err := s.Extractor.Extract(ctx, nameB, pathB, dataB)
	if err != nil {
		return nil, err
	}
	return s.Comparer.Compare(recA, recB)
}

func extractEntry(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return apperr.Wrap(apperr.IoFailure, "opening zip entry", err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return apperr.Wrap(apperr.IoFailure, "creating extracted zip entry file", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return apperr.Wrap(apperr.IoFailure, "writing extracted zip entry", err)
	}
	return nil
}
