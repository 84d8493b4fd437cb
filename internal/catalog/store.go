package catalog

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/omertheroot/correlf/internal/apperr"
)

// JSONStore is a file-backed Repository. It is a direct
// generalization of the teacher repo's output.go SQLiteDatabase,
// which — despite its name — was already a JSON document persisted
// with json.MarshalIndent/os.WriteFile and loaded eagerly on open;
// here the document holds FileRecord rows instead of match/scan rows.
type JSONStore struct {
	path string

	mu       sync.Mutex
	Files    []FileRecord `json:"files"`
	nextFile int64
	nextRep  int64
}

// OpenJSONStore opens (or creates) the JSON document at path.
func OpenJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{path: path, nextFile: 1, nextRep: 1}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, apperr.Wrap(apperr.IoFailure, "open catalog store", err)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, apperr.Wrap(apperr.InvalidEncoding, "decode catalog store", err)
	}

	for _, f := range s.Files {
		if f.ID >= s.nextFile {
			s.nextFile = f.ID + 1
		}
		for _, r := range f.Representations {
			if r.ID >= s.nextRep {
				s.nextRep = r.ID + 1
			}
		}
	}
	return s, nil
}

func (s *JSONStore) FindByHash(sha string) ([]FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []FileRecord
	for _, f := range s.Files {
		if f.SHA256 == sha {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *JSONStore) FindByHashAndFilename(sha, filename string) (*FileRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.Files {
		if s.Files[i].SHA256 == sha && s.Files[i].Filename == filename {
			rec := s.Files[i]
			return &rec, true, nil
		}
	}
	return nil, false, nil
}

func (s *JSONStore) FindAll() ([]FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]FileRecord, len(s.Files))
	copy(out, s.Files)
	return out, nil
}

func (s *JSONStore) Save(rec *FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextFile
	s.nextFile++
	for i := range rec.Representations {
		rec.Representations[i].FileID = rec.ID
		rec.Representations[i].ID = s.nextRep
		s.nextRep++
	}

	s.Files = append(s.Files, *rec)
	return s.saveLocked()
}

// saveLocked must be called with s.mu held.
func (s *JSONStore) saveLocked() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.InvalidEncoding, "encode catalog store", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return apperr.Wrap(apperr.IoFailure, "write catalog store", err)
	}
	return nil
}

var _ Repository = (*JSONStore)(nil)
