package catalog

// Repository is the narrow interface the rest of correlf depends on
// (spec.md §4.8). A production deployment is expected to back this
// with a relational store; JSONStore is the reference implementation
// shipped here since no SQL driver appears in this module's dependency
// graph (see DESIGN.md).
type Repository interface {
	// FindByHash returns every record sharing sha, which may be more
	// than one if the same bytes were uploaded under distinct names.
	FindByHash(sha string) ([]FileRecord, error)

	// FindByHashAndFilename returns the record for the exact
	// (sha, filename) pair, if one exists.
	FindByHashAndFilename(sha, filename string) (*FileRecord, bool, error)

	// FindAll returns every record in the catalog. Representation
	// data is resolved eagerly by JSONStore (it has no separate blob
	// store to lazy-load from); the interface still documents the
	// lazy-load contract a SQL-backed implementation would want.
	FindAll() ([]FileRecord, error)

	// Save persists rec and all its representations atomically. On
	// return rec.ID is set and every representation carries rec.ID as
	// its FileID.
	Save(rec *FileRecord) error
}
