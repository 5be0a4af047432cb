package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/targets"
)

// Sink writes import log records into the database. All writes made
// through one Sink share a run id.
type Sink struct {
	DB    *DB
	RunID string
}

// NewSink returns a Sink with a fresh run id.
func NewSink(db *DB) *Sink {
	return &Sink{DB: db, RunID: uuid.NewString()}
}

func (s *Sink) Append(ctx context.Context, records []targets.ImportTarget, message string) error {
	_, err := s.DB.UpsertImportedTargets(ctx, s.RunID, records, message)
	return err
}
