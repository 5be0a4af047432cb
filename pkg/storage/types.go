package storage

import (
	"time"

	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/targets"
)

// ImportedTarget is a stored import log record.
type ImportedTarget struct {
	targets.ImportTarget

	Message     string
	RunID       string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}
