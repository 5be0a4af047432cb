// Package importlog writes and reads the files a run leaves behind in the
// logging directory: the imported targets log and per-org failed-sync logs.
package importlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/khulnasoft-lab/vulnmap-api-import/internal/utils"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/targets"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	ImportLogName     = "imported-targets.log"
	FailedSyncLogName = "failed-to-sync-targets.log"
)

// newJSONLogger returns a logger writing one JSON object per line to w.
func newJSONLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.Out = w
	l.Formatter = &logrus.JSONFormatter{}
	l.Level = level
	return l
}

func recordFields(t targets.ImportTarget) logrus.Fields {
	fields := logrus.Fields{
		"orgId":         t.OrgID,
		"integrationId": t.IntegrationID,
		"target":        t.Target,
	}
	if len(t.Files) > 0 {
		fields["files"] = t.Files
	}
	if t.ExclusionGlobs != "" {
		fields["exclusionGlobs"] = t.ExclusionGlobs
	}
	return fields
}

// FileSink keeps <Dir>/imported-targets.log in sync with the targets
// passed to Append.
type FileSink struct {
	Dir string
}

// Path is the location of the imported targets log.
func (s *FileSink) Path() string {
	return filepath.Join(s.Dir, ImportLogName)
}

// Append replaces the log with records, one line each. The file is built
// next to the destination and renamed into place, so a reader never sees a
// partial log and writing the same records twice leaves the same file.
func (s *FileSink) Append(ctx context.Context, records []targets.ImportTarget, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest := s.Path()

	lock := utils.NewFileLock(dest)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(s.Dir, ImportLogName+".*.tmp")
	if err != nil {
		return fmt.Errorf("could not create import log: %w", err)
	}
	defer os.Remove(tmp.Name())

	l := newJSONLogger(tmp, logrus.InfoLevel)
	for _, r := range records {
		l.WithFields(recordFields(r)).Info(message)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("could not write import log %s: %w", dest, err)
	}
	return nil
}

// ReadImportedTargets parses an imported targets log.
func ReadImportedTargets(path string) ([]targets.ImportTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var (
		out     []targets.ImportTarget
		recNo   int
		readErr error
	)
	gjson.ForEachLine(string(data), func(line gjson.Result) bool {
		recNo++
		if line.Raw == "" {
			return true
		}
		if !line.IsObject() {
			readErr = fmt.Errorf("%s: record %d: not a JSON object", path, recNo)
			return false
		}
		var t targets.Target
		if raw := line.Get("target").Raw; raw != "" {
			if err := json.Unmarshal([]byte(raw), &t); err != nil {
				readErr = fmt.Errorf("%s: record %d: %w", path, recNo, err)
				return false
			}
		}
		rec := targets.ImportTarget{
			OrgID:          line.Get("orgId").Str,
			IntegrationID:  line.Get("integrationId").Str,
			Target:         t,
			ExclusionGlobs: line.Get("exclusionGlobs").Str,
		}
		for _, f := range line.Get("files").Array() {
			rec.Files = append(rec.Files, f.Str)
		}
		out = append(out, rec)
		return true
	})
	if readErr != nil {
		return nil, readErr
	}
	return out, nil
}

// KnownTargetIDs returns the identity keys of every target in the log at
// path. A missing log means nothing is known yet.
func KnownTargetIDs(path string) (map[string]struct{}, error) {
	records, err := ReadImportedTargets(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, err
	}
	ids := make(map[string]struct{}, len(records))
	for _, r := range records {
		ids[targets.GenerateTargetID(r.OrgID, r.IntegrationID, r.Target)] = struct{}{}
	}
	return ids, nil
}

// LogFailedSync appends a failure record to <dir>/<orgId>.failed-to-sync-targets.log.
func LogFailedSync(dir, orgID string, target interface{}, errorMessage string) error {
	path := filepath.Join(dir, orgID+"."+FailedSyncLogName)

	lock := utils.NewFileLock(path)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	newJSONLogger(f, logrus.ErrorLevel).WithFields(logrus.Fields{
		"orgId":        orgID,
		"target":       target,
		"errorMessage": errorMessage,
	}).Error("Failed to sync target")
	return nil
}
