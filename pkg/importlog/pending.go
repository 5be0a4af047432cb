package importlog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/targets"
	"github.com/tidwall/gjson"
)

// ReadImportFile parses an import-projects.json file: {"targets": [...]}.
func ReadImportFile(path string) ([]targets.ImportTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	list := gjson.GetBytes(data, "targets")
	if !list.IsArray() {
		return nil, fmt.Errorf("%s: expected a \"targets\" array", path)
	}
	var out []targets.ImportTarget
	if err := json.Unmarshal([]byte(list.Raw), &out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// Pending drops the targets of importFile that the imported targets log
// at logFile already lists. It returns what is left and how many were
// skipped.
func Pending(importFile, logFile string) ([]targets.ImportTarget, int, error) {
	all, err := ReadImportFile(importFile)
	if err != nil {
		return nil, 0, err
	}
	known, err := KnownTargetIDs(logFile)
	if err != nil {
		return nil, 0, err
	}
	pending := make([]targets.ImportTarget, 0, len(all))
	for _, t := range all {
		if _, ok := known[targets.GenerateTargetID(t.OrgID, t.IntegrationID, t.Target)]; ok {
			continue
		}
		pending = append(pending, t)
	}
	return pending, len(all) - len(pending), nil
}
