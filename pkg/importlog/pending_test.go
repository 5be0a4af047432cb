package importlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/targets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const importFile = `{
  "targets": [
    {"orgId": "o1", "integrationId": "i1", "target": {"owner": "vulnmap", "name": "goof", "branch": "main"}},
    {"orgId": "o1", "integrationId": "i1", "target": {"owner": "vulnmap", "name": "juice", "branch": "main"}, "files": ["package.json"]},
    {"orgId": "o2", "integrationId": "i1", "target": {"owner": "vulnmap", "name": "goof", "branch": "main"}}
  ]
}`

func TestPendingSkipsImportedTargets(t *testing.T) {
	dir := t.TempDir()
	importPath := filepath.Join(dir, "import-projects.json")
	require.NoError(t, os.WriteFile(importPath, []byte(importFile), 0o644))

	sink := &FileSink{Dir: dir}
	require.NoError(t, sink.Append(context.Background(), []targets.ImportTarget{
		{OrgID: "o1", IntegrationID: "i1", Target: targets.Target{Owner: "vulnmap", Name: "goof", Branch: "main"}},
	}, "Target exists in Vulnmap"))

	pending, skipped, err := Pending(importPath, sink.Path())
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, pending, 2)
	assert.Equal(t, "juice", pending[0].Target.Name)
	assert.Equal(t, []string{"package.json"}, pending[0].Files)
	assert.Equal(t, "o2", pending[1].OrgID)
}

func TestPendingWithoutLogKeepsEverything(t *testing.T) {
	dir := t.TempDir()
	importPath := filepath.Join(dir, "import-projects.json")
	require.NoError(t, os.WriteFile(importPath, []byte(importFile), 0o644))

	pending, skipped, err := Pending(importPath, filepath.Join(dir, ImportLogName))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Len(t, pending, 3)
}

func TestReadImportFileRequiresTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import-projects.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"orgs": []}`), 0o644))

	_, err := ReadImportFile(path)
	assert.ErrorContains(t, err, `expected a "targets" array`)
}
