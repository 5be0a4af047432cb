package importlog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/targets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

var (
	goof = targets.ImportTarget{
		OrgID: "org-1", IntegrationID: "int-gh",
		Target: targets.Target{Owner: "vulnmap", Name: "goof", Branch: "main"},
	}
	image = targets.ImportTarget{
		OrgID: "org-2", IntegrationID: "int-dh",
		Target: targets.Target{Name: "vulnmap/app:latest"},
	}
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestFileSinkWritesOneJSONLinePerTarget(t *testing.T) {
	sink := &FileSink{Dir: t.TempDir()}

	require.NoError(t, sink.Append(context.Background(), []targets.ImportTarget{goof, image}, "Target exists in Vulnmap"))

	lines := readLines(t, sink.Path())
	require.Len(t, lines, 2)
	first := gjson.Parse(lines[0])
	assert.Equal(t, "Target exists in Vulnmap", first.Get("msg").Str)
	assert.Equal(t, "info", first.Get("level").Str)
	assert.Equal(t, "org-1", first.Get("orgId").Str)
	assert.Equal(t, "int-gh", first.Get("integrationId").Str)
	assert.JSONEq(t, `{"owner":"vulnmap","name":"goof","branch":"main"}`, first.Get("target").Raw)
	assert.False(t, first.Get("files").Exists())
}

func TestFileSinkRewritesWholeFile(t *testing.T) {
	sink := &FileSink{Dir: t.TempDir()}
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, []targets.ImportTarget{goof}, "Target exists in Vulnmap"))
	require.NoError(t, sink.Append(ctx, []targets.ImportTarget{goof, image}, "Target exists in Vulnmap"))
	require.NoError(t, sink.Append(ctx, []targets.ImportTarget{goof, image}, "Target exists in Vulnmap"))

	got, err := ReadImportedTargets(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, []targets.ImportTarget{goof, image}, got)

	entries, err := os.ReadDir(sink.Dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestFileSinkConcurrentAppends(t *testing.T) {
	sink := &FileSink{Dir: t.TempDir()}
	all := []targets.ImportTarget{goof, image}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sink.Append(context.Background(), all, "Target exists in Vulnmap"))
		}()
	}
	wg.Wait()

	got, err := ReadImportedTargets(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, all, got)
}

func TestFileSinkCancelledContext(t *testing.T) {
	sink := &FileSink{Dir: t.TempDir()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sink.Append(ctx, []targets.ImportTarget{goof}, "x"), context.Canceled)
	_, err := os.Stat(sink.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestReadImportedTargetsWithFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), ImportLogName)
	content := `{"level":"info","msg":"Target exists in Vulnmap","orgId":"o","integrationId":"i","target":{"projectKey":"K","repoSlug":"s"},"files":["package.json","a/pom.xml"],"exclusionGlobs":"fixtures"}

{"level":"info","msg":"Target exists in Vulnmap","orgId":"o","integrationId":"i","target":{"name":"g/r","branch":"b"}}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := ReadImportedTargets(path)
	require.NoError(t, err)
	assert.Equal(t, []targets.ImportTarget{
		{OrgID: "o", IntegrationID: "i", Target: targets.Target{ProjectKey: "K", RepoSlug: "s"}, Files: []string{"package.json", "a/pom.xml"}, ExclusionGlobs: "fixtures"},
		{OrgID: "o", IntegrationID: "i", Target: targets.Target{Name: "g/r", Branch: "b"}},
	}, got)
}

func TestReadImportedTargetsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), ImportLogName)
	require.NoError(t, os.WriteFile(path, []byte("{\"orgId\":\"o\"}\nnot json\n"), 0o644))

	_, err := ReadImportedTargets(path)
	assert.ErrorContains(t, err, "record 2")
}

func TestKnownTargetIDs(t *testing.T) {
	sink := &FileSink{Dir: t.TempDir()}

	ids, err := KnownTargetIDs(sink.Path())
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, sink.Append(context.Background(), []targets.ImportTarget{goof, image}, "Target exists in Vulnmap"))
	ids, err = KnownTargetIDs(sink.Path())
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, targets.GenerateTargetID("org-1", "int-gh", goof.Target))
}

func TestLogFailedSyncAppends(t *testing.T) {
	dir := t.TempDir()
	target := map[string]string{"id": "t1", "displayName": "vulnmap/goof"}

	require.NoError(t, LogFailedSync(dir, "org-1", target, "Expected a 200 response"))
	require.NoError(t, LogFailedSync(dir, "org-1", target, "timeout"))

	lines := readLines(t, filepath.Join(dir, "org-1.failed-to-sync-targets.log"))
	require.Len(t, lines, 2)
	rec := gjson.Parse(lines[1])
	assert.Equal(t, "error", rec.Get("level").Str)
	assert.Equal(t, "Failed to sync target", rec.Get("msg").Str)
	assert.Equal(t, "org-1", rec.Get("orgId").Str)
	assert.Equal(t, "t1", rec.Get("target.id").Str)
	assert.Equal(t, "timeout", rec.Get("errorMessage").Str)
}
