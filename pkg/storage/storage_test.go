package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/targets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "imported.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var (
	repo = targets.ImportTarget{OrgID: "org-1", IntegrationID: "gh", Target: targets.Target{Owner: "vulnmap", Name: "goof", Branch: "main"}}
	bbs  = targets.ImportTarget{OrgID: "org-1", IntegrationID: "bbs", Target: targets.Target{ProjectKey: "K", RepoSlug: "s"}, Files: []string{"pom.xml"}}
	img  = targets.ImportTarget{OrgID: "org-2", IntegrationID: "dh", Target: targets.Target{Name: "library/nginx:latest"}}
)

func TestUpsertImportedTargetsIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	added, err := db.UpsertImportedTargets(ctx, "run-1", []targets.ImportTarget{repo, bbs}, "Target exists in Vulnmap")
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = db.UpsertImportedTargets(ctx, "run-2", []targets.ImportTarget{repo, bbs, img}, "Target exists in Vulnmap")
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	added, err = db.UpsertImportedTargets(ctx, "run-2", []targets.ImportTarget{repo, bbs, img}, "Target exists in Vulnmap")
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	all, err := db.ListImportedTargets(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, it := range all {
		assert.Equal(t, "run-2", it.RunID)
		assert.Equal(t, "Target exists in Vulnmap", it.Message)
		assert.False(t, it.FirstSeenAt.IsZero())
		assert.False(t, it.LastSeenAt.Before(it.FirstSeenAt))
	}
}

func TestListImportedTargetsByOrg(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := db.UpsertImportedTargets(ctx, "run", []targets.ImportTarget{repo, bbs, img}, "")
	require.NoError(t, err)

	got, err := db.ListImportedTargets(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	byIntegration := map[string]targets.ImportTarget{}
	for _, it := range got {
		byIntegration[it.IntegrationID] = it.ImportTarget
	}
	assert.Equal(t, repo, byIntegration["gh"])
	assert.Equal(t, bbs, byIntegration["bbs"])
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Empty(t, stats)

	_, err = db.UpsertImportedTargets(ctx, "run", []targets.ImportTarget{repo, bbs, img}, "")
	require.NoError(t, err)

	stats, err = db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []OrgStats{
		{OrgID: "org-1", IntegrationCount: 2, TargetCount: 2},
		{OrgID: "org-2", IntegrationCount: 1, TargetCount: 1},
	}, stats)
}

func TestSinkSharesRunID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sink := NewSink(db)
	require.NotEmpty(t, sink.RunID)

	require.NoError(t, sink.Append(ctx, []targets.ImportTarget{repo}, "Target exists in Vulnmap"))
	require.NoError(t, sink.Append(ctx, []targets.ImportTarget{repo, img}, "Target exists in Vulnmap"))

	all, err := db.ListImportedTargets(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, it := range all {
		assert.Equal(t, sink.RunID, it.RunID)
	}
}
