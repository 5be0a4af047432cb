package imported

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/importlog"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/targets"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/vulnmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spySource serves canned projects and integrations per org and records
// the calls it receives.
type spySource struct {
	mu sync.Mutex

	orgs         []vulnmap.Org
	orgsErr      error
	projects     map[string][]vulnmap.Project
	projectsErr  map[string]error
	integrations map[string]map[string]string
	delay        time.Duration

	groupCalls    []string
	projectCalls  []vulnmap.ProjectFilters
	integrationsN int

	inFlight    int32
	maxInFlight int32
}

func (s *spySource) ListOrgsInGroup(_ context.Context, groupID string) ([]vulnmap.Org, error) {
	s.mu.Lock()
	s.groupCalls = append(s.groupCalls, groupID)
	s.mu.Unlock()
	return s.orgs, s.orgsErr
}

func (s *spySource) ListProjects(_ context.Context, orgID string, filters vulnmap.ProjectFilters) (*vulnmap.ProjectsResponse, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&s.maxInFlight)
		if n <= peak || atomic.CompareAndSwapInt32(&s.maxInFlight, peak, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.projectCalls = append(s.projectCalls, filters)
	s.mu.Unlock()

	if err := s.projectsErr[orgID]; err != nil {
		return nil, err
	}
	return &vulnmap.ProjectsResponse{Org: vulnmap.Org{ID: orgID}, Projects: s.projects[orgID]}, nil
}

func (s *spySource) ListIntegrations(_ context.Context, orgID string) (map[string]string, error) {
	s.mu.Lock()
	s.integrationsN++
	s.mu.Unlock()
	return s.integrations[orgID], nil
}

// recordingSink keeps a copy of every list it is handed.
type recordingSink struct {
	mu    sync.Mutex
	calls [][]targets.ImportTarget
	msgs  []string
	err   error
}

func (r *recordingSink) Append(_ context.Context, records []targets.ImportTarget, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make([]targets.ImportTarget, len(records))
	copy(snapshot, records)
	r.calls = append(r.calls, snapshot)
	r.msgs = append(r.msgs, message)
	return r.err
}

// recordingLogger keeps warnings for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Infof(string, ...interface{})  {}
func (l *recordingLogger) Errorf(string, ...interface{}) {}
func (l *recordingLogger) Debugf(string, ...interface{}) {}
func (l *recordingLogger) Warnf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func proj(id, name, branch, origin string) vulnmap.Project {
	return vulnmap.Project{ID: id, Name: name, Branch: branch, Origin: origin, Type: "npm", Status: "active"}
}

func sortByOrg(ts []targets.ImportTarget) {
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].OrgID < ts[j].OrgID })
}

func TestGenerateValidatesScopeBeforeIO(t *testing.T) {
	src := &spySource{}
	sink := &recordingSink{}
	cfg := Config{Client: src, Sink: sink}

	_, err := Generate(context.Background(), cfg, Scope{}, nil)
	assert.ErrorIs(t, err, ErrMissingScope)
	assert.EqualError(t, err, "Missing required parameters: orgId or groupId must be provided.")

	_, err = Generate(context.Background(), cfg, Scope{GroupID: "g", OrgID: "o"}, nil)
	assert.ErrorIs(t, err, ErrTooManyScopes)
	assert.EqualError(t, err, "Too many parameters: orgId or groupId must be provided, not both.")

	assert.Empty(t, src.groupCalls)
	assert.Empty(t, src.projectCalls)
	assert.Empty(t, sink.calls)
}

func TestGenerateSingleOrg(t *testing.T) {
	// given
	src := &spySource{
		projects: map[string][]vulnmap.Project{
			"org-1": {
				proj("1", "vulnmap/goof:package.json", "main", "github"),
				proj("2", "vulnmap/goof:todo/package.json", "main", "github"),
				proj("3", "vulnmap/goof(main):Dockerfile", "main", "github"),
				proj("4", "vulnmap/api:pom.xml", "main", "github"),
			},
		},
		integrations: map[string]map[string]string{"org-1": {"github": "int-gh"}},
	}
	sink := &recordingSink{}
	dir := t.TempDir()

	// when
	res, err := Generate(context.Background(), Config{Client: src, Sink: sink, LoggingPath: dir}, Scope{OrgID: "org-1"}, []targets.IntegrationType{targets.GitHub})

	// then
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, importlog.ImportLogName), res.FileName)
	assert.Empty(t, res.FailedOrgs)
	assert.Equal(t, []targets.ImportTarget{
		{OrgID: "org-1", IntegrationID: "int-gh", Target: targets.Target{Owner: "vulnmap", Name: "goof", Branch: "main"}},
		{OrgID: "org-1", IntegrationID: "int-gh", Target: targets.Target{Owner: "vulnmap", Name: "api", Branch: "main"}},
	}, res.Targets)
	assert.Equal(t, []vulnmap.ProjectFilters{{Origin: "github", Limit: 100}}, src.projectCalls)
	assert.Empty(t, src.groupCalls)
	require.Len(t, sink.calls, 1)
	assert.Equal(t, res.Targets, sink.calls[0])
	assert.Equal(t, []string{"Target exists in Vulnmap"}, sink.msgs)
}

func TestGenerateMultipleTypesFiltersClientSide(t *testing.T) {
	src := &spySource{
		projects: map[string][]vulnmap.Project{
			"org-1": {
				proj("1", "vulnmap/goof:package.json", "main", "github"),
				proj("2", "group/sub:package.json", "dev", "gitlab"),
				proj("3", "KEY/slug(master):pom.xml", "master", "bitbucket-server"),
				proj("4", "library/nginx:latest", "", "docker-hub"),
				proj("5", "vulnmap/cli", "", "cli"),
			},
		},
		integrations: map[string]map[string]string{"org-1": {"github": "gh", "gitlab": "gl", "docker-hub": "dh"}},
	}

	res, err := Generate(context.Background(), Config{Client: src}, Scope{OrgID: "org-1"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []vulnmap.ProjectFilters{{Limit: 100}}, src.projectCalls)
	assert.Equal(t, []targets.ImportTarget{
		{OrgID: "org-1", IntegrationID: "gh", Target: targets.Target{Owner: "vulnmap", Name: "goof", Branch: "main"}},
		{OrgID: "org-1", IntegrationID: "gl", Target: targets.Target{Name: "group/sub", Branch: "dev"}},
		{OrgID: "org-1", IntegrationID: "", Target: targets.Target{ProjectKey: "KEY", RepoSlug: "slug"}},
		{OrgID: "org-1", IntegrationID: "dh", Target: targets.Target{Name: "library/nginx:latest"}},
	}, res.Targets)
}

func TestGenerateIsolatesFailingOrg(t *testing.T) {
	// given
	orgA := vulnmap.Org{ID: "a", Name: "Org A", Slug: "org-a"}
	orgB := vulnmap.Org{ID: "b", Name: "Org B", Slug: "org-b"}
	orgC := vulnmap.Org{ID: "c"}
	src := &spySource{
		orgs: []vulnmap.Org{orgA, orgB, orgC},
		projects: map[string][]vulnmap.Project{
			"a": {proj("1", "x/a:package.json", "main", "github")},
			"c": {proj("2", "x/c:package.json", "main", "github")},
		},
		projectsErr:  map[string]error{"b": errors.New("Expected a 200 response")},
		integrations: map[string]map[string]string{"a": {"github": "ia"}, "b": {"github": "ib"}, "c": {"github": "ic"}},
	}
	sink := &recordingSink{}
	log := &recordingLogger{}

	// when
	res, err := Generate(context.Background(), Config{Client: src, Sink: sink, Log: log}, Scope{GroupID: "g"}, []targets.IntegrationType{targets.GitHub})

	// then
	require.NoError(t, err)
	assert.Equal(t, []string{"g"}, src.groupCalls)
	assert.Equal(t, []vulnmap.Org{orgB}, res.FailedOrgs)
	require.Len(t, res.Errors, 1)
	assert.ErrorContains(t, res.Errors[0], "org b")

	sortByOrg(res.Targets)
	assert.Equal(t, []targets.ImportTarget{
		{OrgID: "a", IntegrationID: "ia", Target: targets.Target{Owner: "x", Name: "a", Branch: "main"}},
		{OrgID: "c", IntegrationID: "ic", Target: targets.Target{Owner: "x", Name: "c", Branch: "main"}},
	}, res.Targets)
	assert.Contains(t, log.warns, "Failed to process projects for organization Org B(org-b). Continuing.")

	// every sink write carries the whole list accumulated so far
	require.Len(t, sink.calls, 2)
	assert.Len(t, sink.calls[0], 1)
	assert.Len(t, sink.calls[1], 2)
}

func TestGenerateFailedOrgWithoutNameUsesID(t *testing.T) {
	src := &spySource{
		projectsErr: map[string]error{"org-x": errors.New("boom")},
	}
	log := &recordingLogger{}

	res, err := Generate(context.Background(), Config{Client: src, Log: log}, Scope{OrgID: "org-x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []vulnmap.Org{{ID: "org-x"}}, res.FailedOrgs)
	assert.Contains(t, log.warns, "Failed to process projects for organization org-x. Continuing.")
	assert.Contains(t, log.warns, "No targets could be generated. Could the organization org-x be empty?")
}

func TestGenerateEmptyGroupWarns(t *testing.T) {
	src := &spySource{
		orgs:         []vulnmap.Org{{ID: "a"}},
		projects:     map[string][]vulnmap.Project{"a": {proj("1", "x/y:package.json", "", "gitlab")}},
		integrations: map[string]map[string]string{},
	}
	sink := &recordingSink{}
	log := &recordingLogger{}

	res, err := Generate(context.Background(), Config{Client: src, Sink: sink, Log: log}, Scope{GroupID: "g"}, []targets.IntegrationType{targets.GitHub})
	require.NoError(t, err)

	assert.Empty(t, res.Targets)
	assert.Empty(t, res.FailedOrgs)
	assert.Empty(t, sink.calls)
	assert.Contains(t, log.warns, "No projects in org a")
	assert.Contains(t, log.warns, "No targets could be generated. Could Vulnmap organizations in the group (g) be empty?")
}

func TestGenerateGroupListingFailureIsFatal(t *testing.T) {
	boom := errors.New("unauthorized")
	src := &spySource{orgsErr: boom}

	_, err := Generate(context.Background(), Config{Client: src}, Scope{GroupID: "g"}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, src.projectCalls)
}

func TestGenerateSinkFailureMarksOrgFailed(t *testing.T) {
	src := &spySource{
		projects:     map[string][]vulnmap.Project{"o": {proj("1", "x/y:package.json", "main", "github")}},
		integrations: map[string]map[string]string{"o": {"github": "gh"}},
	}
	sink := &recordingSink{err: errors.New("disk full")}

	res, err := Generate(context.Background(), Config{Client: src, Sink: sink}, Scope{OrgID: "o"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []vulnmap.Org{{ID: "o"}}, res.FailedOrgs)
	assert.Len(t, res.Targets, 1)
}

func TestGenerateBoundsConcurrency(t *testing.T) {
	var orgs []vulnmap.Org
	projects := map[string][]vulnmap.Project{}
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("org-%02d", i)
		orgs = append(orgs, vulnmap.Org{ID: id})
		projects[id] = []vulnmap.Project{proj("p", "x/"+id+":package.json", "main", "github")}
	}
	src := &spySource{orgs: orgs, projects: projects, delay: 5 * time.Millisecond}

	var done int32
	res, err := Generate(context.Background(), Config{
		Client:      src,
		Concurrency: 4,
		OnOrgDone:   func(vulnmap.Org, int) { atomic.AddInt32(&done, 1) },
	}, Scope{GroupID: "g"}, []targets.IntegrationType{targets.GitHub})
	require.NoError(t, err)

	assert.Len(t, res.Targets, 40)
	assert.EqualValues(t, 40, atomic.LoadInt32(&done))
	assert.LessOrEqual(t, atomic.LoadInt32(&src.maxInFlight), int32(4))
}

func TestGenerateWritesImportLog(t *testing.T) {
	dir := t.TempDir()
	src := &spySource{
		orgs: []vulnmap.Org{{ID: "a"}, {ID: "b"}},
		projects: map[string][]vulnmap.Project{
			"a": {proj("1", "x/a:package.json", "main", "github")},
			"b": {proj("2", "x/b:package.json", "main", "github")},
		},
		integrations: map[string]map[string]string{"a": {"github": "ia"}, "b": {"github": "ib"}},
	}

	res, err := Generate(context.Background(), Config{Client: src, Sink: &importlog.FileSink{Dir: dir}, LoggingPath: dir}, Scope{GroupID: "g"}, nil)
	require.NoError(t, err)

	written, err := importlog.ReadImportedTargets(res.FileName)
	require.NoError(t, err)
	sortByOrg(written)
	sortByOrg(res.Targets)
	assert.Equal(t, res.Targets, written)
}

func TestMultiSinkStopsAtFirstError(t *testing.T) {
	first := &recordingSink{err: errors.New("nope")}
	second := &recordingSink{}

	err := MultiSink{first, second}.Append(context.Background(), nil, "m")
	assert.EqualError(t, err, "nope")
	assert.Len(t, first.calls, 1)
	assert.Empty(t, second.calls)
}
