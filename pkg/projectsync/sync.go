// Package projectsync brings the projects Vulnmap monitors for one target
// in line with the manifests of a local checkout of that target.
package projectsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/importlog"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/manifests"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/projectdiff"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/vulnmap"
	"golang.org/x/sync/errgroup"
)

// Mode says what to do with projects whose manifest is gone.
type Mode string

const (
	DryRun     Mode = "dry-run"
	Deactivate Mode = "deactivate"
	Delete     Mode = "delete"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case DryRun, Deactivate, Delete:
		return m, nil
	}
	return "", fmt.Errorf("unknown sync mode %q, choices: %s, %s, %s", s, DryRun, Deactivate, Delete)
}

const defaultConcurrency = 15

// Client is the part of the Vulnmap API a sync needs.
type Client interface {
	ListTargets(ctx context.Context, orgID string, filters vulnmap.TargetFilters) ([]vulnmap.TargetRecord, error)
	ListProjects(ctx context.Context, orgID string, filters vulnmap.ProjectFilters) (*vulnmap.ProjectsResponse, error)
	DeactivateProject(ctx context.Context, orgID, projectID string) error
	DeleteProjects(ctx context.Context, orgID string, projectIDs []string) (*vulnmap.BulkDeleteResult, error)
	UpdateProject(ctx context.Context, orgID, projectID string, update vulnmap.ProjectUpdate) (*vulnmap.Project, error)
}

// Logger is the logging surface used during a sync.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

type Config struct {
	Client        Client
	OrgID         string
	TargetName    string   // display name of the target, e.g. "owner/repo"
	RepoPath      string   // local checkout of the target
	ManifestTypes []string // defaults to manifests.DefaultTypes()
	Branch        string   // when set, projects are moved to this branch
	Mode          Mode
	LoggingPath   string // failed mutations are logged here when set
	Concurrency   int
	Log           Logger
}

// Failure is a mutation that did not go through.
type Failure struct {
	ProjectID string
	Action    string
	Err       error
}

type Result struct {
	Target      vulnmap.TargetRecord
	Actions     projectdiff.Actions
	Deactivated []string
	Deleted     []string
	Updated     []string
	Failed      []Failure
}

// Run compares the target's projects with the manifests in RepoPath and,
// unless in dry-run mode, removes the projects that no longer have one.
// Failing mutations are recorded and do not stop the others.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.OrgID == "" || cfg.TargetName == "" {
		return nil, errors.New("Missing required parameters: orgId and target must be provided.")
	}
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	if cfg.Mode == "" {
		cfg.Mode = DryRun
	}
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	types := cfg.ManifestTypes
	if len(types) == 0 {
		types = manifests.DefaultTypes()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	target, err := findTarget(ctx, cfg.Client, cfg.OrgID, cfg.TargetName)
	if err != nil {
		return nil, err
	}

	res, err := cfg.Client.ListProjects(ctx, cfg.OrgID, vulnmap.ProjectFilters{TargetID: target.ID, Limit: vulnmap.PageLimit})
	if err != nil {
		return nil, err
	}
	repoManifests, err := manifests.Find(cfg.RepoPath, types)
	if err != nil {
		return nil, fmt.Errorf("could not scan %s for manifests: %w", cfg.RepoPath, err)
	}
	log.Debugf("Found %d manifests in %s and %d projects for target %s", len(repoManifests), cfg.RepoPath, len(res.Projects), target.DisplayName)

	result := &Result{
		Target:  target,
		Actions: projectdiff.Generate(repoManifests, res.Projects, types),
	}
	if cfg.Mode == DryRun {
		return result, nil
	}

	s := &syncer{cfg: cfg, log: log, target: target, result: result}
	switch cfg.Mode {
	case Deactivate:
		s.deactivate(ctx, concurrency)
	case Delete:
		s.delete(ctx)
	}
	if cfg.Branch != "" {
		s.updateBranches(ctx, res.Projects, concurrency)
	}
	return result, nil
}

func findTarget(ctx context.Context, c Client, orgID, name string) (vulnmap.TargetRecord, error) {
	found, err := c.ListTargets(ctx, orgID, vulnmap.TargetFilters{DisplayName: name})
	if err != nil {
		return vulnmap.TargetRecord{}, err
	}
	for _, t := range found {
		if t.DisplayName == name {
			return t, nil
		}
	}
	return vulnmap.TargetRecord{}, fmt.Errorf("no target named %q in org %s", name, orgID)
}

type syncer struct {
	cfg    Config
	log    Logger
	target vulnmap.TargetRecord

	mu     sync.Mutex
	result *Result
}

func (s *syncer) fail(projectID, action string, err error) {
	s.mu.Lock()
	s.result.Failed = append(s.result.Failed, Failure{ProjectID: projectID, Action: action, Err: err})
	s.mu.Unlock()

	s.log.Warnf("Failed to %s project %s: %v", action, projectID, err)
	if s.cfg.LoggingPath == "" {
		return
	}
	if lerr := importlog.LogFailedSync(s.cfg.LoggingPath, s.cfg.OrgID, s.target, fmt.Sprintf("%s %s: %v", action, projectID, err)); lerr != nil {
		s.log.Debugf("Failed to log failed sync for %s: %v", projectID, lerr)
	}
}

func (s *syncer) deactivate(ctx context.Context, concurrency int) {
	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for _, p := range s.result.Actions.Remove {
		p := p
		g.Go(func() error {
			if err := s.cfg.Client.DeactivateProject(ctx, s.cfg.OrgID, p.ID); err != nil {
				s.fail(p.ID, "deactivate", err)
				return nil
			}
			s.mu.Lock()
			s.result.Deactivated = append(s.result.Deactivated, p.ID)
			s.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func (s *syncer) delete(ctx context.Context) {
	if len(s.result.Actions.Remove) == 0 {
		return
	}
	ids := make([]string, 0, len(s.result.Actions.Remove))
	for _, p := range s.result.Actions.Remove {
		ids = append(ids, p.ID)
	}

	res, err := s.cfg.Client.DeleteProjects(ctx, s.cfg.OrgID, ids)
	if err != nil {
		for _, id := range ids {
			s.fail(id, "delete", err)
		}
		return
	}
	for _, ok := range res.Success {
		s.result.Deleted = append(s.result.Deleted, ok.PublicID)
	}
	for _, bad := range res.Failure {
		s.fail(bad.PublicID, "delete", fmt.Errorf("bulk delete rejected %s", bad.Name))
	}
}

// updateBranches moves every still monitored project that is not being
// removed onto cfg.Branch.
func (s *syncer) updateBranches(ctx context.Context, projects []vulnmap.Project, concurrency int) {
	removed := make(map[string]bool, len(s.result.Actions.Remove))
	for _, p := range s.result.Actions.Remove {
		removed[p.ID] = true
	}

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for _, p := range projects {
		if removed[p.ID] || strings.EqualFold(p.Status, "inactive") || p.Branch == s.cfg.Branch {
			continue
		}
		p := p
		g.Go(func() error {
			if _, err := s.cfg.Client.UpdateProject(ctx, s.cfg.OrgID, p.ID, vulnmap.ProjectUpdate{Branch: s.cfg.Branch}); err != nil {
				s.fail(p.ID, "update", err)
				return nil
			}
			s.mu.Lock()
			s.result.Updated = append(s.result.Updated, p.ID)
			s.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}
