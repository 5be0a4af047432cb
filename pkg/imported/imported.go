// Package imported lists the targets already imported into Vulnmap for an
// org or a whole group, writing them to the import log as it goes.
package imported

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/importlog"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/targets"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/vulnmap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is how many orgs are processed at the same time.
const DefaultConcurrency = 15

// LogMessage tags every record written to the import log.
const LogMessage = "Target exists in Vulnmap"

var (
	ErrMissingScope  = errors.New("Missing required parameters: orgId or groupId must be provided.")
	ErrTooManyScopes = errors.New("Too many parameters: orgId or groupId must be provided, not both.")
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// OrgSource is the part of the Vulnmap API the listing needs.
type OrgSource interface {
	ListProjects(ctx context.Context, orgID string, filters vulnmap.ProjectFilters) (*vulnmap.ProjectsResponse, error)
	ListIntegrations(ctx context.Context, orgID string) (map[string]string, error)
	ListOrgsInGroup(ctx context.Context, groupID string) ([]vulnmap.Org, error)
}

// Sink receives the full list of targets found so far each time an org
// finishes. Implementations must tolerate being handed the same records
// again.
type Sink interface {
	Append(ctx context.Context, records []targets.ImportTarget, message string) error
}

// MultiSink forwards to every sink in order and stops at the first error.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, records []targets.ImportTarget, message string) error {
	for _, s := range m {
		if err := s.Append(ctx, records, message); err != nil {
			return err
		}
	}
	return nil
}

// Config holds everything Generate needs.
type Config struct {
	Client      OrgSource
	Sink        Sink
	LoggingPath string // resolved directory the import log lives in
	Concurrency int    // defaults to DefaultConcurrency if <= 0
	Log         Logger // optional; nil = no logging

	// OnOrgDone is called after each org has been written to the sink,
	// from worker goroutines. Nil = no callback.
	OnOrgDone func(org vulnmap.Org, added int)
}

// Scope selects what to list. Exactly one field must be set.
type Scope struct {
	GroupID string
	OrgID   string
}

func (s Scope) validate() error {
	if s.GroupID == "" && s.OrgID == "" {
		return ErrMissingScope
	}
	if s.GroupID != "" && s.OrgID != "" {
		return ErrTooManyScopes
	}
	return nil
}

// Result is the outcome of a listing.
type Result struct {
	Targets    []targets.ImportTarget
	FileName   string
	FailedOrgs []vulnmap.Org
	Errors     []error // one per failed org
}

// Generate lists the imported targets of every org in scope. A failing org
// is recorded in FailedOrgs and does not stop the others; only an invalid
// scope or a failure to list the group's orgs is returned as an error.
func Generate(ctx context.Context, cfg Config, scope Scope, integrationTypes []targets.IntegrationType) (*Result, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	if len(integrationTypes) == 0 {
		integrationTypes = targets.AllIntegrationTypes()
	}
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	orgs := []vulnmap.Org{{ID: scope.OrgID}}
	if scope.GroupID != "" {
		var err error
		orgs, err = cfg.Client.ListOrgsInGroup(ctx, scope.GroupID)
		if err != nil {
			return nil, err
		}
	}

	result := &Result{
		Targets:    []targets.ImportTarget{},
		FileName:   filepath.Join(cfg.LoggingPath, importlog.ImportLogName),
		FailedOrgs: []vulnmap.Org{},
	}
	processOrgsConcurrently(ctx, cfg, orgs, integrationTypes, concurrency, log, result)

	if len(result.Targets) == 0 {
		log.Debugf("No targets could be generated. Could Vulnmap Group have no projects?")
		message := fmt.Sprintf("Could the organization %s be empty?", scope.OrgID)
		if scope.GroupID != "" {
			message = fmt.Sprintf("Could Vulnmap organizations in the group (%s) be empty?", scope.GroupID)
		}
		log.Warnf("No targets could be generated. %s", message)
	}
	return result, nil
}

// projectFilters asks the API to filter by origin when only one type is
// wanted; several types are filtered client side.
func projectFilters(integrationTypes []targets.IntegrationType) vulnmap.ProjectFilters {
	if len(integrationTypes) > 1 {
		return vulnmap.ProjectFilters{Limit: vulnmap.PageLimit}
	}
	return vulnmap.ProjectFilters{Origin: string(integrationTypes[0]), Limit: vulnmap.PageLimit}
}

// processOrgsConcurrently runs processOneOrg for every org, at most
// concurrency at a time. Appending to result and writing the sink happen
// under one lock so each sink write sees every target accepted before it.
func processOrgsConcurrently(
	ctx context.Context,
	cfg Config,
	orgs []vulnmap.Org,
	integrationTypes []targets.IntegrationType,
	concurrency int,
	log Logger,
	result *Result,
) {
	var mu sync.Mutex
	filters := projectFilters(integrationTypes)

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for _, org := range orgs {
		org := org
		g.Go(func() error {
			added, err := processOneOrg(ctx, cfg, org, filters, integrationTypes, log, func(orgTargets []targets.ImportTarget) error {
				mu.Lock()
				defer mu.Unlock()
				result.Targets = append(result.Targets, orgTargets...)
				if cfg.Sink == nil {
					return nil
				}
				return cfg.Sink.Append(ctx, result.Targets, LogMessage)
			})
			if err != nil {
				mu.Lock()
				result.FailedOrgs = append(result.FailedOrgs, org)
				result.Errors = append(result.Errors, fmt.Errorf("org %s: %w", org.ID, err))
				mu.Unlock()
				log.Debugf("Org %s failed: %v", org.ID, err)
				log.Warnf("Failed to process projects for organization %s. Continuing.", org.Label())
				return nil
			}
			if cfg.OnOrgDone != nil {
				cfg.OnOrgDone(org, added)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// processOneOrg fetches an org's projects and integrations, turns matching
// projects into unique targets and hands them to accept. It returns how
// many targets were accepted.
func processOneOrg(
	ctx context.Context,
	cfg Config,
	org vulnmap.Org,
	filters vulnmap.ProjectFilters,
	integrationTypes []targets.IntegrationType,
	log Logger,
	accept func([]targets.ImportTarget) error,
) (int, error) {
	var (
		projects     *vulnmap.ProjectsResponse
		integrations map[string]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		projects, err = cfg.Client.ListProjects(gctx, org.ID, filters)
		return err
	})
	g.Go(func() (err error) {
		integrations, err = cfg.Client.ListIntegrations(gctx, org.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	wanted := make(map[string]targets.IntegrationType, len(integrationTypes))
	for _, t := range integrationTypes {
		wanted[string(t)] = t
	}

	var candidates []targets.Candidate
	for _, p := range projects.Projects {
		it, ok := wanted[p.Origin]
		if !ok {
			continue
		}
		target, err := targets.Normalize(it, targets.ProjectRef{Name: p.Name, Branch: p.Branch})
		if err != nil {
			return 0, err
		}
		integrationID, found := integrations[p.Origin]
		if !found {
			log.Debugf("No %s integration found in org %s for project %s", p.Origin, org.ID, p.ID)
		}
		candidates = append(candidates, targets.Candidate{Target: target, IntegrationID: integrationID})
	}

	if len(candidates) == 0 {
		log.Warnf("No projects in org %s", org.ID)
		return 0, nil
	}

	unique := targets.Dedupe(org.ID, candidates)
	log.Infof("Extracted %d unique targets from %d projects from org %s", len(unique), len(candidates), org.ID)

	if err := accept(unique); err != nil {
		return 0, err
	}
	return len(unique), nil
}
