// Package projectdiff compares the manifests found in a repository with the
// projects Vulnmap already monitors for it.
package projectdiff

import (
	"strings"

	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/manifests"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/vulnmap"
)

const (
	statusInactive = "inactive"
	typeSAST       = "sast"
)

// Actions is what it takes to bring Vulnmap in line with the repository.
type Actions struct {
	// Import lists repository manifests with no project yet.
	Import []string
	// Remove lists projects whose manifest is gone from the repository.
	Remove []vulnmap.Project
}

// Generate computes the actions for one repository. Only projects whose
// type is in manifestTypes are ever removed; an empty manifestTypes means
// manifests.DefaultTypes(). Inactive and sast projects are never removed,
// and neither are projects whose name carries no file path.
func Generate(repoManifests []string, projects []vulnmap.Project, manifestTypes []string) Actions {
	if len(manifestTypes) == 0 {
		manifestTypes = manifests.DefaultTypes()
	}
	types := make(map[string]bool, len(manifestTypes))
	for _, t := range manifestTypes {
		types[t] = true
	}

	tracked := make(map[string]bool, len(projects))
	for _, p := range projects {
		if file, ok := manifestPath(p); ok {
			tracked[file] = true
		}
	}
	inRepo := make(map[string]bool, len(repoManifests))
	for _, m := range repoManifests {
		inRepo[m] = true
	}

	var actions Actions
	for _, m := range repoManifests {
		if !tracked[m] {
			actions.Import = append(actions.Import, m)
		}
	}

	for _, p := range projects {
		if p.Status == statusInactive || p.Type == typeSAST {
			continue
		}
		file, ok := manifestPath(p)
		if !ok || file == "" {
			continue
		}
		if !inRepo[file] && types[p.Type] {
			actions.Remove = append(actions.Remove, p)
		}
	}
	return actions
}

// manifestPath returns what follows the first ":" of the project name.
func manifestPath(p vulnmap.Project) (string, bool) {
	_, file, ok := strings.Cut(p.Name, ":")
	return file, ok
}
