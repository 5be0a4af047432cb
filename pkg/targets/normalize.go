package targets

import (
	"fmt"
	"strings"
)

// ProjectRef is the part of a project a target is derived from.
type ProjectRef struct {
	Name   string
	Branch string
}

// Normalize maps a project to the target shape of its integration type.
func Normalize(t IntegrationType, p ProjectRef) (Target, error) {
	switch t {
	case GitHub, GitHubEnterprise, BitbucketCloud, AzureRepos:
		return RepoTarget(p), nil
	case GitLab:
		return GitlabTarget(p), nil
	case BitbucketServer:
		return BitbucketServerTarget(p), nil
	case GCR, DockerHub:
		return ImageTarget(p), nil
	default:
		return Target{}, fmt.Errorf("no target mapping for integration type %q", t)
	}
}

// RepoTarget splits "owner/name(branch):path" into owner and name.
// A name without "/" leaves Name empty.
func RepoTarget(p ProjectRef) Target {
	owner, name := splitPair(repoPart(p.Name))
	return Target{
		Owner:  owner,
		Name:   stripBranchSuffix(name),
		Branch: p.Branch,
	}
}

// GitlabTarget keeps "owner/repo" together as the name. The Gitlab
// integration addresses repos by numeric id which the API does not return,
// so the full path is the only thing a later import can match on.
func GitlabTarget(p ProjectRef) Target {
	return Target{
		Name:   repoPart(p.Name),
		Branch: p.Branch,
	}
}

// BitbucketServerTarget splits "KEY/slug(branch):path" into project key and
// repo slug.
func BitbucketServerTarget(p ProjectRef) Target {
	key, slug := splitPair(repoPart(p.Name))
	return Target{
		ProjectKey: key,
		RepoSlug:   stripBranchSuffix(slug),
	}
}

// ImageTarget uses the project name as is; the tag is part of the identity.
func ImageTarget(p ProjectRef) Target {
	return Target{Name: p.Name}
}

func repoPart(name string) string {
	before, _, _ := strings.Cut(name, ":")
	return before
}

// splitPair returns the first two "/"-separated segments.
func splitPair(s string) (string, string) {
	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func stripBranchSuffix(s string) string {
	before, _, _ := strings.Cut(s, "(")
	return before
}
