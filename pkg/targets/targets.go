// Package targets turns Vulnmap projects into the canonical target
// identities recorded in the import log, and deduplicates them.
package targets

import (
	"fmt"
	"strings"
)

// IntegrationType is the origin of a project: the SCM or registry
// integration it was imported through.
type IntegrationType string

const (
	GitHub           IntegrationType = "github"
	GitHubEnterprise IntegrationType = "github-enterprise"
	BitbucketCloud   IntegrationType = "bitbucket-cloud"
	GCR              IntegrationType = "gcr"
	DockerHub        IntegrationType = "docker-hub"
	GitLab           IntegrationType = "gitlab"
	AzureRepos       IntegrationType = "azure-repos"
	BitbucketServer  IntegrationType = "bitbucket-server"
)

var allIntegrationTypes = []IntegrationType{
	GitHub, GitHubEnterprise, BitbucketCloud, GCR, DockerHub, GitLab, AzureRepos, BitbucketServer,
}

// AllIntegrationTypes lists every integration type targets can be listed for.
func AllIntegrationTypes() []IntegrationType {
	out := make([]IntegrationType, len(allIntegrationTypes))
	copy(out, allIntegrationTypes)
	return out
}

// ParseIntegrationType validates an integration type name.
func ParseIntegrationType(s string) (IntegrationType, error) {
	for _, t := range allIntegrationTypes {
		if string(t) == s {
			return t, nil
		}
	}
	names := make([]string, len(allIntegrationTypes))
	for i, t := range allIntegrationTypes {
		names[i] = string(t)
	}
	return "", fmt.Errorf("unsupported integration type %q, choices: %s", s, strings.Join(names, ", "))
}

// IsImage reports whether the integration imports container images rather
// than repositories.
func (t IntegrationType) IsImage() bool {
	return t == GCR || t == DockerHub
}

// Target identifies something that can be imported. Which fields are set
// depends on the integration type:
//
//	github, github-enterprise, bitbucket-cloud, azure-repos: Owner, Name, Branch
//	gitlab:                                                   Name ("owner/repo"), Branch
//	bitbucket-server:                                         ProjectKey, RepoSlug
//	gcr, docker-hub:                                          Name (full image name)
type Target struct {
	Name       string `json:"name,omitempty"`
	Owner      string `json:"owner,omitempty"`
	Branch     string `json:"branch,omitempty"`
	ProjectKey string `json:"projectKey,omitempty"`
	RepoSlug   string `json:"repoSlug,omitempty"`
}

// ImportTarget is one record of the import log.
type ImportTarget struct {
	OrgID          string   `json:"orgId"`
	IntegrationID  string   `json:"integrationId"`
	Target         Target   `json:"target"`
	Files          []string `json:"files,omitempty"`
	ExclusionGlobs string   `json:"exclusionGlobs,omitempty"`
}
