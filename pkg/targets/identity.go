package targets

import "strings"

// GenerateTargetID builds the key used to tell targets apart:
// "<orgId>:<integrationId>:" followed by the set target fields in the order
// name, owner, branch, projectKey, repoSlug.
func GenerateTargetID(orgID, integrationID string, t Target) string {
	parts := []string{orgID, integrationID}
	for _, v := range []string{t.Name, t.Owner, t.Branch, t.ProjectKey, t.RepoSlug} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ":")
}

// Candidate is a normalized target before deduplication.
type Candidate struct {
	Target        Target
	IntegrationID string
}

// Dedupe keeps the first candidate for every identity key, preserving
// input order.
func Dedupe(orgID string, candidates []Candidate) []ImportTarget {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]ImportTarget, 0, len(candidates))
	for _, c := range candidates {
		id := GenerateTargetID(orgID, c.IntegrationID, c.Target)
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, ImportTarget{
			OrgID:         orgID,
			IntegrationID: c.IntegrationID,
			Target:        c.Target,
		})
	}
	return out
}
