package storage

import "github.com/khulnasoft-lab/vulnmap-api-import/pkg/targets"

// identityKey is the same key the import log is deduplicated on.
func identityKey(r targets.ImportTarget) string {
	return targets.GenerateTargetID(r.OrgID, r.IntegrationID, r.Target)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
