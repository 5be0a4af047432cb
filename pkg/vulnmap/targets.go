package vulnmap

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/khulnasoft-lab/vulnmap-api-import/internal/utils"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/pagination"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/whttp"
	"github.com/tidwall/gjson"
)

// ListTargets returns every target of the org matching filters.
func (c *Client) ListTargets(ctx context.Context, orgID string, filters TargetFilters) ([]TargetRecord, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, missingParams("orgId")
	}
	utils.Log.Debugf("Listing all targets for org: %s", orgID)

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	excludeEmpty := true
	if filters.ExcludeEmpty != nil {
		excludeEmpty = *filters.ExcludeEmpty
	}

	query := url.Values{}
	query.Set("version", restVersion)
	query.Set("limit", strconv.Itoa(limit))
	query.Set("excludeEmpty", strconv.FormatBool(excludeEmpty))
	if filters.Origin != "" {
		query.Set("origin", filters.Origin)
	}
	if filters.DisplayName != "" {
		query.Set("displayName", filters.DisplayName)
	}
	if filters.RemoteURL != "" {
		query.Set("remoteUrl", filters.RemoteURL)
	}
	if filters.IsPrivate != nil {
		query.Set("isPrivate", strconv.FormatBool(*filters.IsPrivate))
	}

	pageCount := 0
	return pagination.All(ctx, "/orgs/"+url.PathEscape(orgID)+"/targets?"+query.Encode(),
		func(ctx context.Context, link string) (pagination.Page[TargetRecord], error) {
			pageCount++
			utils.Log.Debugf("Fetching page %d of targets for orgId: %s", pageCount, orgID)
			body, err := c.do(ctx, &whttp.WHTTPReq{Method: http.MethodGet, URL: link, REST: true}, http.StatusOK, true)
			if err != nil {
				return pagination.Page[TargetRecord]{}, err
			}
			var page pagination.Page[TargetRecord]
			for _, item := range gjson.Get(body, "data").Array() {
				attrs := item.Get("attributes")
				page.Items = append(page.Items, TargetRecord{
					ID:          item.Get("id").Str,
					DisplayName: attrs.Get("displayName").Str,
					Origin:      attrs.Get("origin").Str,
					RemoteURL:   attrs.Get("remoteUrl").Str,
					IsPrivate:   attrs.Get("isPrivate").Bool(),
				})
			}
			page.Next = gjson.Get(body, "links.next").Str
			return page, nil
		})
}
