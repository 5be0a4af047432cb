package vulnmap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/khulnasoft-lab/vulnmap-api-import/internal/utils"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/pagination"
	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/whttp"
	"github.com/tidwall/gjson"
)

// ListProjects returns every project of the org matching filters,
// following links.next until the listing is exhausted.
func (c *Client) ListProjects(ctx context.Context, orgID string, filters ProjectFilters) (*ProjectsResponse, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, missingParams("orgId")
	}
	utils.Log.Debugf("Listing all projects for org: %s with filter %+v", orgID, filters)

	query := url.Values{}
	query.Set("version", restVersion)
	if filters.Name != "" {
		query.Set("name", filters.Name)
	}
	if filters.Origin != "" {
		query.Set("origin", filters.Origin)
	}
	if filters.Type != "" {
		query.Set("type", filters.Type)
	}
	if filters.TargetID != "" {
		query.Set("targetId", filters.TargetID)
	}
	if filters.IsMonitored != nil {
		query.Set("isMonitored", strconv.FormatBool(*filters.IsMonitored))
	}
	if filters.Limit > 0 {
		query.Set("limit", strconv.Itoa(filters.Limit))
	}

	pageCount := 0
	projects, err := pagination.All(ctx, "/orgs/"+url.PathEscape(orgID)+"/projects?"+query.Encode(),
		func(ctx context.Context, link string) (pagination.Page[Project], error) {
			pageCount++
			utils.Log.Debugf("Fetching page %d to list all projects for org %s", pageCount, orgID)
			body, err := c.do(ctx, &whttp.WHTTPReq{Method: http.MethodGet, URL: link, REST: true}, http.StatusOK, true)
			if err != nil {
				return pagination.Page[Project]{}, err
			}
			return projectsPage(body), nil
		})
	if err != nil {
		utils.Log.Debugf("Failed to get projects for %s: %v", orgID, err)
		return nil, err
	}

	return &ProjectsResponse{Org: Org{ID: orgID}, Projects: projects}, nil
}

func projectsPage(body string) pagination.Page[Project] {
	var page pagination.Page[Project]
	for _, item := range gjson.Get(body, "data").Array() {
		attrs := item.Get("attributes")
		branch := attrs.Get("targetReference").Str
		if branch == "" {
			branch = attrs.Get("target_reference").Str
		}
		page.Items = append(page.Items, Project{
			ID:      item.Get("id").Str,
			Name:    attrs.Get("name").Str,
			Branch:  branch,
			Created: attrs.Get("created").Str,
			Origin:  attrs.Get("origin").Str,
			Type:    attrs.Get("type").Str,
			Status:  attrs.Get("status").Str,
		})
	}
	page.Next = gjson.Get(body, "links.next").Str
	return page
}

// DeactivateProject stops monitoring a project without deleting it.
func (c *Client) DeactivateProject(ctx context.Context, orgID, projectID string) error {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" || projectID == "" {
		return missingParams("orgId & projectId")
	}
	utils.Log.Debugf("De-activating project: %s", projectID)

	_, err := c.do(ctx, &whttp.WHTTPReq{
		Method: http.MethodPost,
		URL:    "/org/" + url.PathEscape(orgID) + "/project/" + url.PathEscape(projectID) + "/deactivate",
		Body:   []byte("{}"),
	}, http.StatusOK, false)
	if err != nil {
		utils.Log.Debugf("Failed de-activating project %s: %v", projectID, err)
		return err
	}
	return nil
}

// UpdateProject changes the monitored branch of a project.
func (c *Client) UpdateProject(ctx context.Context, orgID, projectID string, update ProjectUpdate) (*Project, error) {
	orgID = strings.TrimSpace(orgID)
	projectID = strings.TrimSpace(projectID)
	if orgID == "" || projectID == "" {
		return nil, missingParams("orgId and projectId")
	}

	payload, err := json.Marshal(update)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, &whttp.WHTTPReq{
		Method: http.MethodPut,
		URL:    "/org/" + url.PathEscape(orgID) + "/project/" + url.PathEscape(projectID),
		Body:   payload,
	}, http.StatusOK, true)
	if err != nil {
		utils.Log.Debugf("Failed updating project: %s", projectID)
		return nil, err
	}

	p := gjson.Parse(body)
	utils.Log.Debugf("Updated project: %s", projectID)
	return &Project{
		ID:      p.Get("id").Str,
		Name:    p.Get("name").Str,
		Branch:  p.Get("branch").Str,
		Created: p.Get("created").Str,
		Origin:  p.Get("origin").Str,
		Type:    p.Get("type").Str,
		Status:  p.Get("status").Str,
	}, nil
}

// DeleteProjects removes projects in bulk. Projects the API could not
// delete are reported in the Failure list rather than as an error.
func (c *Client) DeleteProjects(ctx context.Context, orgID string, projectIDs []string) (*BulkDeleteResult, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" || len(projectIDs) == 0 {
		return nil, missingParams("orgId & projectIds")
	}
	utils.Log.Debugf("Deleting projectIds: %s", strings.Join(projectIDs, ", "))

	payload, err := json.Marshal(map[string][]string{"projects": projectIDs})
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, &whttp.WHTTPReq{
		Method: http.MethodPost,
		URL:    "/org/" + url.PathEscape(orgID) + "/projects/bulk-delete",
		Body:   payload,
	}, http.StatusOK, true)
	if err != nil {
		return nil, err
	}

	res := &BulkDeleteResult{}
	for _, r := range gjson.Get(body, "success").Array() {
		res.Success = append(res.Success, BulkProjectResult{PublicID: r.Get("publicId").Str, Name: r.Get("name").Str})
	}
	for _, r := range gjson.Get(body, "failure").Array() {
		res.Failure = append(res.Failure, BulkProjectResult{PublicID: r.Get("publicId").Str, Name: r.Get("name").Str})
	}
	return res, nil
}
