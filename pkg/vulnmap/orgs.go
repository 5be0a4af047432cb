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

// ListOrgsInGroup returns every org of the group.
func (c *Client) ListOrgsInGroup(ctx context.Context, groupID string) ([]Org, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, missingParams("groupId")
	}
	utils.Log.Debugf("Listing all orgs for group: %s", groupID)

	query := url.Values{}
	query.Set("version", groupsVersion)
	query.Set("limit", strconv.Itoa(PageLimit))

	return pagination.All(ctx, "/groups/"+url.PathEscape(groupID)+"/orgs?"+query.Encode(),
		func(ctx context.Context, link string) (pagination.Page[Org], error) {
			body, err := c.do(ctx, &whttp.WHTTPReq{Method: http.MethodGet, URL: link, REST: true}, http.StatusOK, true)
			if err != nil {
				return pagination.Page[Org]{}, err
			}
			var page pagination.Page[Org]
			for _, item := range gjson.Get(body, "data").Array() {
				page.Items = append(page.Items, Org{
					ID:   item.Get("id").Str,
					Name: item.Get("attributes.name").Str,
					Slug: item.Get("attributes.slug").Str,
				})
			}
			page.Next = gjson.Get(body, "links.next").Str
			return page, nil
		})
}

// ListIntegrations maps each integration origin configured in the org
// (github, gitlab, ...) to its integration id.
func (c *Client) ListIntegrations(ctx context.Context, orgID string) (map[string]string, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, missingParams("orgId")
	}
	utils.Log.Debugf("Listing integrations for org: %s", orgID)

	body, err := c.do(ctx, &whttp.WHTTPReq{
		Method: http.MethodGet,
		URL:    "/org/" + url.PathEscape(orgID) + "/integrations",
	}, http.StatusOK, true)
	if err != nil {
		return nil, err
	}

	integrations := make(map[string]string)
	gjson.Parse(body).ForEach(func(key, value gjson.Result) bool {
		integrations[key.String()] = value.String()
		return true
	})
	return integrations, nil
}

// SetNotificationPreferences replaces the org's notification settings.
func (c *Client) SetNotificationPreferences(ctx context.Context, orgID string, settings NotificationSettings) error {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return missingParams("orgId, settings")
	}
	if settings == nil {
		settings = DisabledNotifications()
	}
	utils.Log.Debugf("Updating notification settings for org: %s", orgID)

	payload, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, &whttp.WHTTPReq{
		Method: http.MethodPut,
		URL:    "/org/" + url.PathEscape(orgID) + "/notification-settings",
		Body:   payload,
	}, http.StatusOK, false)
	if err != nil {
		utils.Log.Debugf("Failed to update notification settings for %s: %v", orgID, err)
	}
	return err
}

// DeleteOrg removes the org and everything in it.
func (c *Client) DeleteOrg(ctx context.Context, orgID string) error {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return missingParams("orgId")
	}
	utils.Log.Debugf("Deleting org: %q", orgID)

	_, err := c.do(ctx, &whttp.WHTTPReq{
		Method: http.MethodDelete,
		URL:    "/org/" + url.PathEscape(orgID),
	}, http.StatusNoContent, false)
	return err
}
