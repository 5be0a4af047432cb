package vulnmap

// Project is a project as tracked by Vulnmap. Name encodes
// "<owner>/<repo>:<path>", optionally with a "(branch)" suffix before the
// colon; Gitlab project names may carry no path at all.
type Project struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Branch  string `json:"branch,omitempty"`
	Created string `json:"created,omitempty"`
	Origin  string `json:"origin"`
	Type    string `json:"type"`
	Status  string `json:"status,omitempty"`
}

// Org is an organization. Name and Slug are only known when the org came
// from a group listing.
type Org struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Slug string `json:"slug,omitempty"`
}

// Label identifies the org in user-facing messages.
func (o Org) Label() string {
	if o.Name != "" && o.Slug != "" {
		return o.Name + "(" + o.Slug + ")"
	}
	return o.ID
}

// TargetRecord is a target as returned by the REST targets listing.
type TargetRecord struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Origin      string `json:"origin,omitempty"`
	RemoteURL   string `json:"remoteUrl,omitempty"`
	IsPrivate   bool   `json:"isPrivate"`
}

// ProjectsResponse is the full project listing of one org.
type ProjectsResponse struct {
	Org      Org
	Projects []Project
}

// ProjectFilters narrow a project listing. Zero values are not sent.
type ProjectFilters struct {
	Name        string // prefix match on project name
	Origin      string
	Type        string
	TargetID    string
	IsMonitored *bool
	Limit       int
}

// TargetFilters narrow a target listing. A zero Limit means 20 and a nil
// ExcludeEmpty means true.
type TargetFilters struct {
	RemoteURL    string
	DisplayName  string
	Origin       string
	IsPrivate    *bool
	ExcludeEmpty *bool
	Limit        int
}

// ProjectUpdate holds the mutable project attributes.
type ProjectUpdate struct {
	Branch string `json:"branch"`
}

// BulkProjectResult names one project in a bulk operation response.
type BulkProjectResult struct {
	PublicID string `json:"publicId"`
	Name     string `json:"name"`
}

// BulkDeleteResult splits a bulk delete into what worked and what did not.
type BulkDeleteResult struct {
	Success []BulkProjectResult `json:"success"`
	Failure []BulkProjectResult `json:"failure"`
}

// NotificationSetting configures one notification kind for an org.
type NotificationSetting struct {
	Enabled       bool   `json:"enabled"`
	IssueType     string `json:"issueType,omitempty"`
	IssueSeverity string `json:"issueSeverity,omitempty"`
}

// NotificationSettings maps a notification kind to its setting.
type NotificationSettings map[string]NotificationSetting

// DisabledNotifications turns every org notification off.
func DisabledNotifications() NotificationSettings {
	return NotificationSettings{
		"new-issues-remediations": {Enabled: false, IssueType: "none", IssueSeverity: "high"},
		"project-imported":        {Enabled: false},
		"test-limit":              {Enabled: false},
		"weekly-report":           {Enabled: false},
	}
}
