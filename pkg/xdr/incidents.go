package xdr

import (
	"context"
	"encoding/json"
	"fmt"
)

// MaxIncidentsPage is the largest page the incidents endpoint serves.
const MaxIncidentsPage = 100

// Incident sort fields.
const (
	SortByModificationTime = "modification_time"
	SortByCreationTime     = "creation_time"
)

// IncidentFilter narrows get_incidents. Zero timestamps (epoch milliseconds)
// are not sent.
type IncidentFilter struct {
	IDs            []string
	ModifiedAfter  int64
	ModifiedBefore int64
	CreatedAfter   int64
	CreatedBefore  int64
	SortBy         string
	SortOrder      string
	Page           int
	Limit          int
}

func (f IncidentFilter) requestData() map[string]interface{} {
	var b filterBuilder
	b.in("incident_id_list", f.IDs)
	b.lte("modification_time", f.ModifiedBefore)
	b.gte("modification_time", f.ModifiedAfter)
	b.lte("creation_time", f.CreatedBefore)
	b.gte("creation_time", f.CreatedAfter)

	from, to := pageBounds(f.Page, f.Limit, MaxIncidentsPage)
	data := map[string]interface{}{
		"search_from": from,
		"search_to":   to,
	}
	if len(b) > 0 {
		data["filters"] = []Filter(b)
	}
	if f.SortBy != "" {
		order := f.SortOrder
		if order == "" {
			order = "asc"
		}
		data["sort"] = Sort{Field: f.SortBy, Keyword: order}
	}
	return data
}

type incidentsReply struct {
	TotalCount  json.Number `json:"total_count"`
	ResultCount json.Number `json:"result_count"`
	Incidents   []Record    `json:"incidents"`
}

// GetIncidents returns a single page of incident summaries.
func (c *Client) GetIncidents(ctx context.Context, f IncidentFilter) ([]Record, error) {
	var reply incidentsReply
	if err := c.Post(ctx, "incidents/get_incidents/", f.requestData(), &reply); err != nil {
		return nil, err
	}
	return reply.Incidents, nil
}

// GetAllIncidents requests full pages until the API returns a short page.
// A positive limit caps the number of incidents returned.
func (c *Client) GetAllIncidents(ctx context.Context, f IncidentFilter, limit int) ([]Record, error) {
	var all []Record
	f.Limit = MaxIncidentsPage
	for page := 0; ; page++ {
		f.Page = page
		batch, err := c.GetIncidents(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		all = append(all, batch...)
		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
		if len(batch) < MaxIncidentsPage {
			return all, nil
		}
	}
}

// IncidentExtraData is the get_incident_extra_data reply: the incident and
// its keyed sub-collections. Absent sub-collections decode as nil.
type IncidentExtraData struct {
	Incident         Record      `json:"incident"`
	Alerts           *Collection `json:"alerts"`
	NetworkArtifacts *Collection `json:"network_artifacts"`
	FileArtifacts    *Collection `json:"file_artifacts"`
}

// GetIncidentExtraData fetches an incident with its alerts and artifacts.
func (c *Client) GetIncidentExtraData(ctx context.Context, incidentID string, alertsLimit int) (*IncidentExtraData, error) {
	if alertsLimit <= 0 {
		alertsLimit = 1000
	}
	req := map[string]interface{}{
		"incident_id":  incidentID,
		"alerts_limit": alertsLimit,
	}
	var reply IncidentExtraData
	if err := c.Post(ctx, "incidents/get_incident_extra_data/", req, &reply); err != nil {
		return nil, err
	}
	if reply.Incident == nil {
		return nil, fmt.Errorf("incident %s: reply has no incident object", incidentID)
	}
	return &reply, nil
}

// IncidentUpdate holds the mutable incident fields. Empty fields are left
// untouched.
type IncidentUpdate struct {
	AssignedUserMail       string
	AssignedUserPrettyName string
	Status                 string
	ManualSeverity         string
	ResolveComment         string
	// UnassignUser clears the assignee and overrides AssignedUserMail.
	UnassignUser bool
}

func (u IncidentUpdate) updateData() map[string]interface{} {
	data := map[string]interface{}{}
	set := func(k, v string) {
		if v != "" {
			data[k] = v
		}
	}
	set("assigned_user_mail", u.AssignedUserMail)
	set("assigned_user_pretty_name", u.AssignedUserPrettyName)
	set("status", u.Status)
	set("manual_severity", u.ManualSeverity)
	set("resolve_comment", u.ResolveComment)
	if u.UnassignUser {
		data["assigned_user_mail"] = "none"
	}
	return data
}

// UpdateIncident partially updates a remote incident.
func (c *Client) UpdateIncident(ctx context.Context, incidentID string, u IncidentUpdate) error {
	req := map[string]interface{}{
		"incident_id": incidentID,
		"update_data": u.updateData(),
	}
	return c.Post(ctx, "incidents/update_incident/", req, nil)
}
