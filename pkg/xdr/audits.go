package xdr

import "context"

// MaxAuditPage is the largest page the audit endpoints serve.
const MaxAuditPage = 100

// ManagementLogSortFields maps user-facing sort names to API fields.
var ManagementLogSortFields = map[string]string{
	"type":      "AUDIT_ENTITY",
	"sub_type":  "AUDIT_ENTITY_SUBTYPE",
	"result":    "AUDIT_RESULT",
	"timestamp": "AUDIT_INSERT_TIME",
	"email":     "AUDIT_OWNER_EMAIL",
}

// AgentReportSortFields maps user-facing sort names to API fields.
var AgentReportSortFields = map[string]string{
	"type":         "TYPE",
	"category":     "CATEGORY",
	"trapsversion": "TRAPSVERSION",
	"timestamp":    "TIMESTAMP",
	"domain":       "DOMAIN",
}

// ManagementLogQuery filters audits/management_logs.
type ManagementLogQuery struct {
	Emails    []string
	Types     []string
	SubTypes  []string
	Results   []string
	After     int64
	Before    int64
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// AgentReportQuery filters audits/agents_reports.
type AgentReportQuery struct {
	EndpointIDs   []string
	EndpointNames []string
	Types         []string
	SubTypes      []string
	Results       []string
	After         int64
	Before        int64
	Page          int
	Limit         int
	SortBy        string
	SortOrder     string
}

// GetAuditManagementLogs returns management audit log entries.
func (c *Client) GetAuditManagementLogs(ctx context.Context, q ManagementLogQuery) ([]Record, error) {
	var b filterBuilder
	b.in("AUDIT_OWNER_EMAIL", q.Emails)
	b.in("AUDIT_ENTITY", q.Types)
	b.in("AUDIT_ENTITY_SUBTYPE", q.SubTypes)
	b.in("AUDIT_RESULT", q.Results)
	b.gte("AUDIT_INSERT_TIME", q.After)
	b.lte("AUDIT_INSERT_TIME", q.Before)
	return c.audit(ctx, "audits/management_logs/", b, q.Page, q.Limit, ManagementLogSortFields[q.SortBy], q.SortOrder)
}

// GetAuditAgentReports returns agent audit reports.
func (c *Client) GetAuditAgentReports(ctx context.Context, q AgentReportQuery) ([]Record, error) {
	var b filterBuilder
	b.in("ENDPOINTID", q.EndpointIDs)
	b.in("ENDPOINTNAME", q.EndpointNames)
	b.in("TYPE", q.Types)
	b.in("SUBTYPE", q.SubTypes)
	b.in("RESULT", q.Results)
	b.gte("TIMESTAMP", q.After)
	b.lte("TIMESTAMP", q.Before)
	return c.audit(ctx, "audits/agents_reports/", b, q.Page, q.Limit, AgentReportSortFields[q.SortBy], q.SortOrder)
}

func (c *Client) audit(ctx context.Context, path string, filters []Filter, page, limit int, sortField, sortOrder string) ([]Record, error) {
	from, to := pageBounds(page, limit, MaxAuditPage)
	req := map[string]interface{}{
		"search_from": from,
		"search_to":   to,
	}
	if len(filters) > 0 {
		req["filters"] = filters
	}
	if sortField != "" {
		if sortOrder == "" {
			sortOrder = "desc"
		}
		req["sort"] = Sort{Field: sortField, Keyword: sortOrder}
	}
	var reply Collection
	if err := c.Post(ctx, path, req, &reply); err != nil {
		return nil, err
	}
	return reply.Data, nil
}
