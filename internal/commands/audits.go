package commands

import (
	"context"

	"github.com/invisible-tech/xdr-responder/internal/markdown"
	"github.com/invisible-tech/xdr-responder/internal/outputs"
	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

const defaultAuditLimit = 30

var managementLogHeaders = []string{
	"AUDIT_ID", "AUDIT_RESULT", "AUDIT_DESCRIPTION", "AUDIT_OWNER_NAME", "AUDIT_OWNER_EMAIL",
	"AUDIT_ASSET_JSON", "AUDIT_ASSET_NAMES", "AUDIT_HOSTNAME", "AUDIT_REASON", "AUDIT_ENTITY",
	"AUDIT_ENTITY_SUBTYPE", "AUDIT_SESSION_ID", "AUDIT_CASE_ID", "AUDIT_INSERT_TIME",
}

var agentReportHeaders = []string{
	"ENDPOINTID", "ENDPOINTNAME", "DOMAIN", "TRAPSVERSION", "RECEIVEDTIME", "TIMESTAMP",
	"CATEGORY", "TYPE", "SUBTYPE", "RESULT", "REASON", "DESCRIPTION",
}

type managementLogsInput struct {
	Emails       []string `arg:"email"`
	Types        []string `arg:"type"`
	SubTypes     []string `arg:"sub_type"`
	Results      []string `arg:"result"`
	TimestampGte string   `arg:"timestamp_gte"`
	TimestampLte string   `arg:"timestamp_lte"`
	Page         int      `arg:"page" validate:"min=0"`
	Limit        int      `arg:"limit" validate:"min=0"`
	SortBy       string   `arg:"sort_by" validate:"omitempty,oneof=type sub_type result timestamp email"`
	SortOrder    string   `arg:"sort_order" validate:"omitempty,oneof=asc desc"`
}

func getAuditManagementLogs(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in managementLogsInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	if in.Limit == 0 {
		in.Limit = defaultAuditLimit
	}
	q := xdr.ManagementLogQuery{
		Emails:    in.Emails,
		Types:     in.Types,
		SubTypes:  in.SubTypes,
		Results:   in.Results,
		Page:      in.Page,
		Limit:     in.Limit,
		SortBy:    in.SortBy,
		SortOrder: in.SortOrder,
	}
	var err error
	if q.After, err = millis("timestamp_gte", in.TimestampGte); err != nil {
		return nil, err
	}
	if q.Before, err = millis("timestamp_lte", in.TimestampLte); err != nil {
		return nil, err
	}

	logs, err := c.GetAuditManagementLogs(ctx, q)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []xdr.Record{}
	}
	return &Result{
		Readable: markdown.Table("Audit Management Logs", recordRows(logs), managementLogHeaders),
		Outputs:  outputs.New(outputs.AuditManagementLogs, logs),
		Raw:      logs,
	}, nil
}

type agentReportsInput struct {
	EndpointIDs   []string `arg:"endpoint_ids"`
	EndpointNames []string `arg:"endpoint_names"`
	Types         []string `arg:"type"`
	SubTypes      []string `arg:"sub_type"`
	Results       []string `arg:"result"`
	TimestampGte  string   `arg:"timestamp_gte"`
	TimestampLte  string   `arg:"timestamp_lte"`
	Page          int      `arg:"page" validate:"min=0"`
	Limit         int      `arg:"limit" validate:"min=0"`
	SortBy        string   `arg:"sort_by" validate:"omitempty,oneof=type category trapsversion timestamp domain"`
	SortOrder     string   `arg:"sort_order" validate:"omitempty,oneof=asc desc"`
}

func getAuditAgentReports(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in agentReportsInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	if in.Limit == 0 {
		in.Limit = defaultAuditLimit
	}
	q := xdr.AgentReportQuery{
		EndpointIDs:   dedupe(in.EndpointIDs),
		EndpointNames: in.EndpointNames,
		Types:         in.Types,
		SubTypes:      in.SubTypes,
		Results:       in.Results,
		Page:          in.Page,
		Limit:         in.Limit,
		SortBy:        in.SortBy,
		SortOrder:     in.SortOrder,
	}
	var err error
	if q.After, err = millis("timestamp_gte", in.TimestampGte); err != nil {
		return nil, err
	}
	if q.Before, err = millis("timestamp_lte", in.TimestampLte); err != nil {
		return nil, err
	}

	reports, err := c.GetAuditAgentReports(ctx, q)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []xdr.Record{}
	}
	return &Result{
		Readable: markdown.Table("Audit Agent Reports", recordRows(reports), agentReportHeaders),
		Outputs:  outputs.New(outputs.AuditAgentReports, reports),
		Raw:      reports,
	}, nil
}
