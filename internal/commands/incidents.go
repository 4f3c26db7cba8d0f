package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/invisible-tech/xdr-responder/internal/fetch"
	"github.com/invisible-tech/xdr-responder/internal/markdown"
	"github.com/invisible-tech/xdr-responder/internal/outputs"
	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

var incidentHeaders = []string{
	"incident_id", "description", "status", "severity", "assigned_user_mail",
	"creation_time", "modification_time", "alert_count", "host_count",
}

type getIncidentsInput struct {
	IncidentIDs            []string `arg:"incident_id_list"`
	LteModificationTime    string   `arg:"lte_modification_time"`
	GteModificationTime    string   `arg:"gte_modification_time"`
	LteCreationTime        string   `arg:"lte_creation_time"`
	GteCreationTime        string   `arg:"gte_creation_time"`
	SortByModificationTime string   `arg:"sort_by_modification_time" validate:"omitempty,oneof=asc desc"`
	SortByCreationTime     string   `arg:"sort_by_creation_time" validate:"omitempty,oneof=asc desc"`
	Page                   int      `arg:"page" validate:"min=0"`
	Limit                  int      `arg:"limit" validate:"min=0,max=100"`
}

func getIncidents(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in getIncidentsInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	if in.SortByModificationTime != "" && in.SortByCreationTime != "" {
		return nil, &ValidationError{Reason: "provide either sort_by_creation_time or sort_by_modification_time, not both"}
	}

	f := xdr.IncidentFilter{IDs: in.IncidentIDs, Page: in.Page, Limit: in.Limit}
	var err error
	if f.ModifiedBefore, err = millis("lte_modification_time", in.LteModificationTime); err != nil {
		return nil, err
	}
	if f.ModifiedAfter, err = millis("gte_modification_time", in.GteModificationTime); err != nil {
		return nil, err
	}
	if f.CreatedBefore, err = millis("lte_creation_time", in.LteCreationTime); err != nil {
		return nil, err
	}
	if f.CreatedAfter, err = millis("gte_creation_time", in.GteCreationTime); err != nil {
		return nil, err
	}
	switch {
	case in.SortByModificationTime != "":
		f.SortBy, f.SortOrder = xdr.SortByModificationTime, in.SortByModificationTime
	case in.SortByCreationTime != "":
		f.SortBy, f.SortOrder = xdr.SortByCreationTime, in.SortByCreationTime
	}

	incidents, err := c.GetIncidents(ctx, f)
	if err != nil {
		return nil, err
	}
	if incidents == nil {
		incidents = []xdr.Record{}
	}
	return &Result{
		Readable: markdown.Table("Incidents", recordRows(incidents), incidentHeaders),
		Outputs:  outputs.New(outputs.Incident, incidents),
		Raw:      incidents,
	}, nil
}

type incidentExtraDataInput struct {
	IncidentID  string `arg:"incident_id" validate:"required"`
	AlertsLimit int    `arg:"alerts_limit" validate:"min=0"`
}

func getIncidentExtraData(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in incidentExtraDataInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	detail, err := c.GetIncidentExtraData(ctx, in.IncidentID, in.AlertsLimit)
	if err != nil {
		return nil, err
	}
	incident := fetch.Materialize(detail)

	var b strings.Builder
	b.WriteString(markdown.KeyValue(fmt.Sprintf("Incident %s", in.IncidentID), detail.Incident, nil))
	b.WriteString("\n")
	b.WriteString(markdown.Table("Alerts", recordRows(incident.Objects(fetch.FieldAlerts)),
		[]string{"alert_id", "detection_timestamp", "severity", "name", "category", "action_pretty", "description"}))
	b.WriteString("\n")
	b.WriteString(markdown.Table("Network Artifacts", recordRows(incident.Objects(fetch.FieldNetworkArtifacts)), nil))
	b.WriteString("\n")
	b.WriteString(markdown.Table("File Artifacts", recordRows(incident.Objects(fetch.FieldFileArtifacts)), nil))

	return &Result{
		Readable: b.String(),
		Outputs:  outputs.New(outputs.Incident, incident),
		Raw:      detail,
	}, nil
}

type updateIncidentInput struct {
	IncidentID             string `arg:"incident_id" validate:"required"`
	Status                 string `arg:"status" validate:"omitempty,oneof=new under_investigation resolved_threat_handled resolved_known_issue resolved_duplicate resolved_false_positive resolved_true_positive resolved_security_testing resolved_other"`
	ManualSeverity         string `arg:"manual_severity" validate:"omitempty,oneof=low medium high"`
	AssignedUserMail       string `arg:"assigned_user_mail" validate:"omitempty,email"`
	AssignedUserPrettyName string `arg:"assigned_user_pretty_name"`
	ResolveComment         string `arg:"resolve_comment"`
	UnassignUser           bool   `arg:"unassign_user"`
}

func updateIncident(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in updateIncidentInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	err := c.UpdateIncident(ctx, in.IncidentID, xdr.IncidentUpdate{
		AssignedUserMail:       in.AssignedUserMail,
		AssignedUserPrettyName: in.AssignedUserPrettyName,
		Status:                 in.Status,
		ManualSeverity:         in.ManualSeverity,
		ResolveComment:         in.ResolveComment,
		UnassignUser:           in.UnassignUser,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Readable: fmt.Sprintf("Incident %s has been updated", in.IncidentID)}, nil
}

func testModule(ctx context.Context, c *xdr.Client, _ Args) (*Result, error) {
	if err := c.TestConnection(ctx); err != nil {
		return nil, err
	}
	return &Result{Readable: "ok"}, nil
}

func recordRows(records []xdr.Record) []map[string]interface{} {
	rows := make([]map[string]interface{}, len(records))
	for i, r := range records {
		rows[i] = r
	}
	return rows
}
