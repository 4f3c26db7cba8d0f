package fetch

import (
	"context"
	"strings"

	"github.com/invisible-tech/xdr-responder/internal/timeutil"
	"github.com/invisible-tech/xdr-responder/internal/types"
	"github.com/invisible-tech/xdr-responder/internal/validation"
	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

// RemoteDataArgs identifies the incident to mirror. LastUpdate is the time
// the host platform last saw the incident change; it accepts epoch
// milliseconds or seconds, RFC3339 and relative phrases.
type RemoteDataArgs struct {
	ID         string `json:"id" mapstructure:"id"`
	LastUpdate string `json:"lastUpdate" mapstructure:"lastUpdate"`
}

var closeReasons = map[string]string{
	"resolved_threat_handled": "Resolved",
	"resolved_true_positive":  "Resolved",
	"resolved_false_positive": "False Positive",
	"resolved_duplicate":      "Duplicate",
}

// CloseReason maps a resolved incident status to the host platform's close
// reason. Unresolved statuses yield "".
func CloseReason(status string) string {
	if !strings.HasPrefix(status, "resolved_") {
		return ""
	}
	if reason, ok := closeReasons[status]; ok {
		return reason
	}
	return "Other"
}

// GetRemoteData returns the incident for mirroring, or the empty response
// when it has not changed since args.LastUpdate.
func GetRemoteData(ctx context.Context, c *xdr.Client, args RemoteDataArgs) (types.RemoteDataResponse, error) {
	if args.ID == "" {
		return types.RemoteDataResponse{}, validation.Missing("id")
	}
	lastUpdate, err := timeutil.ParseMillis(args.LastUpdate, now())
	if err != nil {
		return types.RemoteDataResponse{}, validation.Invalid("lastUpdate", "%v", err)
	}

	detail, err := c.GetIncidentExtraData(ctx, args.ID, 0)
	if err != nil {
		return types.RemoteDataResponse{}, err
	}
	incident := Materialize(detail)
	if modified, ok := incident.Int64("modification_time"); ok && lastUpdate > modified {
		return types.RemoteDataResponse{}, nil
	}

	incident["id"] = incident["incident_id"]
	for _, k := range []string{"assigned_user_mail", "assigned_user_pretty_name"} {
		if incident[k] == nil {
			incident[k] = ""
		}
	}

	resp := types.RemoteDataResponse{MirroredObject: incident, Entries: []types.Entry{}}
	if reason := CloseReason(incident.String("status")); reason != "" {
		notes := incident.String("resolve_comment")
		incident["closeReason"] = reason
		incident["closeNotes"] = notes
		resp.Entries = append(resp.Entries, types.Entry{
			Type: types.EntryTypeNote,
			Contents: map[string]interface{}{
				"dbotIncidentClose": true,
				"closeReason":       reason,
				"closeNotes":        notes,
			},
			ContentsFormat: "json",
		})
	}
	return resp, nil
}
