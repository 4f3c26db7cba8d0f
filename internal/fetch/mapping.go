package fetch

import "github.com/invisible-tech/xdr-responder/internal/types"

// IncidentTypeName is the incident type the mirrored fields belong to.
const IncidentTypeName = "Cortex XDR Incident"

// MappingFields describes the incident fields the host platform may map.
func MappingFields() []types.SchemeTypeMapping {
	return []types.SchemeTypeMapping{{
		TypeName: IncidentTypeName,
		Fields: map[string]string{
			"status": `Current status of the incident: "new","under_investigation","resolved_threat_handled",` +
				`"resolved_known_issue","resolved_duplicate","resolved_false_positive","resolved_other"`,
			"assigned_user_mail":        "Email address of the assigned user.",
			"assigned_user_pretty_name": "Full name of the user assigned to the incident.",
			"resolve_comment":           "Comments entered by the user when the incident was resolved.",
			"manual_severity": "Incident severity assigned by the user. This does not " +
				"affect the calculated severity low medium high",
		},
	}}
}
