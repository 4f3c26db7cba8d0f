// Package fetch turns incident detail replies into the records the host
// platform ingests: the polling pipeline, remote-data mirroring and the
// mapping-fields schema.
package fetch

import (
	"sort"

	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

// Incident list fields that are always present on a materialized incident.
const (
	FieldAlerts           = "alerts"
	FieldNetworkArtifacts = "network_artifacts"
	FieldFileArtifacts    = "file_artifacts"
)

// FlattenIncident merges the data of each sub-collection into a copy of the
// incident. Missing collections become empty lists.
func FlattenIncident(d *xdr.IncidentExtraData) xdr.Record {
	out := make(xdr.Record, len(d.Incident)+3)
	for k, v := range d.Incident {
		out[k] = v
	}
	out[FieldAlerts] = collectionData(d.Alerts)
	out[FieldNetworkArtifacts] = collectionData(d.NetworkArtifacts)
	out[FieldFileArtifacts] = collectionData(d.FileArtifacts)
	return out
}

func collectionData(c *xdr.Collection) []xdr.Record {
	if c == nil || c.Data == nil {
		return []xdr.Record{}
	}
	return c.Data
}

// SortLists orders the incident's alerts by the numeric value of alert_id.
// Alerts with equal or unparsable ids keep their relative order; unparsable
// ids sort last.
func SortLists(r xdr.Record) {
	alerts := r.Objects(FieldAlerts)
	sort.SliceStable(alerts, func(i, j int) bool {
		a, aok := alerts[i].Int64("alert_id")
		b, bok := alerts[j].Int64("alert_id")
		switch {
		case aok && bok:
			return a < b
		case aok:
			return true
		default:
			return false
		}
	})
	if alerts == nil {
		alerts = []xdr.Record{}
	}
	r[FieldAlerts] = alerts
}

// Materialize flattens a detail reply and sorts its lists.
func Materialize(d *xdr.IncidentExtraData) xdr.Record {
	r := FlattenIncident(d)
	SortLists(r)
	return r
}
