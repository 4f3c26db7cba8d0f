package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invisible-tech/xdr-responder/internal/types"
	"github.com/invisible-tech/xdr-responder/internal/validation"
	"github.com/invisible-tech/xdr-responder/internal/xdrtest"
	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

func newClient(t *testing.T, srv *xdrtest.Server) *xdr.Client {
	t.Helper()
	return xdr.NewClient(xdr.Config{
		ServerURL: srv.URL,
		APIKey:    "k",
		APIKeyID:  "1",
		Timeout:   5 * time.Second,
	}, logrus.New())
}

func fixedNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

type incidentFixture struct {
	id          string
	description string
	created     int64
	modified    int64
	status      string
}

// serveIncidents registers list and detail handlers for the fixtures. The
// list handler applies the modification_time gte filter.
func serveIncidents(srv *xdrtest.Server, fixtures ...incidentFixture) {
	byID := map[string]incidentFixture{}
	for _, f := range fixtures {
		byID[f.id] = f
	}
	srv.Handle("incidents/get_incidents/", func(req xdrtest.Request) (int, interface{}) {
		var after int64
		filters, _ := req.Data["filters"].([]interface{})
		for _, raw := range filters {
			f := raw.(map[string]interface{})
			if f["field"] == "modification_time" && f["operator"] == "gte" {
				after, _ = f["value"].(json.Number).Int64()
			}
		}
		var list []map[string]interface{}
		for _, f := range fixtures {
			if f.modified >= after {
				list = append(list, map[string]interface{}{"incident_id": f.id, "modification_time": f.modified})
			}
		}
		return http.StatusOK, map[string]interface{}{"reply": map[string]interface{}{
			"total_count": len(list), "result_count": len(list), "incidents": list,
		}}
	})
	srv.Handle("incidents/get_incident_extra_data/", func(req xdrtest.Request) (int, interface{}) {
		f, ok := byID[req.Data["incident_id"].(string)]
		if !ok {
			return http.StatusInternalServerError, map[string]interface{}{"reply": map[string]interface{}{
				"err_code": 500, "err_msg": "no such incident",
			}}
		}
		status := f.status
		if status == "" {
			status = "new"
		}
		return http.StatusOK, map[string]interface{}{"reply": map[string]interface{}{
			"incident": map[string]interface{}{
				"incident_id":       f.id,
				"description":       f.description,
				"creation_time":     f.created,
				"modification_time": f.modified,
				"status":            status,
				"resolve_comment":   "Handled",
			},
			"alerts": map[string]interface{}{"total_count": 3, "data": []map[string]interface{}{
				{"alert_id": "60"}, {"alert_id": "42"}, {"alert_id": "55"},
			}},
			"network_artifacts": map[string]interface{}{"total_count": 0, "data": []interface{}{}},
		}}
	})
}

func TestFlattenIncident_DefaultsMissingLists(t *testing.T) {
	r := FlattenIncident(&xdr.IncidentExtraData{Incident: xdr.Record{"incident_id": "1"}})
	for _, k := range []string{FieldAlerts, FieldNetworkArtifacts, FieldFileArtifacts} {
		assert.Equal(t, []xdr.Record{}, r[k], k)
	}
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"incident_id":"1","alerts":[],"network_artifacts":[],"file_artifacts":[]}`, string(raw))
}

func TestSortLists_NumericStable(t *testing.T) {
	r := xdr.Record{FieldAlerts: []interface{}{
		map[string]interface{}{"alert_id": "60"},
		map[string]interface{}{"alert_id": "9", "n": 1},
		map[string]interface{}{"alert_id": "x"},
		map[string]interface{}{"alert_id": "42"},
		map[string]interface{}{"alert_id": "9", "n": 2},
	}}
	SortLists(r)
	var got []string
	for _, a := range r.Objects(FieldAlerts) {
		got = append(got, a.String("alert_id")+a.String("n"))
	}
	assert.Equal(t, []string{"91", "92", "42", "60", "x"}, got)
}

func TestFetchIncidents_FirstRun(t *testing.T) {
	at := time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC)
	fixedNow(t, at)
	srv := xdrtest.NewServer(t)
	serveIncidents(srv,
		incidentFixture{id: "2", description: "second", created: 1596153600000, modified: 1596200000000},
		incidentFixture{id: "1", description: "first", created: 1596153600000, modified: 1596100000000},
	)
	c := newClient(t, srv)

	next, incidents, err := FetchIncidents(context.Background(), c, "3 days", types.LastRun{}, 10)
	require.NoError(t, err)
	require.Len(t, incidents, 2)

	assert.Equal(t, "#1 - first", incidents[0].Name)
	assert.Equal(t, "2020-07-31T00:00:00Z", incidents[0].Occurred)
	assert.Equal(t, types.LastRun{Time: 1596200000000, IDs: []string{"2"}}, next)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(incidents[0].RawJSON), &raw))
	alerts := raw["alerts"].([]interface{})
	assert.Equal(t, "42", alerts[0].(map[string]interface{})["alert_id"])
	assert.Equal(t, []interface{}{}, raw["file_artifacts"])

	list := srv.Requests("incidents/get_incidents/")[0].Data
	sortClause := list["sort"].(map[string]interface{})
	assert.Equal(t, "modification_time", sortClause["field"])
	filter := list["filters"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "gte", filter["operator"])
	assert.Equal(t, json.Number("1595980800000"), filter["value"])
}

func TestFetchIncidents_InclusiveMarkKeepsSameTimeIncidents(t *testing.T) {
	srv := xdrtest.NewServer(t)
	serveIncidents(srv,
		incidentFixture{id: "1", modified: 1000},
		incidentFixture{id: "2", modified: 1000},
		incidentFixture{id: "3", modified: 999},
	)
	c := newClient(t, srv)

	next, incidents, err := FetchIncidents(context.Background(), c, "", types.LastRun{Time: 1000, IDs: []string{"1"}}, 10)
	require.NoError(t, err)
	require.Len(t, incidents, 2)
	assert.Equal(t, "1", incidents[0].IncidentID)
	assert.Equal(t, "2", incidents[1].IncidentID)
	assert.Equal(t, types.LastRun{Time: 1000, IDs: []string{"1", "2"}}, next)
}

func TestFetchIncidents_NoIncidentsKeepsMark(t *testing.T) {
	srv := xdrtest.NewServer(t)
	serveIncidents(srv)
	c := newClient(t, srv)

	last := types.LastRun{Time: 5000, IDs: []string{"7"}}
	next, incidents, err := FetchIncidents(context.Background(), c, "", last, 10)
	require.NoError(t, err)
	assert.Empty(t, incidents)
	assert.Equal(t, last, next)
}

func TestFetchIncidents_DetailFailureAborts(t *testing.T) {
	srv := xdrtest.NewServer(t)
	serveIncidents(srv, incidentFixture{id: "1", modified: 2000})
	srv.Fail("incidents/get_incident_extra_data/", http.StatusInternalServerError, "500", "boom")
	c := newClient(t, srv)

	last := types.LastRun{Time: 1000}
	next, incidents, err := FetchIncidents(context.Background(), c, "", last, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Nil(t, incidents)
	assert.Equal(t, last, next)
}

func TestGetRemoteData_ShouldUpdate(t *testing.T) {
	srv := xdrtest.NewServer(t)
	serveIncidents(srv, incidentFixture{id: "1", modified: 1596153600000})
	c := newClient(t, srv)

	resp, err := GetRemoteData(context.Background(), c, RemoteDataArgs{ID: "1", LastUpdate: "0"})
	require.NoError(t, err)
	obj := xdr.Record(resp.MirroredObject)
	assert.Equal(t, "1", obj.String("id"))
	assert.Equal(t, "", obj["assigned_user_mail"])
	assert.Equal(t, "", obj["assigned_user_pretty_name"])
	assert.NotContains(t, obj, "closeReason")
	assert.Empty(t, resp.Entries)
	assert.Equal(t, "42", obj.Objects(FieldAlerts)[0].String("alert_id"))
}

func TestGetRemoteData_ShouldNotUpdate(t *testing.T) {
	srv := xdrtest.NewServer(t)
	serveIncidents(srv, incidentFixture{id: "1", modified: 1596100000000})
	c := newClient(t, srv)

	resp, err := GetRemoteData(context.Background(), c, RemoteDataArgs{ID: "1", LastUpdate: "2020-07-31T00:00:00Z"})
	require.NoError(t, err)
	assert.True(t, resp.IsEmpty())
}

func TestGetRemoteData_ShouldCloseIssue(t *testing.T) {
	srv := xdrtest.NewServer(t)
	serveIncidents(srv, incidentFixture{id: "1", modified: 1596153600000, status: "resolved_threat_handled"})
	c := newClient(t, srv)

	resp, err := GetRemoteData(context.Background(), c, RemoteDataArgs{ID: "1", LastUpdate: "0"})
	require.NoError(t, err)
	assert.Equal(t, "Resolved", resp.MirroredObject["closeReason"])
	assert.Equal(t, "Handled", resp.MirroredObject["closeNotes"])
	assert.Contains(t, resp.Entries, types.Entry{
		Type: 1,
		Contents: map[string]interface{}{
			"dbotIncidentClose": true,
			"closeReason":       "Resolved",
			"closeNotes":        "Handled",
		},
		ContentsFormat: "json",
	})
}

func TestCloseReason(t *testing.T) {
	assert.Equal(t, "", CloseReason("under_investigation"))
	assert.Equal(t, "Resolved", CloseReason("resolved_true_positive"))
	assert.Equal(t, "False Positive", CloseReason("resolved_false_positive"))
	assert.Equal(t, "Duplicate", CloseReason("resolved_duplicate"))
	assert.Equal(t, "Other", CloseReason("resolved_known_issue"))
}

func TestMappingFields(t *testing.T) {
	m := MappingFields()
	require.Len(t, m, 1)
	assert.Equal(t, "Cortex XDR Incident", m[0].TypeName)
	assert.Len(t, m[0].Fields, 5)
	assert.Equal(t, "Email address of the assigned user.", m[0].Fields["assigned_user_mail"])
}

func TestGetRemoteData_BadArguments(t *testing.T) {
	srv := xdrtest.NewServer(t)
	c := newClient(t, srv)

	_, err := GetRemoteData(context.Background(), c, RemoteDataArgs{LastUpdate: "0"})
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Missing required argument: id", err.Error())

	_, err = GetRemoteData(context.Background(), c, RemoteDataArgs{ID: "1", LastUpdate: "yesterday-ish"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "lastUpdate", verr.Field)
	assert.Empty(t, srv.Requests(""))
}
