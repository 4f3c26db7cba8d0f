package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/xdr-responder/internal/config"
	"github.com/invisible-tech/xdr-responder/internal/poller"
	"github.com/invisible-tech/xdr-responder/internal/state"
	"github.com/invisible-tech/xdr-responder/internal/types"
	"github.com/invisible-tech/xdr-responder/internal/xdrtest"
	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

func newTestServer(t *testing.T, withPoller bool) (*Server, *xdrtest.Server) {
	t.Helper()
	fake := xdrtest.NewServer(t)
	log := logrus.New()
	client := xdr.NewClient(xdr.Config{ServerURL: fake.URL, APIKey: "k", APIKeyID: "1", Timeout: 5 * time.Second}, log)
	var p *poller.Poller
	if withPoller {
		p = poller.New(config.PollerConfig{
			Interval: time.Minute, FirstFetch: "3 days", MaxFetch: 10, RetentionCount: 10, BreakerCooldown: time.Minute,
		}, client, &state.MemoryStore{}, log)
	}
	return New(config.ServerConfig{HTTPAddr: ":0"}, client, p, log), fake
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, r)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, true)
	rec := do(srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health: status %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("health status = %q", body["status"])
	}
	if body["version"] == "" {
		t.Error("health version should be set")
	}
	if body["poller"] != "closed" {
		t.Errorf("poller state = %q, want closed", body["poller"])
	}
}

func TestServer_ListCommands(t *testing.T) {
	srv, _ := newTestServer(t, false)
	rec := do(srv, http.MethodGet, "/api/v1/commands", "")
	var list []map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) == 0 || list[0]["name"] == "" {
		t.Errorf("commands = %+v", list)
	}
}

func TestServer_Command_OK(t *testing.T) {
	srv, fake := newTestServer(t, false)
	fake.Reply("incidents/get_incidents/", map[string]interface{}{"incidents": []interface{}{}})

	rec := do(srv, http.MethodPost, "/api/v1/commands/test-module", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestServer_Command_Errors(t *testing.T) {
	srv, fake := newTestServer(t, false)
	fake.Reply("endpoints/get_endpoint/", map[string]interface{}{
		"total_count": 1, "result_count": 1,
		"endpoints": []map[string]interface{}{{"endpoint_id": "1111", "endpoint_status": "DISCONNECTED"}},
	})
	fake.Fail("incidents/get_incident_extra_data/", http.StatusUnauthorized, "401", "unauthorized")

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		errMsg string
	}{
		{"unknown command", "/api/v1/commands/xdr-nope", "", http.StatusNotFound, ""},
		{"missing argument", "/api/v1/commands/xdr-isolate-endpoint", `{"args":{}}`, http.StatusBadRequest,
			"Error: Missing required argument: endpoint_id"},
		{"state conflict", "/api/v1/commands/xdr-isolate-endpoint", `{"args":{"endpoint_id":"1111"}}`, http.StatusBadRequest,
			"Error: Endpoint 1111 is disconnected and therefore can not be isolated."},
		{"api failure", "/api/v1/commands/xdr-get-incident-extra-data", `{"args":{"incident_id":"1"}}`, http.StatusBadGateway, ""},
		{"bad json", "/api/v1/commands/test-module", `{`, http.StatusBadRequest, "Error: invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			var body errorResponse
			json.NewDecoder(rec.Body).Decode(&body)
			if !strings.HasPrefix(body.Error, "Error: ") {
				t.Errorf("error %q lacks prefix", body.Error)
			}
			if tt.errMsg != "" && body.Error != tt.errMsg {
				t.Errorf("error = %q, want %q", body.Error, tt.errMsg)
			}
		})
	}
}

func TestArgString(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{true, "true"},
		{float64(30), "30"},
		{[]interface{}{"a", "b"}, "a,b"},
		{map[string]interface{}{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		if got := argString(tt.in); got != tt.want {
			t.Errorf("argString(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestServer_FetchIncidents(t *testing.T) {
	srv, fake := newTestServer(t, true)
	mod := time.Now().Add(-time.Hour).UnixMilli()
	fake.Reply("incidents/get_incidents/", map[string]interface{}{
		"total_count": 1, "result_count": 1,
		"incidents": []map[string]interface{}{{"incident_id": "7", "modification_time": mod}},
	})
	fake.Reply("incidents/get_incident_extra_data/", map[string]interface{}{
		"incident": map[string]interface{}{
			"incident_id": "7", "description": "lateral movement",
			"creation_time": mod, "modification_time": mod,
		},
	})

	rec := do(srv, http.MethodPost, "/api/v1/fetch-incidents", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp fetchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Incidents) != 1 || resp.Incidents[0].Name != "#7 - lateral movement" {
		t.Errorf("incidents = %+v", resp.Incidents)
	}
	if resp.LastRun.Time != mod {
		t.Errorf("last_run.time = %d, want %d", resp.LastRun.Time, mod)
	}

	rec = do(srv, http.MethodGet, "/api/v1/incidents?limit=5", "")
	var retained []types.PollIncident
	json.NewDecoder(rec.Body).Decode(&retained)
	if len(retained) != 1 {
		t.Errorf("retained incidents = %d, want 1", len(retained))
	}

	if rec := do(srv, http.MethodGet, "/api/v1/incidents?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status %d", rec.Code)
	}
}

func TestServer_PollerDisabled(t *testing.T) {
	srv, _ := newTestServer(t, false)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/fetch-incidents"},
		{http.MethodGet, "/api/v1/incidents"},
	} {
		if rec := do(srv, tc.method, tc.path, ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: status %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestServer_RemoteData(t *testing.T) {
	srv, fake := newTestServer(t, false)
	fake.Reply("incidents/get_incident_extra_data/", map[string]interface{}{
		"incident": map[string]interface{}{
			"incident_id": "1", "modification_time": 1596153600000, "status": "resolved_false_positive",
			"resolve_comment": "benign",
		},
	})

	rec := do(srv, http.MethodPost, "/api/v1/remote-data", `{"id":"1","lastUpdate":"2020-07-30T00:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp types.RemoteDataResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.MirroredObject["closeReason"] != "False Positive" {
		t.Errorf("closeReason = %v", resp.MirroredObject["closeReason"])
	}
	if len(resp.Entries) != 1 {
		t.Errorf("entries = %d, want 1", len(resp.Entries))
	}

}

func TestServer_RemoteData_NumericArgs(t *testing.T) {
	srv, fake := newTestServer(t, false)
	fake.Reply("incidents/get_incident_extra_data/", map[string]interface{}{
		"incident": map[string]interface{}{"incident_id": "1", "modification_time": 1596153600000, "status": "new"},
	})

	rec := do(srv, http.MethodPost, "/api/v1/remote-data", `{"id":1,"lastUpdate":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp types.RemoteDataResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.MirroredObject["id"] != "1" {
		t.Errorf("mirrored id = %v, want 1", resp.MirroredObject["id"])
	}
	reqs := fake.Requests("incidents/get_incident_extra_data/")
	if len(reqs) != 1 || reqs[0].Data["incident_id"] != "1" {
		t.Errorf("detail requests = %+v", reqs)
	}
}

func TestServer_RemoteData_BadInput(t *testing.T) {
	srv, fake := newTestServer(t, false)
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{"missing id", `{}`, "Error: Missing required argument: id"},
		{"null id", `{"id":null,"lastUpdate":0}`, "Error: Missing required argument: id"},
		{"bad lastUpdate", `{"id":"1","lastUpdate":"yesterday-ish"}`, ""},
		{"bad json", `{"id":`, "Error: invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, http.MethodPost, "/api/v1/remote-data", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", rec.Code, rec.Body.String())
			}
			var body errorResponse
			json.NewDecoder(rec.Body).Decode(&body)
			if tt.errMsg != "" && body.Error != tt.errMsg {
				t.Errorf("error = %q, want %q", body.Error, tt.errMsg)
			}
			if tt.errMsg == "" && !strings.HasPrefix(body.Error, "Error: Invalid argument lastUpdate: ") {
				t.Errorf("error = %q", body.Error)
			}
		})
	}
	if n := len(fake.Requests("")); n != 0 {
		t.Errorf("bad input reached the API %d time(s)", n)
	}
}

func TestServer_MappingFields(t *testing.T) {
	srv, _ := newTestServer(t, false)
	rec := do(srv, http.MethodGet, "/api/v1/mapping-fields", "")
	var mappings []types.SchemeTypeMapping
	if err := json.NewDecoder(rec.Body).Decode(&mappings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(mappings) != 1 || mappings[0].TypeName != "Cortex XDR Incident" {
		t.Errorf("mappings = %+v", mappings)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, false)
	if rec := do(srv, http.MethodGet, "/api/v1/commands/test-module", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET command: status %d", rec.Code)
	}
}
