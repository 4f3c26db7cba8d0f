package xdr

import (
	"context"
	"encoding/json"
	"fmt"
)

// MaxEndpointsPage is the largest page get_endpoint serves.
const MaxEndpointsPage = 100

// Endpoint states reported by get_endpoint.
const (
	EndpointConnected    = "CONNECTED"
	EndpointDisconnected = "DISCONNECTED"
	EndpointLost         = "LOST"
	EndpointUninstalled  = "UNINSTALLED"

	AgentIsolated                     = "AGENT_ISOLATED"
	AgentUnisolated                   = "AGENT_UNISOLATED"
	AgentPendingIsolation             = "AGENT_PENDING_ISOLATION"
	AgentPendingIsolationCancellation = "AGENT_PENDING_ISOLATION_CANCELLATION"
)

// EndpointFilter is shared by get_endpoint and scan. Zero values are not sent.
type EndpointFilter struct {
	EndpointIDs     []string
	DistNames       []string
	IPs             []string
	GroupNames      []string
	Platforms       []string
	Aliases         []string
	Hostnames       []string
	Isolate         string
	FirstSeenAfter  int64
	FirstSeenBefore int64
	LastSeenAfter   int64
	LastSeenBefore  int64

	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

func (f EndpointFilter) filters() []Filter {
	var b filterBuilder
	b.in("endpoint_id_list", f.EndpointIDs)
	b.in("dist_name", f.DistNames)
	b.gte("first_seen", f.FirstSeenAfter)
	b.lte("first_seen", f.FirstSeenBefore)
	b.gte("last_seen", f.LastSeenAfter)
	b.lte("last_seen", f.LastSeenBefore)
	b.in("ip_list", f.IPs)
	b.in("group_name", f.GroupNames)
	b.in("platform", f.Platforms)
	b.in("alias", f.Aliases)
	if f.Isolate != "" {
		b.in("isolate", []string{f.Isolate})
	}
	b.in("hostname", f.Hostnames)
	return b
}

// IsEmpty reports whether no filter criteria are set.
func (f EndpointFilter) IsEmpty() bool {
	return len(f.filters()) == 0
}

type endpointsReply struct {
	TotalCount  json.Number `json:"total_count"`
	ResultCount json.Number `json:"result_count"`
	Endpoints   []Record    `json:"endpoints"`
}

// GetEndpoints returns one page of endpoints matching the filter.
func (c *Client) GetEndpoints(ctx context.Context, f EndpointFilter) ([]Record, error) {
	from, to := pageBounds(f.Page, f.Limit, MaxEndpointsPage)
	req := map[string]interface{}{
		"search_from": from,
		"search_to":   to,
	}
	if filters := f.filters(); len(filters) > 0 {
		req["filters"] = filters
	}
	if f.SortBy != "" {
		order := f.SortOrder
		if order == "" {
			order = "asc"
		}
		req["sort"] = Sort{Field: f.SortBy, Keyword: order}
	}
	var reply endpointsReply
	if err := c.Post(ctx, "endpoints/get_endpoint/", req, &reply); err != nil {
		return nil, err
	}
	return reply.Endpoints, nil
}

// GetAllEndpoints returns every endpoint known to the tenant in one call.
func (c *Client) GetAllEndpoints(ctx context.Context) ([]Record, error) {
	var reply []Record
	if err := c.Post(ctx, "endpoints/get_endpoints/", nil, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// GetEndpoint looks up a single endpoint. It returns nil without error when
// the endpoint does not exist.
func (c *Client) GetEndpoint(ctx context.Context, endpointID string) (Record, error) {
	endpoints, err := c.GetEndpoints(ctx, EndpointFilter{EndpointIDs: []string{endpointID}})
	if err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, nil
	}
	return endpoints[0], nil
}

// IsolateEndpoint submits an isolation request.
func (c *Client) IsolateEndpoint(ctx context.Context, endpointID string) (Record, error) {
	return c.endpointAction(ctx, "endpoints/isolate", endpointID)
}

// UnisolateEndpoint submits an un-isolation request.
func (c *Client) UnisolateEndpoint(ctx context.Context, endpointID string) (Record, error) {
	return c.endpointAction(ctx, "endpoints/unisolate", endpointID)
}

func (c *Client) endpointAction(ctx context.Context, path, endpointID string) (Record, error) {
	var reply interface{}
	if err := c.Post(ctx, path, map[string]string{"endpoint_id": endpointID}, &reply); err != nil {
		return nil, err
	}
	if obj, ok := reply.(map[string]interface{}); ok {
		return Record(obj), nil
	}
	return Record{"reply": reply}, nil
}

// ScanEndpoints starts a malware scan. An empty filter scans every endpoint.
func (c *Client) ScanEndpoints(ctx context.Context, f EndpointFilter) (*ActionReply, error) {
	var filters interface{} = "all"
	if fs := f.filters(); len(fs) > 0 {
		filters = fs
	}
	var reply ActionReply
	if err := c.Post(ctx, "endpoints/scan/", map[string]interface{}{"filters": filters}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// QuarantineFiles quarantines a file on the given endpoints.
func (c *Client) QuarantineFiles(ctx context.Context, endpointIDs []string, filePath, fileHash string) (*ActionReply, error) {
	req := map[string]interface{}{
		"filters":   []Filter{{Field: "endpoint_id_list", Operator: "in", Value: endpointIDs}},
		"file_path": filePath,
		"file_hash": fileHash,
	}
	var reply ActionReply
	if err := c.Post(ctx, "endpoints/quarantine/", req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// QuarantineStatus is the quarantine state of one file on one endpoint.
type QuarantineStatus struct {
	EndpointID string `json:"endpoint_id"`
	FilePath   string `json:"file_path"`
	FileHash   string `json:"file_hash"`
	Status     bool   `json:"status"`
}

// GetQuarantineStatus reports whether a file is quarantined on an endpoint.
func (c *Client) GetQuarantineStatus(ctx context.Context, endpointID, filePath, fileHash string) (*QuarantineStatus, error) {
	req := map[string]interface{}{
		"files": []map[string]string{{
			"endpoint_id": endpointID,
			"file_path":   filePath,
			"file_hash":   fileHash,
		}},
	}
	var reply json.RawMessage
	if err := c.Post(ctx, "quarantine/status/", req, &reply); err != nil {
		return nil, err
	}
	var statuses []QuarantineStatus
	if len(reply) > 0 && reply[0] == '[' {
		if err := decodeJSON(reply, &statuses); err != nil {
			return nil, fmt.Errorf("failed to decode quarantine status: %w", err)
		}
	} else {
		var single QuarantineStatus
		if err := decodeJSON(reply, &single); err != nil {
			return nil, fmt.Errorf("failed to decode quarantine status: %w", err)
		}
		statuses = append(statuses, single)
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("quarantine status reply is empty")
	}
	return &statuses[0], nil
}

// RestoreFile restores a quarantined file. An empty endpointID restores it
// on every endpoint.
func (c *Client) RestoreFile(ctx context.Context, fileHash, endpointID string) (*ActionReply, error) {
	req := map[string]interface{}{"file_hash": fileHash}
	if endpointID != "" {
		req["endpoint_id"] = endpointID
	}
	var reply ActionReply
	if err := c.Post(ctx, "endpoints/restore/", req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}
