package commands

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/invisible-tech/xdr-responder/internal/markdown"
	"github.com/invisible-tech/xdr-responder/internal/outputs"
	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

var endpointHeaders = []string{
	"endpoint_id", "endpoint_name", "endpoint_type", "endpoint_status", "os_type",
	"ip", "users", "domain", "alias", "first_seen", "last_seen", "install_date",
	"endpoint_version", "is_isolated", "group_name",
}

type getEndpointsInput struct {
	EndpointIDs     []string `arg:"endpoint_id_list"`
	DistNames       []string `arg:"dist_name"`
	IPs             []string `arg:"ip_list"`
	GroupNames      []string `arg:"group_name"`
	Platforms       []string `arg:"platform" validate:"dive,oneof=windows linux macos android"`
	Aliases         []string `arg:"alias_name"`
	Isolate         string   `arg:"isolate" validate:"omitempty,oneof=isolated unisolated"`
	Hostnames       []string `arg:"hostname"`
	FirstSeenGte    string   `arg:"first_seen_gte"`
	FirstSeenLte    string   `arg:"first_seen_lte"`
	LastSeenGte     string   `arg:"last_seen_gte"`
	LastSeenLte     string   `arg:"last_seen_lte"`
	Page            int      `arg:"page" validate:"min=0"`
	Limit           int      `arg:"limit" validate:"min=0"`
	SortByFirstSeen string   `arg:"sort_by_first_seen" validate:"omitempty,oneof=asc desc"`
	SortByLastSeen  string   `arg:"sort_by_last_seen" validate:"omitempty,oneof=asc desc"`
}

const defaultEndpointsLimit = 30

func getEndpoints(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in getEndpointsInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	if in.SortByFirstSeen != "" && in.SortByLastSeen != "" {
		return nil, &ValidationError{Reason: "provide either sort_by_first_seen or sort_by_last_seen, not both"}
	}
	if in.Limit == 0 {
		in.Limit = defaultEndpointsLimit
	}

	f := xdr.EndpointFilter{
		EndpointIDs: dedupe(in.EndpointIDs),
		DistNames:   in.DistNames,
		IPs:         in.IPs,
		GroupNames:  in.GroupNames,
		Platforms:   in.Platforms,
		Aliases:     in.Aliases,
		Isolate:     in.Isolate,
		Hostnames:   in.Hostnames,
		Page:        in.Page,
		Limit:       in.Limit,
	}
	var err error
	if f.FirstSeenAfter, err = millis("first_seen_gte", in.FirstSeenGte); err != nil {
		return nil, err
	}
	if f.FirstSeenBefore, err = millis("first_seen_lte", in.FirstSeenLte); err != nil {
		return nil, err
	}
	if f.LastSeenAfter, err = millis("last_seen_gte", in.LastSeenGte); err != nil {
		return nil, err
	}
	if f.LastSeenBefore, err = millis("last_seen_lte", in.LastSeenLte); err != nil {
		return nil, err
	}
	switch {
	case in.SortByFirstSeen != "":
		f.SortBy, f.SortOrder = "first_seen", in.SortByFirstSeen
	case in.SortByLastSeen != "":
		f.SortBy, f.SortOrder = "last_seen", in.SortByLastSeen
	}

	var endpoints []xdr.Record
	if f.IsEmpty() {
		all, err := c.GetAllEndpoints(ctx)
		if err != nil {
			return nil, err
		}
		endpoints = slicePage(all, in.Page, in.Limit)
	} else {
		if endpoints, err = c.GetEndpoints(ctx, f); err != nil {
			return nil, err
		}
	}
	if endpoints == nil {
		endpoints = []xdr.Record{}
	}
	return &Result{
		Readable: markdown.Table("Endpoints", recordRows(endpoints), endpointHeaders),
		Outputs:  outputs.New(outputs.Endpoint, endpoints),
		Raw:      endpoints,
	}, nil
}

func slicePage(all []xdr.Record, page, limit int) []xdr.Record {
	from := page * limit
	if from >= len(all) {
		return []xdr.Record{}
	}
	to := from + limit
	if to > len(all) {
		to = len(all)
	}
	return all[from:to]
}

type endpointInput struct {
	EndpointID string `arg:"endpoint_id" validate:"required"`
}

const isolationStatusHint = "To check the endpoint isolation status please run:" +
	" !xdr-get-endpoints endpoint_id_list=%s and look at the [is_isolated] field."

// isolationGuard decides from the endpoint's current state whether a
// request may be sent. A non-empty note means the endpoint is already in the
// requested state and nothing should be sent.
type isolationGuard struct {
	verb      string
	action    string
	notes     map[string]string
	conflicts map[string]string
	submit    func(*xdr.Client) func(context.Context, string) (xdr.Record, error)
}

var isolateGuard = isolationGuard{
	verb:   "isolated",
	action: "isolation",
	notes: map[string]string{
		xdr.AgentIsolated:         "Endpoint %s already isolated.",
		xdr.AgentPendingIsolation: "Endpoint %s pending isolation.",
	},
	conflicts: map[string]string{
		xdr.AgentPendingIsolationCancellation: "Endpoint %s is pending isolation cancellation and therefore can not be isolated.",
	},
	submit: func(c *xdr.Client) func(context.Context, string) (xdr.Record, error) { return c.IsolateEndpoint },
}

var unisolateGuard = isolationGuard{
	verb:   "un-isolated",
	action: "un-isolation",
	notes: map[string]string{
		xdr.AgentUnisolated:                   "Endpoint %s already unisolated.",
		xdr.AgentPendingIsolationCancellation: "Endpoint %s pending isolation cancellation.",
	},
	conflicts: map[string]string{
		xdr.AgentPendingIsolation: "Endpoint %s is pending isolation and therefore can not be un-isolated.",
	},
	submit: func(c *xdr.Client) func(context.Context, string) (xdr.Record, error) { return c.UnisolateEndpoint },
}

// check returns a note to report instead of acting, or a StateConflictError.
func (g isolationGuard) check(id string, endpoint xdr.Record) (string, error) {
	isolated := endpoint.String("is_isolated")
	if note, ok := g.notes[isolated]; ok {
		return fmt.Sprintf(note, id), nil
	}
	switch endpoint.String("endpoint_status") {
	case xdr.EndpointUninstalled:
		return "", &StateConflictError{EndpointID: id,
			Message: fmt.Sprintf("Endpoint %s's Agent is uninstalled and therefore can not be %s.", id, g.verb)}
	case xdr.EndpointDisconnected:
		return "", &StateConflictError{EndpointID: id,
			Message: fmt.Sprintf("Endpoint %s is disconnected and therefore can not be %s.", id, g.verb)}
	}
	if msg, ok := g.conflicts[isolated]; ok {
		return "", &StateConflictError{EndpointID: id, Message: fmt.Sprintf(msg, id)}
	}
	return "", nil
}

func (g isolationGuard) run(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in endpointInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	endpoint, err := c.GetEndpoint(ctx, in.EndpointID)
	if err != nil {
		return nil, err
	}
	if endpoint == nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("Endpoint %s was not found", in.EndpointID)}
	}
	note, err := g.check(in.EndpointID, endpoint)
	if err != nil {
		return nil, err
	}
	if note != "" {
		return &Result{Readable: note}, nil
	}

	raw, err := g.submit(c)(ctx, in.EndpointID)
	if err != nil {
		return nil, err
	}
	return &Result{
		Readable: fmt.Sprintf("The %s request has been submitted successfully on Endpoint %s.\n", g.action, in.EndpointID) +
			fmt.Sprintf(isolationStatusHint, in.EndpointID),
		Raw: raw,
	}, nil
}

func isolateEndpoint(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	return isolateGuard.run(ctx, c, args)
}

func unisolateEndpoint(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	return unisolateGuard.run(ctx, c, args)
}

type endpointScanInput struct {
	EndpointIDs  []string `arg:"endpoint_id_list"`
	DistNames    []string `arg:"dist_name"`
	FirstSeenGte string   `arg:"gte_first_seen"`
	FirstSeenLte string   `arg:"lte_first_seen"`
	LastSeenGte  string   `arg:"gte_last_seen"`
	LastSeenLte  string   `arg:"lte_last_seen"`
	IPs          []string `arg:"ip_list"`
	GroupNames   []string `arg:"group_name"`
	Platforms    []string `arg:"platform" validate:"dive,oneof=windows linux macos android"`
	Aliases      []string `arg:"alias"`
	Isolate      string   `arg:"isolate" validate:"omitempty,oneof=isolated unisolated"`
	Hostnames    []string `arg:"hostname"`
}

func endpointScan(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in endpointScanInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	f := xdr.EndpointFilter{
		EndpointIDs: dedupe(in.EndpointIDs),
		DistNames:   in.DistNames,
		IPs:         in.IPs,
		GroupNames:  in.GroupNames,
		Platforms:   in.Platforms,
		Aliases:     in.Aliases,
		Isolate:     in.Isolate,
		Hostnames:   in.Hostnames,
	}
	var err error
	if f.FirstSeenAfter, err = millis("gte_first_seen", in.FirstSeenGte); err != nil {
		return nil, err
	}
	if f.FirstSeenBefore, err = millis("lte_first_seen", in.FirstSeenLte); err != nil {
		return nil, err
	}
	if f.LastSeenAfter, err = millis("gte_last_seen", in.LastSeenGte); err != nil {
		return nil, err
	}
	if f.LastSeenBefore, err = millis("lte_last_seen", in.LastSeenLte); err != nil {
		return nil, err
	}

	reply, err := c.ScanEndpoints(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Result{
		Readable: markdown.KeyValue("Endpoint scan", map[string]interface{}{"Action Id": reply.ActionID}, nil),
		Outputs:  outputs.New(outputs.EndpointScan, reply.ActionID),
		Raw:      reply,
	}, nil
}

// dedupe drops repeated values, keeping first occurrences in order.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := sets.New[string]()
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen.Has(v) {
			seen.Insert(v)
			out = append(out, v)
		}
	}
	return out
}
