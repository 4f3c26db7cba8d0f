package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/invisible-tech/xdr-responder/internal/timeutil"
	"github.com/invisible-tech/xdr-responder/internal/types"
	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

// DefaultFirstFetch is the look-back window used before any poll completed.
const DefaultFirstFetch = "3 days"

// DefaultMaxFetch caps the incidents materialized per cycle.
const DefaultMaxFetch = 50

var now = time.Now

// FetchIncidents lists every incident modified at or after the high-water
// mark, materializes each one and returns them with the next mark. The mark
// is last.Time, or now minus firstFetch when no poll has completed.
//
// Incidents already delivered at the mark are returned again; dropping them
// is up to the caller. A failing detail call aborts the cycle and last is
// returned unchanged.
func FetchIncidents(ctx context.Context, c *xdr.Client, firstFetch string, last types.LastRun, maxFetch int) (types.LastRun, []types.PollIncident, error) {
	mark := last.Time
	if last.IsZero() {
		if firstFetch == "" {
			firstFetch = DefaultFirstFetch
		}
		start, err := timeutil.Ago(firstFetch, now())
		if err != nil {
			return last, nil, fmt.Errorf("first fetch: %w", err)
		}
		mark = start.UnixMilli()
	}
	if maxFetch <= 0 {
		maxFetch = DefaultMaxFetch
	}

	summaries, err := c.GetAllIncidents(ctx, xdr.IncidentFilter{
		ModifiedAfter: mark,
		SortBy:        xdr.SortByModificationTime,
		SortOrder:     "asc",
	}, maxFetch+len(last.IDs))
	if err != nil {
		return last, nil, fmt.Errorf("list incidents: %w", err)
	}

	incidents := make([]types.PollIncident, 0, len(summaries))
	for _, s := range summaries {
		id := s.String("incident_id")
		detail, err := c.GetIncidentExtraData(ctx, id, 0)
		if err != nil {
			return last, nil, fmt.Errorf("incident %s: %w", id, err)
		}
		inc, err := toPollIncident(Materialize(detail))
		if err != nil {
			return last, nil, err
		}
		incidents = append(incidents, inc)
	}
	sort.SliceStable(incidents, func(i, j int) bool {
		return incidents[i].ModificationTime < incidents[j].ModificationTime
	})

	return nextRun(last, mark, incidents), incidents, nil
}

func toPollIncident(r xdr.Record) (types.PollIncident, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return types.PollIncident{}, fmt.Errorf("incident %s: encode: %w", r.String("incident_id"), err)
	}
	created, _ := r.Int64("creation_time")
	modified, _ := r.Int64("modification_time")
	return types.PollIncident{
		Name:             fmt.Sprintf("#%s - %s", r.String("incident_id"), r.String("description")),
		Occurred:         timeutil.FormatMillis(created),
		RawJSON:          string(raw),
		IncidentID:       r.String("incident_id"),
		ModificationTime: modified,
	}, nil
}

// nextRun advances the mark to the largest modification time seen and keeps
// the ids delivered at exactly that time.
func nextRun(last types.LastRun, mark int64, incidents []types.PollIncident) types.LastRun {
	next := types.LastRun{Time: mark}
	for _, inc := range incidents {
		if inc.ModificationTime > next.Time {
			next.Time = inc.ModificationTime
		}
	}
	ids := sets.New[string]()
	if next.Time == last.Time {
		ids.Insert(last.IDs...)
	}
	for _, inc := range incidents {
		if inc.ModificationTime == next.Time {
			ids.Insert(inc.IncidentID)
		}
	}
	if ids.Len() > 0 {
		next.IDs = sets.List(ids)
	}
	return next
}
