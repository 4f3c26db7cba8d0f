// Package types defines the shapes exchanged with the host orchestration
// platform: polled incidents, the high-water mark, and mirroring replies.
package types

// PollIncident is one incident handed to the host platform's fetch loop.
type PollIncident struct {
	Name     string `json:"name"`
	Occurred string `json:"occurred"`
	RawJSON  string `json:"rawJSON"`

	IncidentID       string `json:"-"`
	ModificationTime int64  `json:"-"`
}

// LastRun is the high-water mark of the incident poll. Time is the largest
// modification time processed (epoch milliseconds, inclusive); IDs are the
// incidents already delivered at exactly that time.
type LastRun struct {
	Time int64    `json:"time" yaml:"time"`
	IDs  []string `json:"ids,omitempty" yaml:"ids,omitempty"`
}

// IsZero reports whether no poll has completed yet.
func (l LastRun) IsZero() bool {
	return l.Time == 0 && len(l.IDs) == 0
}

// Entry types understood by the host platform.
const (
	EntryTypeNote = 1
)

// Entry is a synthetic war-room entry, such as the close directive emitted
// when a mirrored incident is resolved remotely.
type Entry struct {
	Type           int                    `json:"Type"`
	Contents       map[string]interface{} `json:"Contents"`
	ContentsFormat string                 `json:"ContentsFormat"`
}

// RemoteDataResponse is the mirroring reply for one incident. The zero
// value is the empty response returned when nothing changed remotely.
type RemoteDataResponse struct {
	MirroredObject map[string]interface{} `json:"mirrored_object,omitempty"`
	Entries        []Entry                `json:"entries,omitempty"`
}

// IsEmpty reports whether the response carries no update.
func (r RemoteDataResponse) IsEmpty() bool {
	return r.MirroredObject == nil && len(r.Entries) == 0
}

// SchemeTypeMapping describes the incoming/outgoing fields of one incident
// type for the host platform's mapping editor.
type SchemeTypeMapping struct {
	TypeName string            `json:"type_name" yaml:"type_name"`
	Fields   map[string]string `json:"fields" yaml:"fields"`
}
