// Package outputs names the context paths commands write to. Each entity
// kind has a fixed context key; keys are never assembled from strings at
// call time.
package outputs

// Prefix is the root of every context path this integration writes.
const Prefix = "PaloAltoNetworksXDR"

// Kind is an entity written to the host platform's context.
type Kind int

const (
	Incident Kind = iota
	Endpoint
	Distribution
	DistributionVersions
	AuditManagementLogs
	AuditAgentReports
	BlocklistHash
	AllowlistHash
	QuarantineAction
	QuarantineStatus
	RestoredFile
	EndpointScan
)

var keys = [...]string{
	Incident:             Prefix + ".Incident(val.incident_id==obj.incident_id)",
	Endpoint:             Prefix + ".Endpoint(val.endpoint_id == obj.endpoint_id)",
	Distribution:         Prefix + ".Distribution(val.id == obj.id)",
	DistributionVersions: Prefix + ".DistributionVersions",
	AuditManagementLogs:  Prefix + ".AuditManagementLogs(val.AUDIT_ID == obj.AUDIT_ID)",
	AuditAgentReports:    Prefix + ".AuditAgentReports",
	BlocklistHash:        Prefix + ".blackList.fileHash(val.fileHash == obj.fileHash)",
	AllowlistHash:        Prefix + ".whiteList.fileHash(val.fileHash == obj.fileHash)",
	QuarantineAction:     Prefix + ".quarantineFiles.actionIds(val.actionId === obj.actionId)",
	QuarantineStatus: Prefix + ".quarantineFiles.status(val.fileHash === obj.fileHash &&val.endpointId" +
		" === obj.endpointId && val.filePath === obj.filePath)",
	RestoredFile: Prefix + ".restoredFiles.actionId(val.actionId == obj.actionId)",
	EndpointScan: Prefix + ".endpointScan.actionId(val.actionId == obj.actionId)",
}

// Key is the full context key, including the merge expression.
func (k Kind) Key() string {
	return keys[k]
}

// Context is the flat key to value(s) mapping returned to the host platform.
type Context map[string]interface{}

// New returns a context holding a single entity value.
func New(k Kind, value interface{}) Context {
	return Context{k.Key(): value}
}
