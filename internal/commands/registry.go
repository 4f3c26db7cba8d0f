// Package commands implements the operator actions exposed to the host
// platform. Each command decodes its string arguments into a typed input,
// calls the XDR API and shapes the reply into a Result.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/xdr-responder/internal/outputs"
	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

var (
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xdr_commands_total",
			Help: "Total commands executed by outcome",
		},
		[]string{"command", "outcome"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xdr_command_duration_seconds",
			Help:    "Command execution latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
)

func init() {
	prometheus.MustRegister(commandsTotal)
	prometheus.MustRegister(commandDuration)
}

var now = time.Now

// Result is what a command hands back to the host platform.
type Result struct {
	Readable string          `json:"readable" yaml:"readable"`
	Outputs  outputs.Context `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Raw      interface{}     `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// Handler executes one command.
type Handler func(ctx context.Context, c *xdr.Client, args Args) (*Result, error)

// Command is a registered operator action.
type Command struct {
	Name        string
	Description string
	Handler     Handler
}

var registry = map[string]Command{}

func register(name, description string, h Handler) {
	registry[name] = Command{Name: name, Description: description, Handler: h}
}

func init() {
	register("test-module", "Verify the API URL and credentials", testModule)

	register("xdr-get-incidents", "List incidents", getIncidents)
	register("xdr-get-incident-extra-data", "Get an incident with its alerts and artifacts", getIncidentExtraData)
	register("xdr-update-incident", "Update an incident", updateIncident)

	register("xdr-get-endpoints", "List endpoints", getEndpoints)
	register("xdr-isolate-endpoint", "Isolate an endpoint", isolateEndpoint)
	register("xdr-unisolate-endpoint", "Reverse the isolation of an endpoint", unisolateEndpoint)
	register("xdr-endpoint-scan", "Run a malware scan on endpoints", endpointScan)

	register("xdr-insert-parsed-alert", "Upload an alert in parsed format", insertParsedAlert)
	register("xdr-insert-cef-alerts", "Upload alerts in CEF format", insertCEFAlerts)

	register("xdr-get-distribution-url", "Get the download URL of a distribution", getDistributionURL)
	register("xdr-get-create-distribution-status", "Get the status of distributions", getDistributionStatus)
	register("xdr-get-distribution-versions", "List agent versions per platform", getDistributionVersions)
	register("xdr-create-distribution", "Create an installation package", createDistribution)

	register("xdr-get-audit-management-logs", "Query management audit logs", getAuditManagementLogs)
	register("xdr-get-audit-agent-reports", "Query agent audit reports", getAuditAgentReports)

	register("xdr-blacklist-files", "Block file hashes", blacklistFiles)
	register("xdr-whitelist-files", "Allow file hashes", whitelistFiles)
	register("xdr-quarantine-files", "Quarantine a file on endpoints", quarantineFiles)
	register("xdr-get-quarantine-status", "Get the quarantine status of a file", getQuarantineStatus)
	register("xdr-restore-file", "Restore a quarantined file", restoreFile)
}

// Lookup returns the command registered under name.
func Lookup(name string) (Command, bool) {
	cmd, ok := registry[name]
	return cmd, ok
}

// All returns every registered command sorted by name.
func All() []Command {
	out := make([]Command, 0, len(registry))
	for _, cmd := range registry {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Outcome classifies a command error for metrics and transport status codes.
func Outcome(err error) string {
	var verr *ValidationError
	var cerr *StateConflictError
	var aerr *xdr.APIError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &cerr):
		return "conflict"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown"
	case errors.As(err, &aerr):
		return "api"
	default:
		return "error"
	}
}

// Runner executes commands against one client.
type Runner struct {
	client *xdr.Client
	log    *logrus.Logger
}

// NewRunner creates a Runner.
func NewRunner(client *xdr.Client, log *logrus.Logger) *Runner {
	return &Runner{client: client, log: log}
}

// Run executes the named command.
func (r *Runner) Run(ctx context.Context, name string, args Args) (*Result, error) {
	cmd, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	start := time.Now()
	res, err := cmd.Handler(ctx, r.client, args)
	outcome := Outcome(err)
	commandsTotal.WithLabelValues(name, outcome).Inc()
	commandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	entry := r.log.WithFields(logrus.Fields{
		"command":  name,
		"outcome":  outcome,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("Command failed")
		return nil, err
	}
	entry.Info("Command completed")
	return res, nil
}
