package commands

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

type parsedAlertInput struct {
	Product          string `arg:"product" validate:"required"`
	Vendor           string `arg:"vendor" validate:"required"`
	LocalIP          string `arg:"local_ip" validate:"required"`
	LocalPort        *int   `arg:"local_port" validate:"required"`
	RemoteIP         string `arg:"remote_ip" validate:"required"`
	RemotePort       int    `arg:"remote_port"`
	EventTimestamp   int64  `arg:"event_timestamp"`
	Severity         string `arg:"severity" validate:"required,oneof=Informational Low Medium High Unknown"`
	AlertName        string `arg:"alert_name" validate:"required"`
	AlertDescription string `arg:"alert_description"`
}

func insertParsedAlert(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in parsedAlertInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	if in.EventTimestamp == 0 {
		in.EventTimestamp = now().UnixMilli()
	}
	err := c.InsertParsedAlerts(ctx, []xdr.ParsedAlert{{
		Product:          in.Product,
		Vendor:           in.Vendor,
		LocalIP:          in.LocalIP,
		LocalPort:        *in.LocalPort,
		RemoteIP:         in.RemoteIP,
		RemotePort:       in.RemotePort,
		EventTimestamp:   in.EventTimestamp,
		Severity:         in.Severity,
		AlertName:        in.AlertName,
		AlertDescription: in.AlertDescription,
	}})
	if err != nil {
		return nil, err
	}
	return &Result{Readable: "Alert inserted successfully"}, nil
}

type cefAlertsInput struct {
	CEFAlerts string `arg:"cef_alerts" validate:"required"`
}

func insertCEFAlerts(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in cefAlertsInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	alerts, err := parseCEFAlerts(in.CEFAlerts)
	if err != nil {
		return nil, err
	}
	if err := c.InsertCEFAlerts(ctx, alerts); err != nil {
		return nil, err
	}
	return &Result{Readable: "Alerts inserted successfully"}, nil
}

// parseCEFAlerts accepts a JSON array of strings or one alert per line. CEF
// records contain commas, so the usual comma split does not apply.
func parseCEFAlerts(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var alerts []string
		if err := json.Unmarshal([]byte(s), &alerts); err != nil {
			return nil, invalid("cef_alerts", "not a JSON list of strings: %v", err)
		}
		return alerts, nil
	}
	var alerts []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			alerts = append(alerts, line)
		}
	}
	return alerts, nil
}
