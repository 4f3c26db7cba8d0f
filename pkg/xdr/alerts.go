package xdr

import "context"

// ParsedAlert is an alert from a third-party source in the parsed format.
type ParsedAlert struct {
	Product          string `json:"product"`
	Vendor           string `json:"vendor"`
	LocalIP          string `json:"local_ip"`
	LocalPort        int    `json:"local_port"`
	RemoteIP         string `json:"remote_ip"`
	RemotePort       int    `json:"remote_port"`
	EventTimestamp   int64  `json:"event_timestamp"`
	Severity         string `json:"severity"`
	AlertName        string `json:"alert_name"`
	AlertDescription string `json:"alert_description,omitempty"`
}

// InsertParsedAlerts uploads parsed alerts.
func (c *Client) InsertParsedAlerts(ctx context.Context, alerts []ParsedAlert) error {
	return c.Post(ctx, "alerts/insert_parsed_alerts/", map[string]interface{}{"alerts": alerts}, nil)
}

// InsertCEFAlerts uploads alerts in CEF format, one string per alert.
func (c *Client) InsertCEFAlerts(ctx context.Context, alerts []string) error {
	return c.Post(ctx, "alerts/insert_cef_alerts/", map[string]interface{}{"alerts": alerts}, nil)
}
