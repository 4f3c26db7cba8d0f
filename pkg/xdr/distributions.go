package xdr

import (
	"context"
	"fmt"
)

// DistributionRequest creates an agent installation package.
type DistributionRequest struct {
	Name         string  `json:"name"`
	Platform     string  `json:"platform"`
	PackageType  string  `json:"package_type"`
	AgentVersion string  `json:"agent_version"`
	Description  *string `json:"description"`
}

// CreateDistribution creates a distribution and returns its id.
func (c *Client) CreateDistribution(ctx context.Context, d DistributionRequest) (string, error) {
	var reply Record
	if err := c.Post(ctx, "distributions/create/", d, &reply); err != nil {
		return "", err
	}
	id := reply.String("distribution_id")
	if id == "" {
		return "", fmt.Errorf("create distribution reply has no distribution_id")
	}
	return id, nil
}

// GetDistributionURL returns the download URL of a distribution package.
func (c *Client) GetDistributionURL(ctx context.Context, distributionID, packageType string) (string, error) {
	req := map[string]string{
		"distribution_id": distributionID,
		"package_type":    packageType,
	}
	var reply Record
	if err := c.Post(ctx, "distributions/get_dist_url/", req, &reply); err != nil {
		return "", err
	}
	return reply.String("distribution_url"), nil
}

// GetDistributionStatus returns the build status of a distribution.
func (c *Client) GetDistributionStatus(ctx context.Context, distributionID string) (string, error) {
	var reply Record
	if err := c.Post(ctx, "distributions/get_status/", map[string]string{"distribution_id": distributionID}, &reply); err != nil {
		return "", err
	}
	return reply.String("status"), nil
}

// GetDistributionVersions lists agent versions available per platform.
func (c *Client) GetDistributionVersions(ctx context.Context) (map[string][]string, error) {
	var reply map[string][]string
	if err := c.Post(ctx, "distributions/get_versions/", nil, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}
