package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/invisible-tech/xdr-responder/internal/markdown"
	"github.com/invisible-tech/xdr-responder/internal/outputs"
	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

type distributionURLInput struct {
	DistributionID string `arg:"distribution_id" validate:"required"`
	PackageType    string `arg:"package_type" validate:"required,oneof=upgrade sh rpm deb pkg x86 x64"`
}

func getDistributionURL(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in distributionURLInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	url, err := c.GetDistributionURL(ctx, in.DistributionID, in.PackageType)
	if err != nil {
		return nil, err
	}
	return &Result{
		Readable: fmt.Sprintf("[Distribution URL](%s)", url),
		Outputs: outputs.New(outputs.Distribution, map[string]interface{}{
			"id":  in.DistributionID,
			"url": url,
		}),
		Raw: map[string]interface{}{"distribution_url": url},
	}, nil
}

type distributionStatusInput struct {
	DistributionIDs []string `arg:"distribution_ids" validate:"required"`
}

func getDistributionStatus(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in distributionStatusInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	statuses := make([]map[string]interface{}, 0, len(in.DistributionIDs))
	for _, id := range dedupe(in.DistributionIDs) {
		status, err := c.GetDistributionStatus(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("distribution %s: %w", id, err)
		}
		statuses = append(statuses, map[string]interface{}{"id": id, "status": status})
	}
	return &Result{
		Readable: markdown.Table("Distribution Status", statuses, []string{"id", "status"}),
		Outputs:  outputs.New(outputs.Distribution, statuses),
		Raw:      statuses,
	}, nil
}

func getDistributionVersions(ctx context.Context, c *xdr.Client, _ Args) (*Result, error) {
	versions, err := c.GetDistributionVersions(ctx)
	if err != nil {
		return nil, err
	}
	platforms := make([]string, 0, len(versions))
	for p := range versions {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	var b strings.Builder
	for _, p := range platforms {
		b.WriteString(markdown.List(p, "versions", versions[p]))
		b.WriteString("\n")
	}
	return &Result{
		Readable: b.String(),
		Outputs:  outputs.New(outputs.DistributionVersions, versions),
		Raw:      versions,
	}, nil
}

type createDistributionInput struct {
	Name         string  `arg:"name" validate:"required"`
	Platform     string  `arg:"platform" validate:"required,oneof=windows linux macos android"`
	PackageType  string  `arg:"package_type" validate:"required,oneof=standalone upgrade"`
	AgentVersion string  `arg:"agent_version" validate:"required"`
	Description  *string `arg:"description"`
}

func createDistribution(ctx context.Context, c *xdr.Client, args Args) (*Result, error) {
	var in createDistributionInput
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	id, err := c.CreateDistribution(ctx, xdr.DistributionRequest{
		Name:         in.Name,
		Platform:     in.Platform,
		PackageType:  in.PackageType,
		AgentVersion: in.AgentVersion,
		Description:  in.Description,
	})
	if err != nil {
		return nil, err
	}

	var description interface{}
	if in.Description != nil {
		description = *in.Description
	}
	dist := map[string]interface{}{
		"id":            id,
		"name":          in.Name,
		"platform":      in.Platform,
		"package_type":  in.PackageType,
		"agent_version": in.AgentVersion,
		"description":   description,
	}
	return &Result{
		Readable: fmt.Sprintf("Distribution %s created successfully", id),
		Outputs:  outputs.New(outputs.Distribution, dist),
		Raw:      map[string]interface{}{"distribution_id": id},
	}, nil
}
