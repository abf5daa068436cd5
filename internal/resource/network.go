// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// NetworkAPI is the slice of the EC2 client used to look up subnets and
// route tables.
type NetworkAPI interface {
	ec2.DescribeSubnetsAPIClient
	ec2.DescribeRouteTablesAPIClient
}

// NetworkConfiguration finds the subnets of an existing VPC layout and the
// route tables associated with them.
type NetworkConfiguration struct {
	EC2 NetworkAPI
}

// Create selects subnets by AvailabilityZones and SubnetCIDRBlocks and
// returns SubnetIds and RouteTableIds.
func (h *NetworkConfiguration) Create(ctx context.Context, event cfn.Event) (map[string]any, error) {
	cidrs, err := StringSliceProp(event, "SubnetCIDRBlocks")
	if err != nil {
		return nil, err
	}
	azs, err := StringSliceProp(event, "AvailabilityZones")
	if err != nil {
		return nil, err
	}

	subnets, err := h.subnets(ctx, cidrs, azs)
	if err != nil {
		return nil, err
	}
	tables, err := h.routeTables(ctx, subnets)
	if err != nil {
		return nil, err
	}

	return map[string]any{"SubnetIds": subnets, "RouteTableIds": tables}, nil
}

func (h *NetworkConfiguration) subnets(ctx context.Context, cidrs, azs []string) ([]string, error) {
	ids := []string{}
	p := ec2.NewDescribeSubnetsPaginator(h.EC2, &ec2.DescribeSubnetsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe subnets: %w", err)
		}
		for _, sn := range page.Subnets {
			if slices.Contains(azs, aws.ToString(sn.AvailabilityZone)) && slices.Contains(cidrs, aws.ToString(sn.CidrBlock)) {
				ids = append(ids, aws.ToString(sn.SubnetId))
			}
		}
	}
	return ids, nil
}

func (h *NetworkConfiguration) routeTables(ctx context.Context, subnets []string) ([]string, error) {
	ids := []string{}
	if len(subnets) == 0 {
		return ids, nil
	}

	p := ec2.NewDescribeRouteTablesPaginator(h.EC2, &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{{Name: aws.String("association.subnet-id"), Values: subnets}},
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe route tables: %w", err)
		}
		for _, rt := range page.RouteTables {
			ids = append(ids, aws.ToString(rt.RouteTableId))
		}
	}
	return ids, nil
}
