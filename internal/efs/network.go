// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package efs

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	awsx "github.com/staranto/smops/internal/aws"
	"github.com/staranto/smops/internal/poll"
)

// EC2API is the slice of the EC2 client used to clean up the network side.
type EC2API interface {
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	RevokeSecurityGroupIngress(ctx context.Context, params *ec2.RevokeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error)
	RevokeSecurityGroupEgress(ctx context.Context, params *ec2.RevokeSecurityGroupEgressInput, optFns ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupEgressOutput, error)
	DeleteSecurityGroup(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error)
	DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DeleteSubnet(ctx context.Context, params *ec2.DeleteSubnetInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error)
	DeleteVpc(ctx context.Context, params *ec2.DeleteVpcInput, optFns ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error)
}

const (
	errGroupNotFound      = "InvalidGroup.NotFound"
	errDependency         = "DependencyViolation"
	errPermissionNotFound = "InvalidPermission.NotFound"
)

// deleteSecurityGroups strips the rules of every group first. SageMaker's
// inbound and outbound NFS groups reference each other, so neither can be
// deleted while the other still points at it.
func (t *Teardown) deleteSecurityGroups(ctx context.Context, groupIDs []string, report *Report) error {
	if len(groupIDs) == 0 {
		return nil
	}

	out, err := t.EC2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{GroupIds: groupIDs})
	if err != nil {
		if awsx.IsErrorCode(err, errGroupNotFound) {
			if len(groupIDs) == 1 {
				log.Warnf("security group %s already gone", groupIDs[0])
				return nil
			}
			// One missing id fails the whole call, retry one at a time.
			for _, id := range groupIDs {
				if err := t.deleteSecurityGroups(ctx, []string{id}, report); err != nil {
					return err
				}
			}
			return nil
		}
		return fmt.Errorf("failed to describe security groups %v: %w", groupIDs, err)
	}

	for _, sg := range out.SecurityGroups {
		if err := t.revokeRules(ctx, sg); err != nil {
			return err
		}
	}

	for _, sg := range out.SecurityGroups {
		if err := t.deleteSecurityGroup(ctx, aws.ToString(sg.GroupId), report); err != nil {
			return err
		}
	}

	return nil
}

func (t *Teardown) revokeRules(ctx context.Context, sg ec2types.SecurityGroup) error {
	id := aws.ToString(sg.GroupId)

	if len(sg.IpPermissions) > 0 {
		log.WithField("sg", id).Debugf("revoking %d ingress rule(s)", len(sg.IpPermissions))
		_, err := t.EC2.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
			GroupId:       sg.GroupId,
			IpPermissions: sg.IpPermissions,
		})
		if err != nil && !awsx.IsErrorCode(err, errPermissionNotFound, errGroupNotFound) {
			return fmt.Errorf("failed to revoke ingress rules of %s: %w", id, err)
		}
	}

	if len(sg.IpPermissionsEgress) > 0 {
		log.WithField("sg", id).Debugf("revoking %d egress rule(s)", len(sg.IpPermissionsEgress))
		_, err := t.EC2.RevokeSecurityGroupEgress(ctx, &ec2.RevokeSecurityGroupEgressInput{
			GroupId:       sg.GroupId,
			IpPermissions: sg.IpPermissionsEgress,
		})
		if err != nil && !awsx.IsErrorCode(err, errPermissionNotFound, errGroupNotFound) {
			return fmt.Errorf("failed to revoke egress rules of %s: %w", id, err)
		}
	}

	return nil
}

// deleteSecurityGroup retries on DependencyViolation: the ENIs of deleted
// mount targets are released asynchronously.
func (t *Teardown) deleteSecurityGroup(ctx context.Context, id string, report *Report) error {
	log.WithField("sg", id).Info("deleting security group")
	err := poll.Until(ctx, t.Poll, func(ctx context.Context) (bool, string, error) {
		_, err := t.EC2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(id)})
		switch {
		case err == nil:
			report.SecurityGroups = append(report.SecurityGroups, id)
			return true, "", nil
		case awsx.IsErrorCode(err, errGroupNotFound):
			log.WithField("sg", id).Warn("security group already gone")
			return true, "", nil
		case awsx.IsErrorCode(err, errDependency):
			return false, fmt.Sprintf("security group %s still in use", id), nil
		default:
			return false, "", fmt.Errorf("failed to delete security group %s: %w", id, err)
		}
	})
	return err
}

func (t *Teardown) deleteVPC(ctx context.Context, vpcID string, report *Report) error {
	log.WithField("vpc", vpcID).Info("deleting subnets and VPC")

	vpcFilter := []ec2types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}}

	subnets, err := t.EC2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{Filters: vpcFilter})
	if err != nil {
		return fmt.Errorf("failed to describe subnets of %s: %w", vpcID, err)
	}
	for _, sn := range subnets.Subnets {
		id := aws.ToString(sn.SubnetId)
		log.WithField("subnet", id).Debug("deleting subnet")
		if _, err := t.EC2.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: sn.SubnetId}); err != nil {
			return fmt.Errorf("failed to delete subnet %s: %w", id, err)
		}
		report.Subnets = append(report.Subnets, id)
	}

	groups, err := t.EC2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{Filters: vpcFilter})
	if err != nil {
		return fmt.Errorf("failed to describe security groups of %s: %w", vpcID, err)
	}
	var leftover []string
	for _, sg := range groups.SecurityGroups {
		if aws.ToString(sg.GroupName) == "default" {
			continue
		}
		leftover = append(leftover, aws.ToString(sg.GroupId))
	}
	if err := t.deleteSecurityGroups(ctx, leftover, report); err != nil {
		return err
	}

	return poll.Until(ctx, t.Poll, func(ctx context.Context) (bool, string, error) {
		_, err := t.EC2.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(vpcID)})
		switch {
		case err == nil:
			report.VPCs = append(report.VPCs, vpcID)
			return true, "", nil
		case awsx.IsErrorCode(err, errDependency):
			return false, fmt.Sprintf("VPC %s still has dependencies", vpcID), nil
		default:
			return false, "", fmt.Errorf("failed to delete VPC %s: %w", vpcID, err)
		}
	})
}
