// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package efs

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	efstypes "github.com/aws/aws-sdk-go-v2/service/efs/types"

	"github.com/staranto/smops/internal/poll"
)

// DomainTagKey is set by SageMaker on the home EFS file system of a domain.
// Its value is the domain ARN.
const DomainTagKey = "ManagedByAmazonSageMakerResource"

// EFSAPI is the slice of the EFS client used by the teardown.
type EFSAPI interface {
	efs.DescribeFileSystemsAPIClient
	DescribeMountTargets(ctx context.Context, params *efs.DescribeMountTargetsInput, optFns ...func(*efs.Options)) (*efs.DescribeMountTargetsOutput, error)
	DescribeMountTargetSecurityGroups(ctx context.Context, params *efs.DescribeMountTargetSecurityGroupsInput, optFns ...func(*efs.Options)) (*efs.DescribeMountTargetSecurityGroupsOutput, error)
	DeleteMountTarget(ctx context.Context, params *efs.DeleteMountTargetInput, optFns ...func(*efs.Options)) (*efs.DeleteMountTargetOutput, error)
	DeleteFileSystem(ctx context.Context, params *efs.DeleteFileSystemInput, optFns ...func(*efs.Options)) (*efs.DeleteFileSystemOutput, error)
}

// Options tunes a teardown.
type Options struct {
	// DeleteVPC also removes the subnets, leftover security groups and the VPC
	// the mount targets lived in.
	DeleteVPC bool
}

// Report lists everything a teardown deleted.
type Report struct {
	DomainID       string   `json:"domainId"`
	FileSystems    []string `json:"fileSystems"`
	MountTargets   []string `json:"mountTargets"`
	SecurityGroups []string `json:"securityGroups"`
	Subnets        []string `json:"subnets"`
	VPCs           []string `json:"vpcs"`
}

// Teardown removes the EFS home file system of a SageMaker domain along with
// the network resources SageMaker created for it.
type Teardown struct {
	EFS  EFSAPI
	EC2  EC2API
	Poll poll.Options
}

// New returns a Teardown using the given clients and polling options.
func New(efsClient EFSAPI, ec2Client EC2API, opts poll.Options) *Teardown {
	return &Teardown{EFS: efsClient, EC2: ec2Client, Poll: opts}
}

// DeleteEFS deletes every file system tagged for domainID. For each one the
// mount targets are deleted first and polled until gone, then the security
// groups they used, then the file system itself. With DeleteVPC the VPCs the
// mount targets were in are removed last.
func (t *Teardown) DeleteEFS(ctx context.Context, domainID string, opts Options) (*Report, error) {
	report := &Report{DomainID: domainID}
	if domainID == "" {
		log.Warn("no SageMaker domain id given, nothing to delete")
		return report, nil
	}

	log.Infof("get EFS file system id(s) for SageMaker domain id %s", domainID)
	fsIDs, err := t.FileSystemsForDomain(ctx, domainID)
	if err != nil {
		return report, err
	}
	log.Infof("EFS file system id(s): %v", fsIDs)

	vpcs := map[string]struct{}{}
	for _, fsID := range fsIDs {
		targets, err := t.mountTargets(ctx, fsID)
		if err != nil {
			return report, err
		}

		groups := map[string]struct{}{}
		for _, mt := range targets {
			mtID := aws.ToString(mt.MountTargetId)
			sgs, err := t.EFS.DescribeMountTargetSecurityGroups(ctx, &efs.DescribeMountTargetSecurityGroupsInput{
				MountTargetId: mt.MountTargetId,
			})
			if err != nil {
				return report, fmt.Errorf("failed to describe security groups of mount target %s: %w", mtID, err)
			}
			for _, sg := range sgs.SecurityGroups {
				groups[sg] = struct{}{}
			}
			if vpc := aws.ToString(mt.VpcId); vpc != "" {
				vpcs[vpc] = struct{}{}
			}
		}

		if err := t.deleteMountTargets(ctx, fsID, targets, report); err != nil {
			return report, err
		}

		if err := t.deleteSecurityGroups(ctx, sortedKeys(groups), report); err != nil {
			return report, err
		}

		log.WithField("fs", fsID).Info("deleting EFS file system")
		if _, err := t.EFS.DeleteFileSystem(ctx, &efs.DeleteFileSystemInput{FileSystemId: aws.String(fsID)}); err != nil {
			return report, fmt.Errorf("failed to delete file system %s: %w", fsID, err)
		}
		report.FileSystems = append(report.FileSystems, fsID)
	}

	if opts.DeleteVPC {
		for _, vpc := range sortedKeys(vpcs) {
			if err := t.deleteVPC(ctx, vpc, report); err != nil {
				return report, err
			}
		}
	}

	return report, nil
}

// FileSystemsForDomain lists the ids of the file systems whose SageMaker tag
// points at domainID. File systems without the tag are skipped.
func (t *Teardown) FileSystemsForDomain(ctx context.Context, domainID string) ([]string, error) {
	var ids []string

	p := efs.NewDescribeFileSystemsPaginator(t.EFS, &efs.DescribeFileSystemsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe file systems: %w", err)
		}
		for _, fs := range page.FileSystems {
			if DomainOf(fs.Tags) == domainID {
				ids = append(ids, aws.ToString(fs.FileSystemId))
			}
		}
	}

	return ids, nil
}

// DomainOf returns the domain id encoded in the SageMaker tag, or "" if the
// tag is absent.
func DomainOf(tags []efstypes.Tag) string {
	for _, t := range tags {
		if aws.ToString(t.Key) != DomainTagKey {
			continue
		}
		v := aws.ToString(t.Value)
		return v[strings.LastIndex(v, "/")+1:]
	}
	return ""
}

func (t *Teardown) mountTargets(ctx context.Context, fsID string) ([]efstypes.MountTargetDescription, error) {
	var targets []efstypes.MountTargetDescription
	var marker *string
	for {
		out, err := t.EFS.DescribeMountTargets(ctx, &efs.DescribeMountTargetsInput{
			FileSystemId: aws.String(fsID),
			Marker:       marker,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe mount targets of %s: %w", fsID, err)
		}
		targets = append(targets, out.MountTargets...)
		if out.NextMarker == nil || *out.NextMarker == "" {
			return targets, nil
		}
		marker = out.NextMarker
	}
}

func (t *Teardown) deleteMountTargets(ctx context.Context, fsID string, targets []efstypes.MountTargetDescription, report *Report) error {
	log.Infof("delete mount targets for EFS file system id: %s", fsID)
	for _, mt := range targets {
		log.WithFields(log.Fields{"fs": fsID, "mt": aws.ToString(mt.MountTargetId)}).Debug("deleting mount target")
		if _, err := t.EFS.DeleteMountTarget(ctx, &efs.DeleteMountTargetInput{MountTargetId: mt.MountTargetId}); err != nil {
			return fmt.Errorf("failed to delete mount target %s: %w", aws.ToString(mt.MountTargetId), err)
		}
		report.MountTargets = append(report.MountTargets, aws.ToString(mt.MountTargetId))
	}

	return poll.Until(ctx, t.Poll, func(ctx context.Context) (bool, string, error) {
		left, err := t.mountTargets(ctx, fsID)
		if err != nil {
			return false, "", err
		}
		return len(left) == 0, fmt.Sprintf("%d mount target(s) of %s still deleting", len(left), fsID), nil
	})
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
