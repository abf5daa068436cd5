// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	awsx "github.com/staranto/smops/internal/aws"
	"github.com/staranto/smops/internal/efs"
	"github.com/staranto/smops/internal/meta"
)

// domainIDParameter is the fragment of the SSM parameter the domain stacks
// store their domain id under.
const domainIDParameter = "sagemaker-domain-id"

// EfsCleanAction is the action handler for "efs clean". It deletes the home
// EFS of a SageMaker domain and emits one row per deleted resource.
func EfsCleanAction(ctx context.Context, cmd *cli.Command) error {
	runner := &RowsActionRunner{
		CommandName:    "efs",
		DefaultColumns: []string{"kind", "id"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]map[string]any, error) {
			cfg, err := loadAWSConfig(ctx, cmd)
			if err != nil {
				return nil, err
			}

			domainID := cmd.String("domain-id")
			if domainID == "" {
				v, ok, err := awsx.FindParameter(ctx, newParameterFinder(cfg), domainIDParameter)
				if err != nil {
					return nil, err
				}
				if !ok {
					log.Warnf("no unique SSM parameter matching %s, nothing to clean", domainIDParameter)
					return nil, nil
				}
				domainID = v
			}

			opts, rep := PollOptions(cmd, "deleting EFS of "+domainID)
			report, err := newTeardown(cfg, opts).DeleteEFS(ctx, domainID, efs.Options{
				DeleteVPC: cmd.Bool("delete-vpc"),
			})
			rep.Done(err)
			if err != nil {
				return nil, err
			}
			return reportRows(report), nil
		},
	}
	return runner.Run(ctx, cmd)
}

// reportRows flattens a teardown report into kind/id rows, in deletion
// order.
func reportRows(r *efs.Report) []map[string]any {
	rows := []map[string]any{}
	if r == nil {
		return rows
	}
	for _, group := range []struct {
		kind string
		ids  []string
	}{
		{"mount-target", r.MountTargets},
		{"security-group", r.SecurityGroups},
		{"file-system", r.FileSystems},
		{"subnet", r.Subnets},
		{"vpc", r.VPCs},
	} {
		for _, id := range group.ids {
			rows = append(rows, map[string]any{"kind": group.kind, "id": id, "domain": r.DomainID})
		}
	}
	return rows
}

// EfsCommandBuilder constructs the "efs" command tree.
func EfsCommandBuilder(meta meta.Meta) *cli.Command {
	clean := (&CommandBuilder{
		Name:      "clean",
		Usage:     "delete the home EFS of a SageMaker domain",
		UsageText: `smops efs clean [--domain-id d-xxxx] [--no-delete-vpc] [options]`,
		Namespace: "efs",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "domain-id",
				Aliases: []string{"d"},
				Usage:   "SageMaker domain id. Looked up in SSM when omitted",
				Validator: func(value string) error {
					return FlagValidators(value, JammedFlagValidator)
				},
			},
			&cli.BoolWithInverseFlag{
				Name:  "delete-vpc",
				Usage: "also delete the subnets and VPC of the mount targets",
				Value: true,
			},
		}, NewPollFlags("efs", meta.Config.Source)...),
		Action: EfsCleanAction,
		Output: true,
		Meta:   meta,
	}).Build()

	return (&CommandBuilder{
		Name:     "efs",
		Usage:    "SageMaker domain EFS housekeeping",
		Commands: []*cli.Command{clean},
		Meta:     meta,
	}).Build()
}
