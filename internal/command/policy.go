// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/smops/internal/meta"
	"github.com/staranto/smops/internal/resource"
)

// PolicySetupAction opens the data bucket and KMS key of an environment to
// the given accounts. With --dry-run the policy diffs are shown and nothing
// is written.
func PolicySetupAction(ctx context.Context, cmd *cli.Command) error {
	runner := &RowsActionRunner{
		CommandName:    "policy",
		DefaultColumns: []string{"resource", "applied", "diff"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]map[string]any, error) {
			cfg, err := loadAWSConfig(ctx, cmd)
			if err != nil {
				return nil, err
			}

			h := newCrossAccount(cfg)
			h.DryRun = cmd.Bool("dry-run")
			if h.DryRun {
				log.Info("dry run, policies are not updated")
			}

			changes, err := h.Setup(ctx, resource.CrossAccountInput{
				Accounts:          cmd.StringSlice("account"),
				PrincipalRoleName: cmd.String("principal-role-name"),
				SetupRoleName:     cmd.String("setup-role-name"),
				BucketName:        cmd.String("bucket"),
				KMSKeyID:          cmd.String("key-id"),
				S3VPCEParam:       cmd.String("s3-vpce-param"),
				KMSVPCEParam:      cmd.String("kms-vpce-param"),
			})
			if err != nil {
				return nil, err
			}
			return ToRows(changes)
		},
	}
	return runner.Run(ctx, cmd)
}

// PolicyCommandBuilder constructs the "policy" command tree.
func PolicyCommandBuilder(meta meta.Meta) *cli.Command {
	ns, path := "policy", meta.Config.Source

	required := func(name, usage string) cli.Flag {
		return NameSpacedValueChainFlagFromConfigFile(ns, path, &cli.StringFlag{
			Name:     name,
			Usage:    usage,
			Required: true,
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		})
	}

	setup := (&CommandBuilder{
		Name:      "setup",
		Usage:     "grant other accounts access to the environment bucket and key",
		UsageText: `smops policy setup --bucket b --key-id k --account 111111111111 ... [--dry-run] [options]`,
		Namespace: ns,
		Flags: []cli.Flag{
			NameSpacedValueChainFlagFromConfigFile(ns, path, &cli.StringSliceFlag{
				Name:     "account",
				Usage:    "account id to grant, repeatable",
				Required: true,
				Validator: func(values []string) error {
					for _, v := range values {
						if err := AccountListValidator(v); err != nil {
							return err
						}
					}
					return nil
				},
			}),
			required("bucket", "data bucket of the environment"),
			required("key-id", "KMS key id or ARN of the environment"),
			required("principal-role-name", "role granted in every account"),
			required("setup-role-name", "role assumed in every account to read its VPC endpoint ids"),
			required("s3-vpce-param", "SSM parameter holding the S3 VPC endpoint id in every account"),
			required("kms-vpce-param", "SSM parameter holding the KMS VPC endpoint id in every account"),
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "show the policy changes without writing them",
			},
		},
		Action: PolicySetupAction,
		Output: true,
		Meta:   meta,
	}).Build()

	return (&CommandBuilder{
		Name:     "policy",
		Usage:    "cross-account bucket and key policies",
		Commands: []*cli.Command{setup},
		Meta:     meta,
	}).Build()
}
