// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/smops/internal/meta"
	"github.com/staranto/smops/internal/registry"
)

// RegistrySetupAction makes sure the model package group of a project exists
// and, for multi-account deployments, shares it with the staging and
// production accounts.
func RegistrySetupAction(ctx context.Context, cmd *cli.Command) error {
	runner := &RowsActionRunner{
		CommandName:    "registry",
		DefaultColumns: []string{"group", "arn", "sharedWith"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]map[string]any, error) {
			group := cmd.String("model-package-group-name")

			var accounts []string
			multi := isYes(cmd.String("multi-account-deployment"))
			if multi {
				staging, prod := cmd.String("staging-accounts"), cmd.String("prod-accounts")
				if staging == "" || prod == "" {
					return nil, fmt.Errorf("staging accounts %q or production accounts %q are not provided for multi-account-deployment", staging, prod)
				}
				accounts = append(splitList(staging), splitList(prod)...)
			}

			cfg, err := loadAWSConfig(ctx, cmd)
			if err != nil {
				return nil, err
			}
			reg := newRegistry(cfg)

			arn, err := reg.EnsureGroup(ctx, registry.GroupSpec{
				Name:        group,
				ProjectName: cmd.String("sagemaker-project-name"),
				ProjectID:   cmd.String("sagemaker-project-id"),
				EnvName:     cmd.String("env-name"),
				EnvType:     cmd.String("env-type"),
			})
			if err != nil {
				return nil, err
			}

			if multi {
				if err := reg.PutCrossAccountPolicy(ctx, group, arn, accounts); err != nil {
					return nil, err
				}
			} else {
				log.Info("single account deployment, the model package group is not shared")
			}

			return []map[string]any{{
				"group":      group,
				"arn":        arn,
				"sharedWith": strings.Join(accounts, ","),
			}}, nil
		},
	}
	return runner.Run(ctx, cmd)
}

// splitList splits a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// projectFlags are the flags naming the SageMaker project and environment a
// model deploy command works on.
func projectFlags(ns, path string) []cli.Flag {
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

	return []cli.Flag{
		required("sagemaker-project-id", "SageMaker project id"),
		required("sagemaker-project-name", "SageMaker project name"),
		required("model-package-group-name", "model package group of the project"),
		required("env-name", "data science environment name"),
		NameSpacedValueChainFlagFromConfigFile(ns, path, &cli.StringFlag{
			Name:     "multi-account-deployment",
			Usage:    "YES to deploy to the staging and production accounts",
			Required: true,
			Validator: func(value string) error {
				return FlagValidators(value, YesNoValidator)
			},
		}),
		NameSpacedValueChainFlagFromConfigFile(ns, path, &cli.StringFlag{
			Name:  "staging-accounts",
			Usage: "comma-separated staging account ids",
			Validator: func(value string) error {
				return FlagValidators(value, AccountListValidator)
			},
		}),
		NameSpacedValueChainFlagFromConfigFile(ns, path, &cli.StringFlag{
			Name:  "prod-accounts",
			Usage: "comma-separated production account ids",
			Validator: func(value string) error {
				return FlagValidators(value, AccountListValidator)
			},
		}),
	}
}

// RegistryCommandBuilder constructs the "registry" command tree.
func RegistryCommandBuilder(meta meta.Meta) *cli.Command {
	setup := (&CommandBuilder{
		Name:      "setup",
		Usage:     "create and share the model package group of a project",
		UsageText: `smops registry setup --sagemaker-project-name p --sagemaker-project-id id --model-package-group-name g --env-name e --env-type t --multi-account-deployment YES|NO [options]`,
		Namespace: "registry",
		Flags: append(projectFlags("registry", meta.Config.Source),
			NameSpacedValueChainFlagFromConfigFile("registry", meta.Config.Source, &cli.StringFlag{
				Name:     "env-type",
				Usage:    "data science environment type",
				Required: true,
			}),
		),
		Action: RegistrySetupAction,
		Output: true,
		Meta:   meta,
	}).Build()

	return (&CommandBuilder{
		Name:     "registry",
		Usage:    "SageMaker model registry",
		Commands: []*cli.Command{setup},
		Meta:     meta,
	}).Build()
}
