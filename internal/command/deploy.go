// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/staranto/smops/internal/deploy"
	"github.com/staranto/smops/internal/meta"
)

// DeployBuildAction writes the staging and production stage configuration
// files for the latest approved model.
func DeployBuildAction(ctx context.Context, cmd *cli.Command) error {
	runner := &RowsActionRunner{
		CommandName:    "deploy",
		DefaultColumns: []string{"stage", "file", "accounts"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]map[string]any, error) {
			opts := deployBuildOptions(cmd)

			cfg, err := loadAWSConfig(ctx, cmd)
			if err != nil {
				return nil, err
			}

			written, err := deploy.Build(ctx, newRegistry(cfg), newSTS(cfg), opts)
			if err != nil {
				return nil, err
			}

			rows := make([]map[string]any, 0, len(written))
			for i, f := range written {
				rows = append(rows, map[string]any{
					"stage":    opts.Stages[i].EnvType,
					"file":     f,
					"accounts": opts.Stages[i].Accounts,
				})
			}
			return rows, nil
		},
	}
	return runner.Run(ctx, cmd)
}

func deployBuildOptions(cmd *cli.Command) deploy.BuildOptions {
	opts := deploy.BuildOptions{
		ProjectName:       cmd.String("sagemaker-project-name"),
		ProjectID:         cmd.String("sagemaker-project-id"),
		ModelPackageGroup: cmd.String("model-package-group-name"),
		EnvName:           cmd.String("env-name"),
		EbsKmsKeyArn:      cmd.String("ebs-kms-key-arn"),
		MultiAccount:      isYes(cmd.String("multi-account-deployment")),
		Dir:               cmd.String("dir"),
		Stages: []deploy.Stage{
			{
				ConfigName:        cmd.String("staging-config-name"),
				ExecutionRoleName: cmd.String("sagemaker-execution-role-staging-name"),
				EnvType:           cmd.String("env-type-staging-name"),
			},
			{
				ConfigName:        cmd.String("prod-config-name"),
				ExecutionRoleName: cmd.String("sagemaker-execution-role-prod-name"),
				EnvType:           cmd.String("env-type-prod-name"),
			},
		},
	}
	if opts.MultiAccount {
		opts.Stages[0].Accounts = cmd.String("staging-accounts")
		opts.Stages[1].Accounts = cmd.String("prod-accounts")
	}
	return opts
}

// DeployTestAction tests the endpoint of a deployed stage in every target
// account and appends the results to --test-results-output.
func DeployTestAction(ctx context.Context, cmd *cli.Command) error {
	runner := &RowsActionRunner{
		CommandName:    "deploy",
		DefaultColumns: []string{"account", "type", "endpoint", "success"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]map[string]any, error) {
			cfg, err := loadAWSConfig(ctx, cmd)
			if err != nil {
				return nil, err
			}

			results, err := newTester(cfg).Test(ctx, cmd.String("build-config"), cmd.String("test-results-output"))
			if err != nil {
				return nil, err
			}

			rows := make([]map[string]any, 0, len(results))
			for _, r := range results {
				row := map[string]any{
					"account":     r.AccountID,
					"environment": r.EnvironmentName,
					"type":        r.EnvironmentType,
					"project":     r.SageMakerProjectName,
				}
				if r.TestResults != nil {
					row["endpoint"] = r.TestResults.EndpointName
					row["success"] = r.TestResults.Success
				}
				rows = append(rows, row)
			}
			return rows, nil
		},
	}
	return runner.Run(ctx, cmd)
}

// DeployCommandBuilder constructs the "deploy" command tree.
func DeployCommandBuilder(meta meta.Meta) *cli.Command {
	path := meta.Config.Source
	str := func(name, usage, value string, required bool) cli.Flag {
		return NameSpacedValueChainFlagFromConfigFile("deploy", path, &cli.StringFlag{
			Name:     name,
			Usage:    usage,
			Value:    value,
			Required: required,
		})
	}

	build := (&CommandBuilder{
		Name:      "build",
		Usage:     "write the stage configurations for the latest approved model",
		UsageText: `smops deploy build --sagemaker-project-name p --sagemaker-project-id id --model-package-group-name g ... [options]`,
		Namespace: "deploy",
		Flags: append(projectFlags("deploy", path),
			str("staging-config-name", "staging configuration name", "staging-config", false),
			str("prod-config-name", "production configuration name", "prod-config", false),
			str("sagemaker-execution-role-staging-name", "execution role of the staging endpoint", "", true),
			str("sagemaker-execution-role-prod-name", "execution role of the production endpoint", "", true),
			str("env-type-staging-name", "environment type of the staging stage", "", true),
			str("env-type-prod-name", "environment type of the production stage", "", true),
			str("ebs-kms-key-arn", "KMS key of the endpoint volumes", "", true),
			&cli.StringFlag{
				Name:      "dir",
				Usage:     "directory holding the <config>-template.json files",
				Value:     ".",
				TakesFile: true,
			},
		),
		Action: DeployBuildAction,
		Output: true,
		Meta:   meta,
	}).Build()

	test := (&CommandBuilder{
		Name:      "test",
		Usage:     "test the endpoint of a deployed stage",
		UsageText: `smops deploy test --build-config staging-config.json --test-results-output results.json [options]`,
		Namespace: "deploy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      "build-config",
				Usage:     "stage configuration written by deploy build",
				Required:  true,
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:      "test-results-output",
				Usage:     "file the results are appended to",
				Required:  true,
				TakesFile: true,
			},
		},
		Action: DeployTestAction,
		Output: true,
		Meta:   meta,
	}).Build()

	return (&CommandBuilder{
		Name:     "deploy",
		Usage:    "model deployment stages",
		Commands: []*cli.Command{build, test},
		Meta:     meta,
	}).Build()
}
