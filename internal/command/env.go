// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/staranto/smops/internal/environment"
	"github.com/staranto/smops/internal/meta"
	"github.com/staranto/smops/internal/pipeline"
)

// EnvShowAction resolves the data science environment of a project and
// emits it as key/value rows.
func EnvShowAction(ctx context.Context, cmd *cli.Command) error {
	runner := &RowsActionRunner{
		CommandName:    "env",
		DefaultColumns: []string{"key", "value"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]map[string]any, error) {
			project := cmd.Args().First()
			if project == "" {
				project = cmd.String("sagemaker-project-name")
			}
			if project == "" {
				return nil, errors.New("missing SageMaker project name")
			}

			cfg, err := loadAWSConfig(ctx, cmd)
			if err != nil {
				return nil, err
			}

			params := append([]environment.Param{}, pipeline.EnvParams...)
			for _, p := range cmd.StringSlice("param") {
				params = append(params, environment.Param{VariableName: p, ParameterName: p})
			}

			env, err := newResolver(cfg).Resolve(ctx, project, params)
			if err != nil {
				return nil, err
			}
			return envRows(env), nil
		},
	}
	return runner.Run(ctx, cmd)
}

// envRows flattens env into rows sorted by key.
func envRows(env *environment.Environment) []map[string]any {
	m := env.Map()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, map[string]any{"key": k, "value": m[k]})
	}
	return rows
}

// EnvCommandBuilder constructs the "env" command tree.
func EnvCommandBuilder(meta meta.Meta) *cli.Command {
	show := (&CommandBuilder{
		Name:      "show",
		Usage:     "show the data science environment of a project",
		UsageText: `smops env show <sagemaker-project-name> [--param suffix ...] [options]`,
		Namespace: "env",
		Flags: []cli.Flag{
			NameSpacedValueChainFlagFromConfigFile("env", meta.Config.Source, &cli.StringFlag{
				Name:  "sagemaker-project-name",
				Usage: "SageMaker project, when not given as argument",
			}),
			&cli.StringSliceFlag{
				Name:  "param",
				Usage: "extra SSM parameter suffix to read, repeatable",
			},
		},
		Action: EnvShowAction,
		Output: true,
		Meta:   meta,
	}).Build()

	return (&CommandBuilder{
		Name:     "env",
		Usage:    "data science environments",
		Commands: []*cli.Command{show},
		Meta:     meta,
	}).Build()
}
