// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/staranto/smops/internal/meta"
	"github.com/staranto/smops/internal/org"
)

// OuAccountsAction lists the member accounts of the OUs given as arguments.
func OuAccountsAction(ctx context.Context, cmd *cli.Command) error {
	runner := &RowsActionRunner{
		CommandName:    "ou",
		DefaultColumns: []string{"id", "name", "status", "ou"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]map[string]any, error) {
			ous := append(cmd.Args().Slice(), cmd.StringSlice("ou-id")...)
			if len(ous) == 0 {
				return nil, errors.New("no OU id given")
			}

			cfg, err := loadAWSConfig(ctx, cmd)
			if err != nil {
				return nil, err
			}

			accounts, err := org.ListAccounts(ctx, newOrganizations(cfg), ous...)
			if err != nil {
				return nil, err
			}
			return ToRows(accounts)
		},
	}
	return runner.Run(ctx, cmd)
}

// OuCommandBuilder constructs the "ou" command tree.
func OuCommandBuilder(meta meta.Meta) *cli.Command {
	accounts := (&CommandBuilder{
		Name:      "accounts",
		Usage:     "list the accounts of organizational units",
		UsageText: `smops ou accounts <ou-id>... [options]`,
		Namespace: "ou",
		Flags: []cli.Flag{
			NameSpacedValueChainFlagFromConfigFile("ou", meta.Config.Source, &cli.StringSliceFlag{
				Name:  "ou-id",
				Usage: "OU id, repeatable. Added to the arguments",
			}),
		},
		Action: OuAccountsAction,
		Output: true,
		Meta:   meta,
	}).Build()

	return (&CommandBuilder{
		Name:     "ou",
		Usage:    "AWS Organizations units",
		Commands: []*cli.Command{accounts},
		Meta:     meta,
	}).Build()
}
