// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/staranto/smops/internal/catalog"
	"github.com/staranto/smops/internal/meta"
)

// productCatalog builds the catalog used by the product commands, honoring
// --param-prefix.
func productCatalog(ctx context.Context, cmd *cli.Command) (*catalog.Catalog, error) {
	cfg, err := loadAWSConfig(ctx, cmd)
	if err != nil {
		return nil, err
	}
	c := newCatalog(cfg)
	if p := cmd.String("param-prefix"); p != "" {
		c.ParamPrefix = p
	}
	return c, nil
}

// ProductTerminateAction terminates a provisioned product and waits for the
// termination record to settle.
func ProductTerminateAction(ctx context.Context, cmd *cli.Command) error {
	runner := &RowsActionRunner{
		CommandName:    "product",
		DefaultColumns: []string{"provisionedProductId", "status"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]map[string]any, error) {
			ppID := cmd.Args().First()
			if ppID == "" {
				return nil, errors.New("missing provisioned product id")
			}

			c, err := productCatalog(ctx, cmd)
			if err != nil {
				return nil, err
			}

			opts, rep := PollOptions(cmd, "terminating "+ppID)
			c.Poll = opts
			status, err := c.TerminateAndWait(ctx, ppID)
			rep.Done(err)
			if err != nil {
				return nil, err
			}
			return []map[string]any{{"provisionedProductId": ppID, "status": status}}, nil
		},
	}
	return runner.Run(ctx, cmd)
}

// ProductProvisionAction launches the product described by --product-file
// and records its provisioned product id in SSM.
func ProductProvisionAction(ctx context.Context, cmd *cli.Command) error {
	runner := &RowsActionRunner{
		CommandName:    "product",
		DefaultColumns: []string{"productId", "portfolioId", "provisionedProductId"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]map[string]any, error) {
			product, err := readProduct(cmd.String("product-file"))
			if err != nil {
				return nil, err
			}

			c, err := productCatalog(ctx, cmd)
			if err != nil {
				return nil, err
			}

			if cmd.Bool("associate-role") {
				if err := c.AssociateRole(ctx, product.PortfolioID); err != nil {
					return nil, err
				}
			}

			ppID, err := c.Provision(ctx, product, provisioningParams(cmd.StringMap("param")))
			if err != nil {
				return nil, err
			}
			return []map[string]any{{
				"productId":            product.ProductID,
				"portfolioId":          product.PortfolioID,
				"provisionedProductId": ppID,
				"parameter":            c.ProvisionedIDParameter(product.ProductID),
			}}, nil
		},
	}
	return runner.Run(ctx, cmd)
}

func readProduct(path string) (catalog.Product, error) {
	var p catalog.Product
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read product file: %w", err)
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("invalid product file %s: %w", path, err)
	}
	if p.ProductID == "" || p.ProvisioningArtifactID == "" {
		return p, fmt.Errorf("product file %s needs ProductId and ProvisioningArtifactIds", path)
	}
	return p, nil
}

// provisioningParams orders --param values by key so repeated runs send the
// same request.
func provisioningParams(m map[string]string) []catalog.Parameter {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make([]catalog.Parameter, 0, len(keys))
	for _, k := range keys {
		params = append(params, catalog.Parameter{Key: k, Value: m[k]})
	}
	return params
}

// ProductCommandBuilder constructs the "product" command tree.
func ProductCommandBuilder(meta meta.Meta) *cli.Command {
	prefixFlag := func() cli.Flag {
		return NameSpacedValueChainFlagFromConfigFile("product", meta.Config.Source, &cli.StringFlag{
			Name:    "param-prefix",
			Usage:   "SSM path of the provisioned product ids",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMOPS_PRODUCT_PARAM_PREFIX")),
			Value:   catalog.DefaultParamPrefix,
		})
	}

	terminate := (&CommandBuilder{
		Name:      "terminate",
		Usage:     "terminate a provisioned product and wait for it",
		UsageText: `smops product terminate <provisioned-product-id> [options]`,
		Namespace: "product",
		Flags:     append([]cli.Flag{prefixFlag()}, NewPollFlags("product", meta.Config.Source)...),
		Action:    ProductTerminateAction,
		Output:    true,
		Meta:      meta,
	}).Build()

	provision := (&CommandBuilder{
		Name:      "provision",
		Usage:     "launch a Service Catalog product",
		UsageText: `smops product provision --product-file product.json [--param K=V ...] [options]`,
		Namespace: "product",
		Flags: []cli.Flag{
			prefixFlag(),
			&cli.StringFlag{
				Name:      "product-file",
				Usage:     "JSON file with ProductId, ProductName, ProvisioningArtifactIds and PortfolioId",
				Required:  true,
				TakesFile: true,
			},
			&cli.StringMapFlag{
				Name:  "param",
				Usage: "provisioning parameter as KEY=VALUE, repeatable",
			},
			&cli.BoolFlag{
				Name:  "associate-role",
				Usage: "associate the caller role with the product portfolio first",
			},
		},
		Action: ProductProvisionAction,
		Output: true,
		Meta:   meta,
	}).Build()

	return (&CommandBuilder{
		Name:     "product",
		Usage:    "Service Catalog products",
		Commands: []*cli.Command{provision, terminate},
		Meta:     meta,
	}).Build()
}
