// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/servicecatalog"

	"github.com/staranto/smops/internal/catalog"
)

// SageMakerProvider is the provider name of the portfolio SageMaker shares
// when projects are enabled.
const SageMakerProvider = "Amazon SageMaker"

// PortfolioEnabler turns on SageMaker projects for the account.
type PortfolioEnabler interface {
	EnableSagemakerServicecatalogPortfolio(ctx context.Context, params *sagemaker.EnableSagemakerServicecatalogPortfolioInput, optFns ...func(*sagemaker.Options)) (*sagemaker.EnableSagemakerServicecatalogPortfolioOutput, error)
}

// PortfolioShareAPI is the slice of the Service Catalog client used to find
// and join the SageMaker portfolio.
type PortfolioShareAPI interface {
	servicecatalog.ListAcceptedPortfolioSharesAPIClient
	catalog.PrincipalAssociator
}

// EnableProjects enables SageMaker projects and lets the Studio execution
// role use the SageMaker portfolio.
type EnableProjects struct {
	SageMaker      PortfolioEnabler
	ServiceCatalog PortfolioShareAPI
}

// Create accepts the portfolio share and associates ExecutionRole with it.
func (h *EnableProjects) Create(ctx context.Context, event cfn.Event) (map[string]any, error) {
	role, err := StringProp(event, "ExecutionRole")
	if err != nil {
		return nil, err
	}

	if _, err := h.SageMaker.EnableSagemakerServicecatalogPortfolio(ctx, &sagemaker.EnableSagemakerServicecatalogPortfolioInput{}); err != nil {
		return nil, fmt.Errorf("failed to enable SageMaker projects: %w", err)
	}

	portfolioID, err := h.sageMakerPortfolio(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("associating %s with portfolio %s", role, portfolioID)

	if err := catalog.AssociatePrincipal(ctx, h.ServiceCatalog, portfolioID, role); err != nil {
		return nil, err
	}
	return map[string]any{"PortfolioId": portfolioID}, nil
}

func (h *EnableProjects) sageMakerPortfolio(ctx context.Context) (string, error) {
	p := servicecatalog.NewListAcceptedPortfolioSharesPaginator(h.ServiceCatalog, &servicecatalog.ListAcceptedPortfolioSharesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to list accepted portfolio shares: %w", err)
		}
		for _, d := range page.PortfolioDetails {
			if aws.ToString(d.ProviderName) == SageMakerProvider {
				return aws.ToString(d.Id), nil
			}
		}
	}
	return "", fmt.Errorf("no accepted portfolio from %q", SageMakerProvider)
}
