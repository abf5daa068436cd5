// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/servicecatalog"
	sctypes "github.com/aws/aws-sdk-go-v2/service/servicecatalog/types"
	"github.com/google/uuid"

	awsx "github.com/staranto/smops/internal/aws"
	"github.com/staranto/smops/internal/poll"
)

// DefaultParamPrefix is the SSM path under which provisioned product ids are
// stored.
const DefaultParamPrefix = "/ds-product-catalog"

// ErrTerminationFailed is returned when a termination record ends in a
// status other than CREATED or SUCCEEDED.
var ErrTerminationFailed = errors.New("failed to terminate provisioned product")

// ServiceCatalogAPI is the slice of the Service Catalog client used here.
type ServiceCatalogAPI interface {
	ProvisionProduct(ctx context.Context, params *servicecatalog.ProvisionProductInput, optFns ...func(*servicecatalog.Options)) (*servicecatalog.ProvisionProductOutput, error)
	DescribeProvisionedProduct(ctx context.Context, params *servicecatalog.DescribeProvisionedProductInput, optFns ...func(*servicecatalog.Options)) (*servicecatalog.DescribeProvisionedProductOutput, error)
	TerminateProvisionedProduct(ctx context.Context, params *servicecatalog.TerminateProvisionedProductInput, optFns ...func(*servicecatalog.Options)) (*servicecatalog.TerminateProvisionedProductOutput, error)
	DescribeRecord(ctx context.Context, params *servicecatalog.DescribeRecordInput, optFns ...func(*servicecatalog.Options)) (*servicecatalog.DescribeRecordOutput, error)
	AssociatePrincipalWithPortfolio(ctx context.Context, params *servicecatalog.AssociatePrincipalWithPortfolioInput, optFns ...func(*servicecatalog.Options)) (*servicecatalog.AssociatePrincipalWithPortfolioOutput, error)
	DisassociatePrincipalFromPortfolio(ctx context.Context, params *servicecatalog.DisassociatePrincipalFromPortfolioInput, optFns ...func(*servicecatalog.Options)) (*servicecatalog.DisassociatePrincipalFromPortfolioOutput, error)
}

// SSMAPI reads and writes the provisioned product id parameters.
type SSMAPI interface {
	awsx.ParameterAPI
	awsx.PutParameterAPI
}

// Product is the product description file shipped in a pipeline artifact.
type Product struct {
	ProductID              string `json:"ProductId"`
	ProductName            string `json:"ProductName"`
	ProvisioningArtifactID string `json:"ProvisioningArtifactIds"`
	PortfolioID            string `json:"PortfolioId"`
}

// Parameter is a provisioning parameter as it appears in pipeline user
// parameters.
type Parameter struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// Catalog bundles the clients and settings for Service Catalog operations.
type Catalog struct {
	SC          ServiceCatalogAPI
	SSM         SSMAPI
	STS         awsx.CallerIdentityAPI
	ParamPrefix string
	Poll        poll.Options

	newToken func() string
}

// New returns a Catalog using DefaultParamPrefix.
func New(sc ServiceCatalogAPI, ssm SSMAPI, sts awsx.CallerIdentityAPI) *Catalog {
	return &Catalog{SC: sc, SSM: ssm, STS: sts, ParamPrefix: DefaultParamPrefix}
}

func (c *Catalog) token() string {
	if c.newToken != nil {
		return c.newToken()
	}
	return uuid.NewString()
}

// ProductName derives a unique provisioned product name from a product name:
// lower case, spaces replaced by underscores and a short random suffix.
func ProductName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "_")) + "-" + strings.Split(uuid.NewString(), "-")[0]
}

// ProvisionedIDParameter is the SSM parameter holding the provisioned product
// id of productID.
func (c *Catalog) ProvisionedIDParameter(productID string) string {
	prefix := c.ParamPrefix
	if prefix == "" {
		prefix = DefaultParamPrefix
	}
	return fmt.Sprintf("%s/%s/provisioned-product-id", strings.TrimRight(prefix, "/"), productID)
}

// legacyIDParameter is where older pipelines stored the id, keyed by the
// product name.
func legacyIDParameter(productName string) string {
	return fmt.Sprintf("/%s/provisioned_product_id", productName)
}

// Provision launches product and records the provisioned product id in SSM.
func (c *Catalog) Provision(ctx context.Context, product Product, params []Parameter) (string, error) {
	name := ProductName(product.ProductName)
	log.WithFields(log.Fields{"product": product.ProductID, "name": name}).Info("launching product")

	out, err := c.SC.ProvisionProduct(ctx, &servicecatalog.ProvisionProductInput{
		ProductId:              aws.String(product.ProductID),
		ProvisioningArtifactId: aws.String(product.ProvisioningArtifactID),
		ProvisionedProductName: aws.String(name),
		ProvisioningParameters: toProvisioningParameters(params),
	})
	if err != nil {
		return "", fmt.Errorf("failed to provision product %s: %w", product.ProductID, err)
	}
	if out.RecordDetail == nil {
		return "", fmt.Errorf("provisioning product %s returned no record", product.ProductID)
	}

	ppID := aws.ToString(out.RecordDetail.ProvisionedProductId)
	log.Infof("ProvisionedProductId: %s", ppID)

	if err := awsx.PutParameter(ctx, c.SSM, c.ProvisionedIDParameter(product.ProductID), ppID); err != nil {
		return ppID, err
	}
	return ppID, nil
}

// AssociateRole associates the role of the current credentials with
// portfolioID so it may launch the portfolio's products.
func (c *Catalog) AssociateRole(ctx context.Context, portfolioID string) error {
	roleARN, err := awsx.CallerRoleARN(ctx, c.STS)
	if err != nil {
		return err
	}
	log.Infof("associating the execution role %s with the portfolio %s", roleARN, portfolioID)
	return AssociatePrincipal(ctx, c.SC, portfolioID, roleARN)
}

// PrincipalAssociator is the single call needed to grant a portfolio.
type PrincipalAssociator interface {
	AssociatePrincipalWithPortfolio(ctx context.Context, params *servicecatalog.AssociatePrincipalWithPortfolioInput, optFns ...func(*servicecatalog.Options)) (*servicecatalog.AssociatePrincipalWithPortfolioOutput, error)
}

// AssociatePrincipal grants an IAM principal access to a portfolio.
func AssociatePrincipal(ctx context.Context, client PrincipalAssociator, portfolioID, principalARN string) error {
	_, err := client.AssociatePrincipalWithPortfolio(ctx, &servicecatalog.AssociatePrincipalWithPortfolioInput{
		PortfolioId:   aws.String(portfolioID),
		PrincipalARN:  aws.String(principalARN),
		PrincipalType: sctypes.PrincipalTypeIam,
	})
	if err != nil {
		return fmt.Errorf("failed to associate %s with portfolio %s: %w", principalARN, portfolioID, err)
	}
	return nil
}

// ProvisionedProductID looks up the id stored by Provision. Ids stored under
// the older name-keyed parameter are found as well.
func (c *Catalog) ProvisionedProductID(ctx context.Context, product Product) (string, error) {
	if product.ProductID != "" {
		id, err := awsx.GetParameter(ctx, c.SSM, c.ProvisionedIDParameter(product.ProductID))
		if err == nil {
			return id, nil
		}
		if !awsx.IsErrorCode(err, "ParameterNotFound") || product.ProductName == "" {
			return "", err
		}
	}
	return awsx.GetParameter(ctx, c.SSM, legacyIDParameter(product.ProductName))
}

// Terminate terminates the provisioned instance of product and removes the
// caller's role from the product's portfolio. A failed termination request is
// logged and does not stop the disassociation.
func (c *Catalog) Terminate(ctx context.Context, product Product) error {
	ppID, err := c.ProvisionedProductID(ctx, product)
	if err != nil {
		return err
	}

	if err := c.describe(ctx, ppID); err != nil {
		return err
	}

	log.Infof("terminating the provisioned product %s", ppID)
	if _, err := c.terminate(ctx, ppID); err != nil {
		log.WithError(err).Errorf("terminate of %s failed", ppID)
	}

	roleARN, err := awsx.CallerRoleARN(ctx, c.STS)
	if err != nil {
		return err
	}
	log.Infof("disassociating the execution role %s from the portfolio %s", roleARN, product.PortfolioID)
	_, err = c.SC.DisassociatePrincipalFromPortfolio(ctx, &servicecatalog.DisassociatePrincipalFromPortfolioInput{
		PortfolioId:  aws.String(product.PortfolioID),
		PrincipalARN: aws.String(roleARN),
	})
	if err != nil {
		return fmt.Errorf("failed to disassociate %s from portfolio %s: %w", roleARN, product.PortfolioID, err)
	}
	return nil
}

// TerminateAndWait terminates ppID and polls the termination record until it
// leaves IN_PROGRESS. The first poll is delayed by one interval.
func (c *Catalog) TerminateAndWait(ctx context.Context, ppID string) (string, error) {
	if err := c.describe(ctx, ppID); err != nil {
		return "", err
	}

	log.Infof("terminating the provisioned product %s", ppID)
	record, err := c.terminate(ctx, ppID)
	if err != nil {
		return "", err
	}

	opts := c.Poll
	if opts.Delay == 0 {
		opts.Delay = opts.Interval
	}

	status := string(sctypes.RecordStatusInProgress)
	err = poll.Until(ctx, opts, func(ctx context.Context) (bool, string, error) {
		out, err := c.SC.DescribeRecord(ctx, &servicecatalog.DescribeRecordInput{Id: aws.String(record)})
		if err != nil {
			return false, "", fmt.Errorf("failed to describe record %s: %w", record, err)
		}
		if out.RecordDetail != nil {
			status = string(out.RecordDetail.Status)
		}
		return status != string(sctypes.RecordStatusInProgress),
			fmt.Sprintf("termination of %s: current status: %s", ppID, status), nil
	})
	if err != nil {
		return status, err
	}

	switch sctypes.RecordStatus(status) {
	case sctypes.RecordStatusCreated, sctypes.RecordStatusSucceeded:
		return status, nil
	default:
		return status, fmt.Errorf("%w %s: Status = %s", ErrTerminationFailed, ppID, status)
	}
}

func (c *Catalog) describe(ctx context.Context, ppID string) error {
	out, err := c.SC.DescribeProvisionedProduct(ctx, &servicecatalog.DescribeProvisionedProductInput{Id: aws.String(ppID)})
	if err != nil {
		return fmt.Errorf("failed to describe provisioned product %s: %w", ppID, err)
	}
	if d := out.ProvisionedProductDetail; d != nil {
		log.WithFields(log.Fields{
			"id":     ppID,
			"name":   aws.ToString(d.Name),
			"status": string(d.Status),
		}).Info("provisioned product")
	}
	return nil
}

func (c *Catalog) terminate(ctx context.Context, ppID string) (string, error) {
	out, err := c.SC.TerminateProvisionedProduct(ctx, &servicecatalog.TerminateProvisionedProductInput{
		ProvisionedProductId: aws.String(ppID),
		TerminateToken:       aws.String(c.token()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to terminate provisioned product %s: %w", ppID, err)
	}
	if out.RecordDetail == nil {
		return "", fmt.Errorf("terminating %s returned no record", ppID)
	}
	return aws.ToString(out.RecordDetail.RecordId), nil
}

func toProvisioningParameters(params []Parameter) []sctypes.ProvisioningParameter {
	out := make([]sctypes.ProvisioningParameter, 0, len(params))
	for _, p := range params {
		out = append(out, sctypes.ProvisioningParameter{Key: aws.String(p.Key), Value: aws.String(p.Value)})
	}
	return out
}
