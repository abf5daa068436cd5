// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"

	awsx "github.com/staranto/smops/internal/aws"
	"github.com/staranto/smops/internal/org"
)

// ErrEndpointNotInService is returned when an endpoint is not InService.
var ErrEndpointNotInService = errors.New("endpoint not InService")

// EndpointAPI is the slice of the SageMaker client used to test endpoints.
type EndpointAPI interface {
	DescribeEndpoint(ctx context.Context, params *sagemaker.DescribeEndpointInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeEndpointOutput, error)
	DescribeEndpointConfig(ctx context.Context, params *sagemaker.DescribeEndpointConfigInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeEndpointConfigOutput, error)
}

// TestResult is the outcome of testing one endpoint.
type TestResult struct {
	EndpointName string `json:"EndpointName"`
	Success      bool   `json:"Success"`
}

// Invoker exercises an endpoint that is in service.
type Invoker func(ctx context.Context, sm EndpointAPI, endpoint string) (*TestResult, error)

// NoopInvoke reports success without calling the endpoint.
func NoopInvoke(_ context.Context, _ EndpointAPI, endpoint string) (*TestResult, error) {
	log.Infof("invoking the endpoint %s", endpoint)
	return &TestResult{EndpointName: endpoint, Success: true}, nil
}

// TestEndpoint checks that endpoint is InService, logs whether data capture
// is on and then runs invoke. A nil invoke is NoopInvoke.
func TestEndpoint(ctx context.Context, sm EndpointAPI, endpoint string, invoke Invoker) (*TestResult, error) {
	if invoke == nil {
		invoke = NoopInvoke
	}

	ep, err := sm.DescribeEndpoint(ctx, &sagemaker.DescribeEndpointInput{EndpointName: aws.String(endpoint)})
	if err != nil {
		return nil, fmt.Errorf("failed to describe endpoint %s: %s", endpoint, awsx.ErrorMessage(err))
	}
	if ep.EndpointStatus != smtypes.EndpointStatusInService {
		return nil, fmt.Errorf("%w: SageMaker endpoint: %s status: %s", ErrEndpointNotInService, endpoint, ep.EndpointStatus)
	}

	cfgName := aws.ToString(ep.EndpointConfigName)
	cfg, err := sm.DescribeEndpointConfig(ctx, &sagemaker.DescribeEndpointConfigInput{EndpointConfigName: aws.String(cfgName)})
	if err != nil {
		return nil, fmt.Errorf("failed to describe endpoint config %s: %s", cfgName, awsx.ErrorMessage(err))
	}
	if dc := cfg.DataCaptureConfig; dc != nil && aws.ToBool(dc.EnableCapture) {
		log.Infof("data capture enabled for endpoint config %s", cfgName)
	} else {
		log.Infof("data capture is not enabled for the endpoint config %s", cfgName)
	}

	return invoke(ctx, sm, endpoint)
}

// AccountResult is one record of the test results file.
type AccountResult struct {
	AccountID            string      `json:"AccountId"`
	EnvironmentName      string      `json:"EnvironmentName"`
	EnvironmentType      string      `json:"EnvironmentType"`
	SageMakerProjectName string      `json:"SageMakerProjectName"`
	SageMakerProjectID   string      `json:"SageMakerProjectId"`
	TestResults          *TestResult `json:"TestResults"`
}

// Tester tests a deployed stage in every target account.
type Tester struct {
	STS           awsx.CallerIdentityAPI
	Organizations organizations.ListAccountsForParentAPIClient
	// AssumeSageMaker returns a SageMaker client acting as roleARN.
	AssumeSageMaker func(roleARN string) EndpointAPI
	Invoke          Invoker
}

// EndpointName is the name the deployment template gives the endpoint of a
// stage.
func EndpointName(cfg Params) string {
	return fmt.Sprintf("%s-%s-%s", cfg.Get("SageMakerProjectName"), cfg.Get("SageMakerProjectId"), cfg.Get("EnvType"))
}

// Test reads the stage configuration at configPath and tests the endpoint in
// the caller account, or in every account of OrgUnitId when set. Each result
// is appended to outputPath.
func (t *Tester) Test(ctx context.Context, configPath, outputPath string) ([]AccountResult, error) {
	cfg, err := ReadParams(configPath)
	if err != nil {
		return nil, err
	}

	accounts, err := t.accounts(ctx, cfg.Get("OrgUnitId"))
	if err != nil {
		return nil, err
	}

	var results []AccountResult
	for _, a := range accounts {
		role := cfg.Get("ExecutionRoleName")
		log.Infof("assuming the model execution role %s in %s", role, a)

		res, err := TestEndpoint(ctx, t.AssumeSageMaker(awsx.RoleARNFor(a, role)), EndpointName(cfg), t.Invoke)
		if err != nil {
			return results, fmt.Errorf("account %s: %w", a, err)
		}

		r := AccountResult{
			AccountID:            a,
			EnvironmentName:      cfg.Get("EnvName"),
			EnvironmentType:      cfg.Get("EnvType"),
			SageMakerProjectName: cfg.Get("SageMakerProjectName"),
			SageMakerProjectID:   cfg.Get("SageMakerProjectId"),
			TestResults:          res,
		}
		if err := appendResult(outputPath, r); err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

func (t *Tester) accounts(ctx context.Context, ou string) ([]string, error) {
	if ou == "" {
		a, err := awsx.CallerAccount(ctx, t.STS)
		if err != nil {
			return nil, err
		}
		return []string{a}, nil
	}
	log.Infof("multi-account deployment enabled, testing the endpoint in the accounts of %s", ou)
	return org.AccountIDs(ctx, t.Organizations, ou)
}

func appendResult(path string, r AccountResult) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	log.Info(string(b))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
