// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct{ err error }

func (f fakeRegistry) LatestApproved(context.Context, string) (string, error) {
	return "arn:aws:sagemaker:eu-west-1:111:model-package/churn/3", f.err
}

type fakeSTS struct{}

func (fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{Account: aws.String("111")}, nil
}

func TestBuildStageConfig(t *testing.T) {
	tmpl := Params{{"OrgUnitId", ""}}
	got := BuildStageConfig(tmpl, StageInput{
		Accounts: "222", ExecutionRoleName: "Exec", ProjectName: "churn", ProjectID: "p-1",
		ModelPackageARN: "arn:pkg", EnvName: "ml", EnvType: "staging", VolumeKmsKeyArn: "arn:key",
	})

	keys := make([]string, 0, len(got))
	for _, p := range got {
		keys = append(keys, p.ParameterKey)
	}
	assert.Equal(t, []string{
		"OrgUnitId", "Accounts", "ExecutionRoleName", "SageMakerProjectName", "SageMakerProjectId",
		"ModelPackageName", "EnvName", "EnvType", "VolumeKmsKeyArn", "SageMakerSecurityGroupIds", "SageMakerSubnetIds",
	}, keys)
	assert.Equal(t, "ml-staging-sagemaker-sg-ids", got.Get("SageMakerSecurityGroupIds"))
	assert.Equal(t, "ml-staging-private-subnet-ids", got.Get("SageMakerSubnetIds"))
	assert.Len(t, tmpl, 1, "template must not be modified")
}

func writeTemplates(t *testing.T, dir string) {
	t.Helper()
	for _, n := range []string{"staging-config", "prod-config"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n+"-template.json"), []byte(`[{"ParameterKey":"OrgUnitId","ParameterValue":""}]`), 0o644))
	}
}

func buildOptions(dir string, multi bool) BuildOptions {
	return BuildOptions{
		ProjectName: "churn", ProjectID: "p-1", ModelPackageGroup: "churn-p-1", EnvName: "ml",
		EbsKmsKeyArn: "arn:key", MultiAccount: multi, Dir: dir,
		Stages: []Stage{
			{ConfigName: "staging-config", ExecutionRoleName: "StagingExec", EnvType: "staging", Accounts: "222"},
			{ConfigName: "prod-config", ExecutionRoleName: "ProdExec", EnvType: "prod", Accounts: "333,444"},
		},
	}
}

func TestBuild_SingleAccount(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir)

	written, err := Build(context.Background(), fakeRegistry{}, fakeSTS{}, buildOptions(dir, false))
	require.NoError(t, err)
	require.Len(t, written, 2)

	for _, path := range written {
		p, err := ReadParams(path)
		require.NoError(t, err)
		assert.Equal(t, "111", p.Get("Accounts"))
		assert.Equal(t, "arn:aws:sagemaker:eu-west-1:111:model-package/churn/3", p.Get("ModelPackageName"))
	}

	prod, err := ReadParams(filepath.Join(dir, "prod-config.json"))
	require.NoError(t, err)
	assert.Equal(t, "ProdExec", prod.Get("ExecutionRoleName"))
	assert.Equal(t, "prod", prod.Get("EnvType"))
}

func TestBuild_MultiAccount(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir)

	_, err := Build(context.Background(), fakeRegistry{}, nil, buildOptions(dir, true))
	require.NoError(t, err)

	prod, err := ReadParams(filepath.Join(dir, "prod-config.json"))
	require.NoError(t, err)
	assert.Equal(t, "333,444", prod.Get("Accounts"))
}

func TestBuild_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Build(context.Background(), fakeRegistry{err: errors.New("no approved")}, fakeSTS{}, buildOptions(dir, false))
	assert.ErrorContains(t, err, "no approved")

	_, err = Build(context.Background(), fakeRegistry{}, fakeSTS{}, buildOptions(dir, false))
	assert.ErrorContains(t, err, "staging-config-template.json")
}

type fakeEndpoints struct {
	status  smtypes.EndpointStatus
	capture bool
	names   []string
}

func (f *fakeEndpoints) DescribeEndpoint(_ context.Context, in *sagemaker.DescribeEndpointInput, _ ...func(*sagemaker.Options)) (*sagemaker.DescribeEndpointOutput, error) {
	f.names = append(f.names, aws.ToString(in.EndpointName))
	return &sagemaker.DescribeEndpointOutput{EndpointStatus: f.status, EndpointConfigName: aws.String("cfg-1")}, nil
}

func (f *fakeEndpoints) DescribeEndpointConfig(context.Context, *sagemaker.DescribeEndpointConfigInput, ...func(*sagemaker.Options)) (*sagemaker.DescribeEndpointConfigOutput, error) {
	return &sagemaker.DescribeEndpointConfigOutput{DataCaptureConfig: &smtypes.DataCaptureConfig{EnableCapture: aws.Bool(f.capture)}}, nil
}

func TestTestEndpoint(t *testing.T) {
	res, err := TestEndpoint(context.Background(), &fakeEndpoints{status: smtypes.EndpointStatusInService, capture: true}, "churn-p-1-staging", nil)
	require.NoError(t, err)
	assert.Equal(t, &TestResult{EndpointName: "churn-p-1-staging", Success: true}, res)

	_, err = TestEndpoint(context.Background(), &fakeEndpoints{status: smtypes.EndpointStatusCreating}, "e", nil)
	assert.ErrorIs(t, err, ErrEndpointNotInService)
	assert.ErrorContains(t, err, "Creating")
}

type fakeOrg []string

func (f fakeOrg) ListAccountsForParent(context.Context, *organizations.ListAccountsForParentInput, ...func(*organizations.Options)) (*organizations.ListAccountsForParentOutput, error) {
	out := &organizations.ListAccountsForParentOutput{}
	for _, id := range f {
		out.Accounts = append(out.Accounts, orgtypes.Account{Id: aws.String(id)})
	}
	return out, nil
}

func TestTester(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "staging-config.json")
	outPath := filepath.Join(dir, "results.json")

	cfg := BuildStageConfig(Params{{"OrgUnitId", "ou-1"}}, StageInput{
		ExecutionRoleName: "Exec", ProjectName: "churn", ProjectID: "p-1", EnvName: "ml", EnvType: "staging",
	})
	require.NoError(t, WriteParams(cfgPath, cfg))

	sm := &fakeEndpoints{status: smtypes.EndpointStatusInService}
	var roles []string
	tester := &Tester{
		STS:           fakeSTS{},
		Organizations: fakeOrg{"222", "333"},
		AssumeSageMaker: func(role string) EndpointAPI {
			roles = append(roles, role)
			return sm
		},
	}

	results, err := tester.Test(context.Background(), cfgPath, outPath)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"arn:aws:iam::222:role/Exec", "arn:aws:iam::333:role/Exec"}, roles)
	assert.Equal(t, []string{"churn-p-1-staging", "churn-p-1-staging"}, sm.names)

	b, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"AccountId": "222"`)
	assert.Contains(t, string(b), `"AccountId": "333"`)
	assert.Contains(t, string(b), `"Success": true`)
}

func TestTester_CallerAccount(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "prod-config.json")
	require.NoError(t, WriteParams(cfgPath, Params{{"ExecutionRoleName", "Exec"}, {"OrgUnitId", ""}}))

	var roles []string
	tester := &Tester{STS: fakeSTS{}, AssumeSageMaker: func(role string) EndpointAPI {
		roles = append(roles, role)
		return &fakeEndpoints{status: smtypes.EndpointStatusInService}
	}}

	_, err := tester.Test(context.Background(), cfgPath, filepath.Join(dir, "out.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"arn:aws:iam::111:role/Exec"}, roles)
}
