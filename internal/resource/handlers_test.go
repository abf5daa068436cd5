// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/aws/aws-sdk-go-v2/service/servicecatalog"
	sctypes "github.com/aws/aws-sdk-go-v2/service/servicecatalog/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	awsx "github.com/staranto/smops/internal/aws"
	"github.com/staranto/smops/internal/environment"
	"github.com/staranto/smops/internal/poll"
)

var ctx = context.Background()

type fakeSSM map[string]string

func (f fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	v, ok := f[aws.ToString(in.Name)]
	if !ok {
		return nil, errors.New("ParameterNotFound: " + aws.ToString(in.Name))
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String(v)}}, nil
}

func TestDomainID(t *testing.T) {
	h := &DomainID{SSM: fakeSSM{"/ml/sagemaker-domain-id": "d-123"}}

	data, err := h.Create(ctx, newEvent(cfn.RequestCreate, map[string]any{"SSMParameterName": "/ml/sagemaker-domain-id"}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"SageMakerDomainId": "d-123"}, data)

	_, err = h.Create(ctx, newEvent(cfn.RequestCreate, map[string]any{"SSMParameterName": "/nope"}))
	assert.ErrorContains(t, err, "/nope")
}

type fakeProjects struct {
	enabled    bool
	shares     [][]sctypes.PortfolioDetail
	associated []string
}

func (f *fakeProjects) EnableSagemakerServicecatalogPortfolio(context.Context, *sagemaker.EnableSagemakerServicecatalogPortfolioInput, ...func(*sagemaker.Options)) (*sagemaker.EnableSagemakerServicecatalogPortfolioOutput, error) {
	f.enabled = true
	return &sagemaker.EnableSagemakerServicecatalogPortfolioOutput{}, nil
}

func (f *fakeProjects) ListAcceptedPortfolioShares(_ context.Context, in *servicecatalog.ListAcceptedPortfolioSharesInput, _ ...func(*servicecatalog.Options)) (*servicecatalog.ListAcceptedPortfolioSharesOutput, error) {
	idx := 0
	if in.PageToken != nil {
		idx = 1
	}
	out := &servicecatalog.ListAcceptedPortfolioSharesOutput{PortfolioDetails: f.shares[idx]}
	if idx+1 < len(f.shares) {
		out.NextPageToken = aws.String("p2")
	}
	return out, nil
}

func (f *fakeProjects) AssociatePrincipalWithPortfolio(_ context.Context, in *servicecatalog.AssociatePrincipalWithPortfolioInput, _ ...func(*servicecatalog.Options)) (*servicecatalog.AssociatePrincipalWithPortfolioOutput, error) {
	f.associated = append(f.associated, aws.ToString(in.PortfolioId)+"="+aws.ToString(in.PrincipalARN))
	return &servicecatalog.AssociatePrincipalWithPortfolioOutput{}, nil
}

func TestEnableProjects(t *testing.T) {
	f := &fakeProjects{shares: [][]sctypes.PortfolioDetail{
		{{Id: aws.String("port-other"), ProviderName: aws.String("IT")}},
		{{Id: aws.String("port-sm"), ProviderName: aws.String(SageMakerProvider)}},
	}}
	h := &EnableProjects{SageMaker: f, ServiceCatalog: f}

	data, err := h.Create(ctx, newEvent(cfn.RequestCreate, map[string]any{"ExecutionRole": "arn:aws:iam::1:role/Studio"}))
	require.NoError(t, err)
	assert.True(t, f.enabled)
	assert.Equal(t, []string{"port-sm=arn:aws:iam::1:role/Studio"}, f.associated)
	assert.Equal(t, "port-sm", data["PortfolioId"])
}

func TestEnableProjects_NoPortfolio(t *testing.T) {
	f := &fakeProjects{shares: [][]sctypes.PortfolioDetail{{}}}
	h := &EnableProjects{SageMaker: f, ServiceCatalog: f}

	_, err := h.Create(ctx, newEvent(cfn.RequestCreate, map[string]any{"ExecutionRole": "r"}))
	assert.ErrorContains(t, err, "Amazon SageMaker")
	assert.Empty(t, f.associated)
}

type fakeNetwork struct {
	subnets      []ec2types.Subnet
	tableFilters []ec2types.Filter
}

func (f *fakeNetwork) DescribeSubnets(context.Context, *ec2.DescribeSubnetsInput, ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	return &ec2.DescribeSubnetsOutput{Subnets: f.subnets}, nil
}

func (f *fakeNetwork) DescribeRouteTables(_ context.Context, in *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	f.tableFilters = in.Filters
	return &ec2.DescribeRouteTablesOutput{RouteTables: []ec2types.RouteTable{{RouteTableId: aws.String("rtb-1")}}}, nil
}

func subnet(id, az, cidr string) ec2types.Subnet {
	return ec2types.Subnet{SubnetId: aws.String(id), AvailabilityZone: aws.String(az), CidrBlock: aws.String(cidr)}
}

func TestNetworkConfiguration(t *testing.T) {
	f := &fakeNetwork{subnets: []ec2types.Subnet{
		subnet("subnet-a", "eu-west-1a", "10.0.1.0/24"),
		subnet("subnet-b", "eu-west-1b", "10.0.2.0/24"),
		subnet("subnet-c", "eu-west-1c", "10.0.2.0/24"),
		subnet("subnet-d", "eu-west-1a", "10.9.0.0/24"),
	}}
	h := &NetworkConfiguration{EC2: f}

	data, err := h.Create(ctx, newEvent(cfn.RequestCreate, map[string]any{
		"SubnetCIDRBlocks":  []any{"10.0.1.0/24", "10.0.2.0/24"},
		"AvailabilityZones": "eu-west-1a,eu-west-1b",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"subnet-a", "subnet-b"}, data["SubnetIds"])
	assert.Equal(t, []string{"rtb-1"}, data["RouteTableIds"])
	require.Len(t, f.tableFilters, 1)
	assert.Equal(t, []string{"subnet-a", "subnet-b"}, f.tableFilters[0].Values)
}

func TestNetworkConfiguration_NoMatch(t *testing.T) {
	f := &fakeNetwork{}
	data, err := (&NetworkConfiguration{EC2: f}).Create(ctx, newEvent(cfn.RequestCreate, map[string]any{
		"SubnetCIDRBlocks": []any{"10.0.1.0/24"}, "AvailabilityZones": []any{"eu-west-1a"},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{}, data["RouteTableIds"])
	assert.Nil(t, f.tableFilters)
}

const basePolicy = `{"Version":"2012-10-17","Statement":[` +
	`{"Sid":"AllowCrossAccount","Effect":"Allow","Principal":{"AWS":"arn:aws:iam::100:role/Dev"},"Action":"*","Resource":"*"},` +
	`{"Sid":"DenyNoVPC","Effect":"Deny","Principal":"*","Action":"*","Resource":"*","Condition":{"StringNotEquals":{"aws:sourceVpce":"vpce-dev"}}}]}`

type fakePolicies struct {
	bucket string
	key    string
	name   string
}

func (f *fakePolicies) GetBucketPolicy(context.Context, *s3.GetBucketPolicyInput, ...func(*s3.Options)) (*s3.GetBucketPolicyOutput, error) {
	return &s3.GetBucketPolicyOutput{Policy: aws.String(basePolicy)}, nil
}

func (f *fakePolicies) PutBucketPolicy(_ context.Context, in *s3.PutBucketPolicyInput, _ ...func(*s3.Options)) (*s3.PutBucketPolicyOutput, error) {
	f.bucket = aws.ToString(in.Policy)
	return &s3.PutBucketPolicyOutput{}, nil
}

func (f *fakePolicies) GetKeyPolicy(context.Context, *kms.GetKeyPolicyInput, ...func(*kms.Options)) (*kms.GetKeyPolicyOutput, error) {
	return &kms.GetKeyPolicyOutput{Policy: aws.String(basePolicy)}, nil
}

func (f *fakePolicies) PutKeyPolicy(_ context.Context, in *kms.PutKeyPolicyInput, _ ...func(*kms.Options)) (*kms.PutKeyPolicyOutput, error) {
	f.key = aws.ToString(in.Policy)
	f.name = aws.ToString(in.PolicyName)
	return &kms.PutKeyPolicyOutput{}, nil
}

func TestCrossAccount(t *testing.T) {
	f := &fakePolicies{}
	var assumed []string
	perAccount := map[string]fakeSSM{
		"arn:aws:iam::200:role/Setup": {"s3-vpce": "vpce-s3-200", "kms-vpce": "vpce-kms-200"},
		"arn:aws:iam::300:role/Setup": {"s3-vpce": "vpce-s3-300", "kms-vpce": "vpce-kms-300"},
	}
	h := &CrossAccount{S3: f, KMS: f, AssumeSSM: func(role string) awsx.ParameterAPI {
		assumed = append(assumed, role)
		return perAccount[role]
	}}

	data, err := h.Create(ctx, newEvent(cfn.RequestCreate, map[string]any{
		"Accounts":            []any{"200", "300"},
		"PrincipalRoleName":   "Exec",
		"SetupRoleName":       "Setup",
		"S3BucketName":        "data",
		"KMSKeyId":            "key-1",
		"S3VPCESSMParamName":  "s3-vpce",
		"KMSVPCESSMParamName": "kms-vpce",
	}))
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", data["Result"])
	assert.Len(t, assumed, 4)

	var principals []string
	for _, p := range gjson.Get(f.bucket, "Statement.0.Principal.AWS").Array() {
		principals = append(principals, p.String())
	}
	assert.Equal(t, []string{"arn:aws:iam::100:role/Dev", "arn:aws:iam::200:role/Exec", "arn:aws:iam::300:role/Exec"}, principals)
	assert.Equal(t, `["vpce-dev","vpce-s3-200","vpce-s3-300"]`, gjson.Get(f.bucket, "Statement.1.Condition.StringNotEquals.aws:sourceVpce").Raw)
	assert.Equal(t, `["vpce-dev","vpce-kms-200","vpce-kms-300"]`, gjson.Get(f.key, "Statement.1.Condition.StringNotEquals.aws:sourceVpce").Raw)
	assert.Equal(t, KeyPolicyName, f.name)
}

func TestCrossAccount_DryRun(t *testing.T) {
	f := &fakePolicies{}
	h := &CrossAccount{S3: f, KMS: f, DryRun: true, AssumeSSM: func(string) awsx.ParameterAPI {
		return fakeSSM{"s3-vpce": "vpce-s3-200", "kms-vpce": "vpce-kms-200"}
	}}

	changes, err := h.Setup(ctx, CrossAccountInput{
		Accounts:          []string{"200"},
		PrincipalRoleName: "Exec",
		SetupRoleName:     "Setup",
		BucketName:        "data",
		KMSKeyID:          "key-1",
		S3VPCEParam:       "s3-vpce",
		KMSVPCEParam:      "kms-vpce",
	})
	require.NoError(t, err)
	assert.Empty(t, f.bucket)
	assert.Empty(t, f.key)

	require.Len(t, changes, 2)
	assert.Equal(t, "s3://data", changes[0].Resource)
	assert.False(t, changes[0].Applied)
	assert.Contains(t, changes[0].Diff, "arn:aws:iam::200:role/Exec")
	assert.Contains(t, changes[0].Diff, "vpce-s3-200")
	assert.Equal(t, "kms:key-1", changes[1].Resource)
	assert.Contains(t, changes[1].Diff, "vpce-kms-200")
}

func TestCrossAccount_MissingProperty(t *testing.T) {
	h := &CrossAccount{}
	_, err := h.Create(ctx, newEvent(cfn.RequestCreate, map[string]any{"Accounts": []any{"1"}}))
	assert.ErrorContains(t, err, "PrincipalRoleName")
}

type fakeApps struct {
	describeErr error
	apps        []smtypes.AppDetails
	deleted     []string
	// listsUntilGone is the number of ListApps calls after deletion that
	// still report the apps as deleting.
	listsUntilGone int
}

func (f *fakeApps) DescribeDomain(context.Context, *sagemaker.DescribeDomainInput, ...func(*sagemaker.Options)) (*sagemaker.DescribeDomainOutput, error) {
	return &sagemaker.DescribeDomainOutput{}, f.describeErr
}

func (f *fakeApps) ListApps(context.Context, *sagemaker.ListAppsInput, ...func(*sagemaker.Options)) (*sagemaker.ListAppsOutput, error) {
	if len(f.deleted) > 0 {
		if f.listsUntilGone == 0 {
			for i := range f.apps {
				f.apps[i].Status = smtypes.AppStatusDeleted
			}
		} else {
			f.listsUntilGone--
		}
	}
	return &sagemaker.ListAppsOutput{Apps: f.apps}, nil
}

func (f *fakeApps) DeleteApp(_ context.Context, in *sagemaker.DeleteAppInput, _ ...func(*sagemaker.Options)) (*sagemaker.DeleteAppOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.AppName))
	for i := range f.apps {
		if aws.ToString(f.apps[i].AppName) == aws.ToString(in.AppName) {
			f.apps[i].Status = smtypes.AppStatusDeleting
		}
	}
	return &sagemaker.DeleteAppOutput{}, nil
}

func app(name string, typ smtypes.AppType, status smtypes.AppStatus) smtypes.AppDetails {
	return smtypes.AppDetails{AppName: aws.String(name), AppType: typ, Status: status, DomainId: aws.String("d-1"), UserProfileName: aws.String("alice")}
}

func TestDeleteApps(t *testing.T) {
	f := &fakeApps{listsUntilGone: 2, apps: []smtypes.AppDetails{
		app("kg-1", smtypes.AppTypeKernelGateway, smtypes.AppStatusInService),
		app("kg-old", smtypes.AppTypeKernelGateway, smtypes.AppStatusDeleted),
		app("kg-failed", smtypes.AppTypeKernelGateway, smtypes.AppStatusFailed),
		app("kg-going", smtypes.AppTypeKernelGateway, smtypes.AppStatusDeleting),
		app("jupyter", smtypes.AppTypeJupyterServer, smtypes.AppStatusInService),
	}}
	var ticks []string
	h := &DeleteApps{SageMaker: f, Poll: poll.Options{Interval: -1, OnTick: func(_ int, status string) { ticks = append(ticks, status) }}}

	id, _, err := h.Handle(ctx, newEvent(cfn.RequestCreate, map[string]any{"DomainId": "d-1"}))
	require.NoError(t, err)
	assert.Equal(t, "d-1", id)
	assert.Empty(t, f.deleted)

	e := newEvent(cfn.RequestDelete, nil)
	e.PhysicalResourceID = "d-1"
	id, _, err = h.Handle(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, "d-1", id)
	assert.Equal(t, []string{"kg-1", "kg-failed"}, f.deleted)
	require.NotEmpty(t, ticks)
	assert.Equal(t, "number of active KernelGateway apps: 3", ticks[0])
}

func TestDeleteApps_DomainGone(t *testing.T) {
	f := &fakeApps{describeErr: errors.New("ResourceNotFound")}
	h := &DeleteApps{SageMaker: f}

	e := newEvent(cfn.RequestDelete, nil)
	_, _, err := h.Handle(ctx, e)
	require.NoError(t, err)
	assert.Empty(t, f.deleted)
}

type fakeBuild struct{ project string }

func (f *fakeBuild) StartBuild(_ context.Context, in *codebuild.StartBuildInput, _ ...func(*codebuild.Options)) (*codebuild.StartBuildOutput, error) {
	f.project = aws.ToString(in.ProjectName)
	return &codebuild.StartBuildOutput{Build: &cbtypes.Build{Id: aws.String(f.project + ":42")}}, nil
}

func TestStartBuild(t *testing.T) {
	f := &fakeBuild{}
	data, err := (&StartBuild{CodeBuild: f}).Create(ctx, newEvent(cfn.RequestCreate, map[string]any{"ProjectName": "seed"}))
	require.NoError(t, err)
	assert.Equal(t, "seed", f.project)
	assert.Equal(t, "seed:42", data["BuildId"])
}

type fakeIAM map[string]error

func (f fakeIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	if err := f[aws.ToString(in.RoleName)]; err != nil {
		return nil, err
	}
	return &iam.GetRoleOutput{}, nil
}

func TestCheckRoles(t *testing.T) {
	h := &CheckRoles{IAM: fakeIAM{"AmazonSageMakerServiceCatalogProductsUseRole": &iamtypes.NoSuchEntityException{Message: aws.String("no")}}}

	data, err := h.Create(ctx, newEvent(cfn.RequestCreate, map[string]any{
		"RoleNames": []any{"AmazonSageMakerServiceCatalogProductsLaunchRole", "AmazonSageMakerServiceCatalogProductsUseRole"},
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"AmazonSageMakerServiceCatalogProductsLaunchRole": "",
		"AmazonSageMakerServiceCatalogProductsUseRole":    "AmazonSageMakerServiceCatalogProductsUseRole",
	}, data)

	h = &CheckRoles{IAM: fakeIAM{"R": errors.New("AccessDenied")}}
	_, err = h.Create(ctx, newEvent(cfn.RequestCreate, map[string]any{"RoleNames": []any{"R"}}))
	assert.ErrorContains(t, err, "AccessDenied")
}

type fakeOrg map[string][]string

func (f fakeOrg) ListAccountsForParent(_ context.Context, in *organizations.ListAccountsForParentInput, _ ...func(*organizations.Options)) (*organizations.ListAccountsForParentOutput, error) {
	out := &organizations.ListAccountsForParentOutput{}
	for _, id := range f[aws.ToString(in.ParentId)] {
		out.Accounts = append(out.Accounts, orgtypes.Account{Id: aws.String(id)})
	}
	return out, nil
}

func TestOUAccounts(t *testing.T) {
	h := &OUAccounts{Organizations: fakeOrg{"ou-1": {"111"}, "ou-2": {"222", "333"}}}
	data, err := h.Create(ctx, newEvent(cfn.RequestCreate, map[string]any{"OUIds": []any{"ou-1", "ou-2"}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "222", "333"}, data["Accounts"])
}

type fakeEnvSageMaker struct{}

func (fakeEnvSageMaker) DescribeProject(context.Context, *sagemaker.DescribeProjectInput, ...func(*sagemaker.Options)) (*sagemaker.DescribeProjectOutput, error) {
	return &sagemaker.DescribeProjectOutput{CreatedBy: &smtypes.UserContext{DomainId: aws.String("d-1")}}, nil
}

func (fakeEnvSageMaker) DescribeDomain(context.Context, *sagemaker.DescribeDomainInput, ...func(*sagemaker.Options)) (*sagemaker.DescribeDomainOutput, error) {
	return &sagemaker.DescribeDomainOutput{DomainId: aws.String("d-1"), DomainArn: aws.String("arn:d-1")}, nil
}

func (fakeEnvSageMaker) ListTags(context.Context, *sagemaker.ListTagsInput, ...func(*sagemaker.Options)) (*sagemaker.ListTagsOutput, error) {
	return &sagemaker.ListTagsOutput{Tags: []smtypes.Tag{
		{Key: aws.String("EnvironmentName"), Value: aws.String("ml")},
		{Key: aws.String("EnvironmentType"), Value: aws.String("prod")},
	}}, nil
}

func TestEnvConfiguration(t *testing.T) {
	params := fakeSSM{
		"ml-prod-data-bucket-name":  "data",
		"ml-prod-model-bucket-name": "models",
		"ml-prod-s3-vpce-id":        "vpce-1",
	}
	h := &EnvConfiguration{Resolver: environment.New(fakeEnvSageMaker{}, params)}

	data, err := h.Create(ctx, newEvent(cfn.RequestCreate, map[string]any{"SageMakerProjectName": "churn"}))
	require.NoError(t, err)
	assert.Equal(t, "data", data["DataBucketName"])
	assert.Equal(t, "models", data["ModelBucketName"])
	assert.Equal(t, "vpce-1", data["S3VPCEId"])
	assert.Equal(t, "d-1", data["DomainId"])

	delete(params, "ml-prod-s3-vpce-id")
	_, err = h.Create(ctx, newEvent(cfn.RequestCreate, map[string]any{"SageMakerProjectName": "churn"}))
	assert.ErrorContains(t, err, "ml-prod-s3-vpce-id")
}
