// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleARN(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "assumed role",
			in:   "arn:aws:sts::123456789012:assumed-role/ProvisionLambdaRole/provision-sc-product",
			want: "arn:aws:iam::123456789012:role/ProvisionLambdaRole",
		},
		{
			name: "iam role unchanged",
			in:   "arn:aws:iam::123456789012:role/Admin",
			want: "arn:aws:iam::123456789012:role/Admin",
		},
		{
			name: "gov partition",
			in:   "arn:aws-us-gov:sts::123456789012:assumed-role/R/s",
			want: "arn:aws-us-gov:iam::123456789012:role/R",
		},
		{name: "federated user", in: "arn:aws:sts::123456789012:federated-user/bob", wantErr: true},
		{name: "garbage", in: "not-an-arn", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RoleARN(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrincipalBuilders(t *testing.T) {
	assert.Equal(t, "arn:aws:iam::111:role/Exec", RoleARNFor("111", "Exec"))
	assert.Equal(t, "arn:aws:iam::111:root", RootPrincipal("111"))
}

type fakeSTS struct {
	arn     string
	account string
	err     error
}

func (f *fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{Arn: awsv2.String(f.arn), Account: awsv2.String(f.account)}, nil
}

func TestCallerRoleARN(t *testing.T) {
	ctx := context.Background()

	got, err := CallerRoleARN(ctx, &fakeSTS{arn: "arn:aws:sts::9:assumed-role/Lambda/fn"})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::9:role/Lambda", got)

	_, err = CallerRoleARN(ctx, &fakeSTS{err: errors.New("boom")})
	assert.ErrorContains(t, err, "boom")

	acct, err := CallerAccount(ctx, &fakeSTS{account: "9"})
	require.NoError(t, err)
	assert.Equal(t, "9", acct)
}

func TestIsErrorCode(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "ValidationException", Message: "group not found"}
	wrapped := fmt.Errorf("describe: %w", apiErr)

	assert.True(t, IsErrorCode(wrapped, "ValidationException"))
	assert.True(t, IsErrorCode(wrapped, "Other", "ValidationException"))
	assert.False(t, IsErrorCode(wrapped, "AccessDenied"))
	assert.False(t, IsErrorCode(errors.New("plain"), "ValidationException"))

	assert.Equal(t, "group not found", ErrorMessage(wrapped))
	assert.Equal(t, "plain", ErrorMessage(errors.New("plain")))
	assert.Equal(t, "", ErrorMessage(nil))
}

func TestAssumeRoleConfig_DoesNotMutateBase(t *testing.T) {
	base := awsv2.Config{Region: "eu-west-1"}
	cfg := AssumeRoleConfig(base, nil, "arn:aws:iam::1:role/R")

	assert.Nil(t, base.Credentials)
	assert.NotNil(t, cfg.Credentials)
	assert.Equal(t, "eu-west-1", cfg.Region)
}

func TestStaticCredentialsConfig(t *testing.T) {
	base := awsv2.Config{Region: "eu-west-1"}
	cfg := StaticCredentialsConfig(base, "AKIA", "secret", "token")

	assert.Nil(t, base.Credentials)
	require.NotNil(t, cfg.Credentials)
	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIA", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
	assert.Equal(t, "token", creds.SessionToken)
	assert.Equal(t, "eu-west-1", cfg.Region)
}

type fakeSSM struct {
	values map[string]string
	put    map[string]string
}

func (f *fakeSSM) DescribeParameters(_ context.Context, in *ssm.DescribeParametersInput, _ ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error) {
	fragment := in.ParameterFilters[0].Values[0]
	out := &ssm.DescribeParametersOutput{}
	for name := range f.values {
		if strings.Contains(name, fragment) {
			out.Parameters = append(out.Parameters, ssmtypes.ParameterMetadata{Name: awsv2.String(name)})
		}
	}
	return out, nil
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	v, ok := f.values[*in.Name]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "ParameterNotFound"}
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: in.Name, Value: awsv2.String(v)}}, nil
}

func (f *fakeSSM) PutParameter(_ context.Context, in *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	if f.put == nil {
		f.put = map[string]string{}
	}
	f.put[*in.Name] = *in.Value
	return &ssm.PutParameterOutput{}, nil
}

func TestParameters(t *testing.T) {
	ctx := context.Background()
	client := &fakeSSM{values: map[string]string{"sagemaker-domain-id": "d-abc"}}

	v, err := GetParameter(ctx, client, "sagemaker-domain-id")
	require.NoError(t, err)
	assert.Equal(t, "d-abc", v)

	_, err = GetParameter(ctx, client, "missing")
	assert.ErrorContains(t, err, "missing")
	assert.True(t, IsErrorCode(err, "ParameterNotFound"))

	require.NoError(t, PutParameter(ctx, client, "/p/id", "pp-1"))
	assert.Equal(t, "pp-1", client.put["/p/id"])
}

func TestFindParameter(t *testing.T) {
	ctx := context.Background()

	client := &fakeSSM{values: map[string]string{"sagemaker-domain-id": "d-abc", "other": "x"}}
	v, ok, err := FindParameter(ctx, client, "sagemaker-domain-id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "d-abc", v)

	client.values["dev-sagemaker-domain-id"] = "d-def"
	_, ok, err = FindParameter(ctx, client, "sagemaker-domain-id")
	require.NoError(t, err)
	assert.False(t, ok, "ambiguous match")

	_, ok, err = FindParameter(ctx, client, "nothing")
	require.NoError(t, err)
	assert.False(t, ok)
}
