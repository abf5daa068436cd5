// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsefs "github.com/aws/aws-sdk-go-v2/service/efs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/servicecatalog"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/urfave/cli/v3"

	awsx "github.com/staranto/smops/internal/aws"
	"github.com/staranto/smops/internal/catalog"
	"github.com/staranto/smops/internal/deploy"
	"github.com/staranto/smops/internal/efs"
	"github.com/staranto/smops/internal/environment"
	"github.com/staranto/smops/internal/pipeline"
	"github.com/staranto/smops/internal/poll"
	"github.com/staranto/smops/internal/registry"
	"github.com/staranto/smops/internal/resource"
)

// Service client constructors. Tests swap them for fakes.
var (
	loadAWSConfig = func(ctx context.Context, cmd *cli.Command) (aws.Config, error) {
		return awsx.LoadAWSConfig(ctx,
			awsx.WithProfile(cmd.String("profile")),
			awsx.WithRegion(cmd.String("region")),
		)
	}

	newTeardown = func(cfg aws.Config, opts poll.Options) *efs.Teardown {
		return efs.New(awsefs.NewFromConfig(cfg), ec2.NewFromConfig(cfg), opts)
	}

	newParameterFinder = func(cfg aws.Config) awsx.FindParameterAPI {
		return ssm.NewFromConfig(cfg)
	}

	newCatalog = func(cfg aws.Config) *catalog.Catalog {
		return catalog.New(servicecatalog.NewFromConfig(cfg), ssm.NewFromConfig(cfg), sts.NewFromConfig(cfg))
	}

	newRegistry = func(cfg aws.Config) *registry.Registry {
		return registry.New(sagemaker.NewFromConfig(cfg))
	}

	newSTS = func(cfg aws.Config) awsx.CallerIdentityAPI {
		return sts.NewFromConfig(cfg)
	}

	newOrganizations = func(cfg aws.Config) organizations.ListAccountsForParentAPIClient {
		return organizations.NewFromConfig(cfg)
	}

	newResolver = func(cfg aws.Config) *environment.Resolver {
		return environment.New(sagemaker.NewFromConfig(cfg), ssm.NewFromConfig(cfg))
	}

	newPipelineClients = func(cfg aws.Config) (pipeline.SageMakerAPI, pipeline.UploadAPI) {
		return sagemaker.NewFromConfig(cfg), s3.NewFromConfig(cfg)
	}

	newCrossAccount = func(cfg aws.Config) *resource.CrossAccount {
		stsClient := sts.NewFromConfig(cfg)
		return &resource.CrossAccount{
			S3:  s3.NewFromConfig(cfg),
			KMS: kms.NewFromConfig(cfg),
			AssumeSSM: func(roleARN string) awsx.ParameterAPI {
				return ssm.NewFromConfig(awsx.AssumeRoleConfig(cfg, stsClient, roleARN))
			},
		}
	}

	newTester = func(cfg aws.Config) *deploy.Tester {
		stsClient := sts.NewFromConfig(cfg)
		return &deploy.Tester{
			STS:           stsClient,
			Organizations: organizations.NewFromConfig(cfg),
			AssumeSageMaker: func(roleARN string) deploy.EndpointAPI {
				return sagemaker.NewFromConfig(awsx.AssumeRoleConfig(cfg, stsClient, roleARN))
			},
			Invoke: deploy.NoopInvoke,
		}
	}
)
