// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package function

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	awsefs "github.com/aws/aws-sdk-go-v2/service/efs"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/servicecatalog"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	awsx "github.com/staranto/smops/internal/aws"
	"github.com/staranto/smops/internal/catalog"
	"github.com/staranto/smops/internal/config"
	"github.com/staranto/smops/internal/efs"
	"github.com/staranto/smops/internal/environment"
	"github.com/staranto/smops/internal/job"
	"github.com/staranto/smops/internal/poll"
	"github.com/staranto/smops/internal/resource"
)

// Function names, as set in _HANDLER.
const (
	CheckRoles          = "check-sagemaker-sc-roles"
	CleanUpEFS          = "clean-up-efs"
	DeleteApps          = "delete-apps"
	EnableProjects      = "enable-sagemaker-projects"
	GetDomainID         = "get-sm-domain-id"
	GetEnvConfiguration = "get-env-configuration"
	GetNetworkConfig    = "get-network-configuration"
	GetOUAccounts       = "get-ou-accounts"
	ProvisionProduct    = "provision-sc-product"
	SetupCrossAccount   = "setup-cross-account-permissions"
	StartBuild          = "start-build"
	TerminateProduct    = "terminate-sc-product"
)

// Deps is what handlers are built from.
type Deps struct {
	Config      aws.Config
	Poll        poll.Options
	ParamPrefix string
}

// DepsFromEnv reads the tuning env variables. Unset or invalid values fall
// back to the defaults.
func DepsFromEnv(cfg aws.Config) *Deps {
	return &Deps{
		Config: cfg,
		Poll: poll.Options{
			Interval: envDuration("SMOPS_POLL_INTERVAL", poll.DefaultInterval),
			Timeout:  envDuration("SMOPS_POLL_TIMEOUT", poll.DefaultTimeout),
		},
		ParamPrefix: os.Getenv("SMOPS_PRODUCT_PARAM_PREFIX"),
	}
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := config.ParseDuration(v)
	if err != nil {
		log.WithField("var", key).Warnf("ignoring invalid duration %q", v)
		return def
	}
	return d
}

func (d *Deps) catalog() *catalog.Catalog {
	c := catalog.New(servicecatalog.NewFromConfig(d.Config), ssm.NewFromConfig(d.Config), sts.NewFromConfig(d.Config))
	if d.ParamPrefix != "" {
		c.ParamPrefix = d.ParamPrefix
	}
	c.Poll = d.Poll
	return c
}

func (d *Deps) runner() *job.Runner {
	return &job.Runner{
		CodePipeline: codepipeline.NewFromConfig(d.Config),
		ArtifactClient: func(creds events.CodePipelineArtifactCredentials) job.ObjectAPI {
			if creds.AccessKeyID == "" {
				return s3.NewFromConfig(d.Config)
			}
			return s3.NewFromConfig(awsx.StaticCredentialsConfig(d.Config, creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken))
		},
	}
}

// builders creates the handler of each function. The value returned is
// what lambda.Start expects.
var builders = map[string]func(d *Deps) any{
	CheckRoles: func(d *Deps) any {
		return resource.Wrap(resource.OnCreate((&resource.CheckRoles{IAM: iam.NewFromConfig(d.Config)}).Create))
	},
	CleanUpEFS: func(d *Deps) any {
		return CleanUpEFSHandler(efs.New(awsefs.NewFromConfig(d.Config), ec2.NewFromConfig(d.Config), d.Poll))
	},
	DeleteApps: func(d *Deps) any {
		return resource.Wrap((&resource.DeleteApps{SageMaker: sagemaker.NewFromConfig(d.Config), Poll: d.Poll}).Handle)
	},
	EnableProjects: func(d *Deps) any {
		return resource.Wrap(resource.OnCreate((&resource.EnableProjects{
			SageMaker:      sagemaker.NewFromConfig(d.Config),
			ServiceCatalog: servicecatalog.NewFromConfig(d.Config),
		}).Create))
	},
	GetDomainID: func(d *Deps) any {
		return resource.Wrap(resource.OnCreate((&resource.DomainID{SSM: ssm.NewFromConfig(d.Config)}).Create))
	},
	GetEnvConfiguration: func(d *Deps) any {
		resolver := environment.New(sagemaker.NewFromConfig(d.Config), ssm.NewFromConfig(d.Config))
		return resource.Wrap(resource.OnCreate((&resource.EnvConfiguration{Resolver: resolver}).Create))
	},
	GetNetworkConfig: func(d *Deps) any {
		return resource.Wrap(resource.OnCreate((&resource.NetworkConfiguration{EC2: ec2.NewFromConfig(d.Config)}).Create))
	},
	GetOUAccounts: func(d *Deps) any {
		return resource.Wrap(resource.OnCreate((&resource.OUAccounts{Organizations: organizations.NewFromConfig(d.Config)}).Create))
	},
	ProvisionProduct: func(d *Deps) any {
		return JobHandler(d.runner(), Provision(d.catalog()))
	},
	SetupCrossAccount: func(d *Deps) any {
		stsClient := sts.NewFromConfig(d.Config)
		return resource.Wrap(resource.OnCreate((&resource.CrossAccount{
			S3:  s3.NewFromConfig(d.Config),
			KMS: kms.NewFromConfig(d.Config),
			AssumeSSM: func(roleARN string) awsx.ParameterAPI {
				return ssm.NewFromConfig(awsx.AssumeRoleConfig(d.Config, stsClient, roleARN))
			},
		}).Create))
	},
	StartBuild: func(d *Deps) any {
		return resource.Wrap(resource.OnCreate((&resource.StartBuild{CodeBuild: codebuild.NewFromConfig(d.Config)}).Create))
	},
	TerminateProduct: func(d *Deps) any {
		return JobHandler(d.runner(), Terminate(d.catalog()))
	},
}

// Handler returns the handler of the function name.
func Handler(name string, d *Deps) (any, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q, expected one of %v", name, Names())
	}
	return build(d), nil
}

// Names lists the registered function names.
func Names() []string {
	names := make([]string, 0, len(builders))
	for n := range builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
