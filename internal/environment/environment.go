// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package environment resolves the SageMaker domain a project belongs to and
// the per-environment settings stored in SSM for it.
package environment

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"

	awsx "github.com/staranto/smops/internal/aws"
)

// Tags read from the domain that name the environment.
const (
	TagEnvironmentName = "EnvironmentName"
	TagEnvironmentType = "EnvironmentType"
)

// SageMakerAPI is the slice of the SageMaker client needed to resolve an
// environment.
type SageMakerAPI interface {
	DescribeProject(ctx context.Context, params *sagemaker.DescribeProjectInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeProjectOutput, error)
	DescribeDomain(ctx context.Context, params *sagemaker.DescribeDomainInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeDomainOutput, error)
	sagemaker.ListTagsAPIClient
}

// Param maps an SSM parameter suffix to the variable it is exposed as. The
// full parameter name is <EnvironmentName>-<EnvironmentType>-<ParameterName>.
type Param struct {
	VariableName  string
	ParameterName string
	Required      bool
}

// Environment is the flattened view of a SageMaker domain plus its SSM
// settings.
type Environment struct {
	DomainID             string
	DomainName           string
	DomainArn            string
	Status               string
	AuthMode             string
	AppNetworkAccessType string
	HomeEfsFileSystemID  string
	KmsKeyID             string
	URL                  string
	VpcID                string
	SubnetIDs            []string
	ExecutionRole        string
	SecurityGroups       []string
	EnvironmentName      string
	EnvironmentType      string

	// Params holds the resolved SSM values keyed by VariableName.
	Params map[string]string
}

// Resolver looks up environments.
type Resolver struct {
	SageMaker SageMakerAPI
	SSM       awsx.ParameterAPI
}

// New returns a Resolver.
func New(sm SageMakerAPI, ssm awsx.ParameterAPI) *Resolver {
	return &Resolver{SageMaker: sm, SSM: ssm}
}

// Resolve follows project -> domain -> tags -> SSM. Optional params that
// cannot be read are left empty; a required one fails the lookup.
func (r *Resolver) Resolve(ctx context.Context, projectName string, params []Param) (*Environment, error) {
	project, err := r.SageMaker.DescribeProject(ctx, &sagemaker.DescribeProjectInput{ProjectName: aws.String(projectName)})
	if err != nil {
		return nil, fmt.Errorf("failed to describe project %s: %w", projectName, err)
	}
	if project.CreatedBy == nil || aws.ToString(project.CreatedBy.DomainId) == "" {
		return nil, fmt.Errorf("project %s was not created from a SageMaker domain", projectName)
	}

	domainID := aws.ToString(project.CreatedBy.DomainId)
	domain, err := r.SageMaker.DescribeDomain(ctx, &sagemaker.DescribeDomainInput{DomainId: aws.String(domainID)})
	if err != nil {
		return nil, fmt.Errorf("failed to describe domain %s: %w", domainID, err)
	}

	env := fromDomain(domain)
	if err := r.readTags(ctx, env); err != nil {
		return nil, err
	}

	env.Params = map[string]string{}
	for _, p := range params {
		name := env.ParameterName(p.ParameterName)
		v, err := awsx.GetParameter(ctx, r.SSM, name)
		if err != nil {
			if p.Required {
				return nil, err
			}
			log.WithField("param", name).Warnf("optional parameter not loaded: %s", awsx.ErrorMessage(err))
		}
		env.Params[p.VariableName] = v
	}

	log.WithFields(log.Fields{"project": projectName, "domain": env.DomainID}).
		Debugf("environment %s-%s resolved", env.EnvironmentName, env.EnvironmentType)
	return env, nil
}

// ParameterName returns the SSM parameter name of suffix in this environment.
func (e *Environment) ParameterName(suffix string) string {
	return fmt.Sprintf("%s-%s-%s", e.EnvironmentName, e.EnvironmentType, suffix)
}

// Param returns the resolved value of an SSM variable.
func (e *Environment) Param(variable string) string {
	return e.Params[variable]
}

// Map flattens the environment into the key names SageMaker uses, suitable
// as custom resource data.
func (e *Environment) Map() map[string]any {
	m := map[string]any{
		"DomainId":             e.DomainID,
		"DomainName":           e.DomainName,
		"DomainArn":            e.DomainArn,
		"Status":               e.Status,
		"AuthMode":             e.AuthMode,
		"AppNetworkAccessType": e.AppNetworkAccessType,
		"HomeEfsFileSystemId":  e.HomeEfsFileSystemID,
		"KmsKeyId":             e.KmsKeyID,
		"Url":                  e.URL,
		"VpcId":                e.VpcID,
		"SubnetIds":            e.SubnetIDs,
		"ExecutionRole":        e.ExecutionRole,
		"SecurityGroups":       e.SecurityGroups,
		TagEnvironmentName:     e.EnvironmentName,
		TagEnvironmentType:     e.EnvironmentType,
	}
	for k, v := range e.Params {
		m[k] = v
	}
	return m
}

func fromDomain(d *sagemaker.DescribeDomainOutput) *Environment {
	env := &Environment{
		DomainID:             aws.ToString(d.DomainId),
		DomainName:           aws.ToString(d.DomainName),
		DomainArn:            aws.ToString(d.DomainArn),
		Status:               string(d.Status),
		AuthMode:             string(d.AuthMode),
		AppNetworkAccessType: string(d.AppNetworkAccessType),
		HomeEfsFileSystemID:  aws.ToString(d.HomeEfsFileSystemId),
		KmsKeyID:             aws.ToString(d.KmsKeyId),
		URL:                  aws.ToString(d.Url),
		VpcID:                aws.ToString(d.VpcId),
		SubnetIDs:            d.SubnetIds,
	}
	if s := d.DefaultUserSettings; s != nil {
		env.ExecutionRole = aws.ToString(s.ExecutionRole)
		env.SecurityGroups = s.SecurityGroups
	}
	return env
}

func (r *Resolver) readTags(ctx context.Context, env *Environment) error {
	p := sagemaker.NewListTagsPaginator(r.SageMaker, &sagemaker.ListTagsInput{ResourceArn: aws.String(env.DomainArn)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list tags of %s: %w", env.DomainArn, err)
		}
		for _, t := range page.Tags {
			switch aws.ToString(t.Key) {
			case TagEnvironmentName:
				env.EnvironmentName = aws.ToString(t.Value)
			case TagEnvironmentType:
				env.EnvironmentType = aws.ToString(t.Value)
			}
		}
	}
	return nil
}
