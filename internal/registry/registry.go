// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package registry manages SageMaker model package groups: creating them on
// first use, sharing them with deployment accounts and finding the most
// recent approved model.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"

	awsx "github.com/staranto/smops/internal/aws"
)

// ErrNoApprovedPackage is returned when a group has no approved model.
var ErrNoApprovedPackage = errors.New("no approved ModelPackage found")

// SageMakerAPI is the slice of the SageMaker client used by the registry.
type SageMakerAPI interface {
	DescribeModelPackageGroup(ctx context.Context, params *sagemaker.DescribeModelPackageGroupInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeModelPackageGroupOutput, error)
	CreateModelPackageGroup(ctx context.Context, params *sagemaker.CreateModelPackageGroupInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateModelPackageGroupOutput, error)
	PutModelPackageGroupPolicy(ctx context.Context, params *sagemaker.PutModelPackageGroupPolicyInput, optFns ...func(*sagemaker.Options)) (*sagemaker.PutModelPackageGroupPolicyOutput, error)
	sagemaker.ListModelPackagesAPIClient
}

// GroupSpec describes the model package group of a project.
type GroupSpec struct {
	Name        string
	ProjectName string
	ProjectID   string
	EnvName     string
	EnvType     string
}

// Registry wraps a SageMaker client.
type Registry struct {
	SageMaker SageMakerAPI
}

// New returns a Registry.
func New(sm SageMakerAPI) *Registry {
	return &Registry{SageMaker: sm}
}

// EnsureGroup returns the ARN of the group, creating it with the project and
// environment tags if it does not exist yet.
func (r *Registry) EnsureGroup(ctx context.Context, spec GroupSpec) (string, error) {
	log.Infof("checking if the model package group %s exists", spec.Name)
	out, err := r.SageMaker.DescribeModelPackageGroup(ctx, &sagemaker.DescribeModelPackageGroupInput{
		ModelPackageGroupName: aws.String(spec.Name),
	})
	if err == nil {
		arn := aws.ToString(out.ModelPackageGroupArn)
		log.Infof("found an existing model package group: %s", arn)
		return arn, nil
	}
	if !awsx.IsErrorCode(err, "ValidationException") {
		return "", fmt.Errorf("failed to describe model package group %s: %w", spec.Name, err)
	}

	log.Infof("the model package group %s is not found, creating a new one", spec.Name)
	created, err := r.SageMaker.CreateModelPackageGroup(ctx, &sagemaker.CreateModelPackageGroupInput{
		ModelPackageGroupName:        aws.String(spec.Name),
		ModelPackageGroupDescription: aws.String("Multi account model group for SageMaker project " + spec.ProjectName),
		Tags: []smtypes.Tag{
			{Key: aws.String("sagemaker:project-name"), Value: aws.String(spec.ProjectName)},
			{Key: aws.String("sagemaker:project-id"), Value: aws.String(spec.ProjectID)},
			{Key: aws.String("EnvironmentName"), Value: aws.String(spec.EnvName)},
			{Key: aws.String("EnvironmentType"), Value: aws.String(spec.EnvType)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create model package group %s: %w", spec.Name, err)
	}
	return aws.ToString(created.ModelPackageGroupArn), nil
}

type statement struct {
	Sid       string              `json:"Sid"`
	Effect    string              `json:"Effect"`
	Principal map[string][]string `json:"Principal"`
	Action    []string            `json:"Action"`
	Resource  string              `json:"Resource"`
}

type document struct {
	Version   string      `json:"Version"`
	Statement []statement `json:"Statement"`
}

// CrossAccountPolicy builds the resource policy letting accounts read the
// group and use its model versions.
func CrossAccountPolicy(groupARN string, accounts []string) (string, error) {
	principals := make([]string, 0, len(accounts))
	for _, a := range accounts {
		principals = append(principals, awsx.RootPrincipal(a))
	}

	doc := document{
		Version: "2012-10-17",
		Statement: []statement{
			{
				Sid:       "ModelPackageGroupPerm",
				Effect:    "Allow",
				Principal: map[string][]string{"AWS": principals},
				Action:    []string{"sagemaker:DescribeModelPackageGroup"},
				Resource:  groupARN,
			},
			{
				Sid:       "ModelVersionPerm",
				Effect:    "Allow",
				Principal: map[string][]string{"AWS": principals},
				Action: []string{
					"sagemaker:DescribeModelPackage",
					"sagemaker:ListModelPackages",
					"sagemaker:UpdateModelPackage",
					"sagemaker:CreateModel",
				},
				Resource: strings.Replace(groupARN, "model-package-group", "model-package", 1) + "/*",
			},
		},
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PutCrossAccountPolicy shares the group with accounts.
func (r *Registry) PutCrossAccountPolicy(ctx context.Context, group, groupARN string, accounts []string) error {
	if len(accounts) == 0 {
		return fmt.Errorf("no accounts to share model package group %s with", group)
	}

	doc, err := CrossAccountPolicy(groupARN, accounts)
	if err != nil {
		return err
	}

	log.WithField("group", group).Infof("sharing with %v", accounts)
	_, err = r.SageMaker.PutModelPackageGroupPolicy(ctx, &sagemaker.PutModelPackageGroupPolicyInput{
		ModelPackageGroupName: aws.String(group),
		ResourcePolicy:        aws.String(doc),
	})
	if err != nil {
		return fmt.Errorf("failed to put policy of model package group %s: %w", group, err)
	}
	return nil
}

// LatestApproved returns the ARN of the most recently created approved
// model package in group.
func (r *Registry) LatestApproved(ctx context.Context, group string) (string, error) {
	p := sagemaker.NewListModelPackagesPaginator(r.SageMaker, &sagemaker.ListModelPackagesInput{
		ModelPackageGroupName: aws.String(group),
		ModelApprovalStatus:   smtypes.ModelApprovalStatusApproved,
		SortBy:                smtypes.ModelPackageSortByCreationTime,
		SortOrder:             smtypes.SortOrderDescending,
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to list model packages of %s: %s", group, awsx.ErrorMessage(err))
		}
		if len(page.ModelPackageSummaryList) > 0 {
			arn := aws.ToString(page.ModelPackageSummaryList[0].ModelPackageArn)
			log.Infof("identified the latest approved model package: %s", arn)
			return arn, nil
		}
	}
	return "", fmt.Errorf("%w for ModelPackageGroup: %s", ErrNoApprovedPackage, group)
}
