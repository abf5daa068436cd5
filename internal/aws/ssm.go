// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package aws

import (
	"context"
	"fmt"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ParameterAPI is the slice of the SSM client needed to read parameters.
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// PutParameterAPI is the slice of the SSM client needed to write parameters.
type PutParameterAPI interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// GetParameter returns the value of the named SSM parameter.
func GetParameter(ctx context.Context, client ParameterAPI, name string) (string, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{Name: awsv2.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to get SSM parameter %s: %w", name, err)
	}
	if out.Parameter == nil {
		return "", fmt.Errorf("SSM parameter %s has no value", name)
	}
	return deref(out.Parameter.Value), nil
}

// PutParameter stores value as a String parameter, overwriting any previous
// value.
func PutParameter(ctx context.Context, client PutParameterAPI, name, value string) error {
	_, err := client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      awsv2.String(name),
		Value:     awsv2.String(value),
		Type:      ssmtypes.ParameterTypeString,
		Overwrite: awsv2.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to put SSM parameter %s: %w", name, err)
	}
	return nil
}

// FindParameterAPI is the slice of the SSM client needed to search for a
// parameter by name.
type FindParameterAPI interface {
	ParameterAPI
	ssm.DescribeParametersAPIClient
}

// FindParameter returns the value of the only parameter whose name contains
// fragment. ok is false when no parameter or more than one matches.
func FindParameter(ctx context.Context, client FindParameterAPI, fragment string) (value string, ok bool, err error) {
	p := ssm.NewDescribeParametersPaginator(client, &ssm.DescribeParametersInput{
		ParameterFilters: []ssmtypes.ParameterStringFilter{{
			Key:    awsv2.String("Name"),
			Option: awsv2.String("Contains"),
			Values: []string{fragment},
		}},
	})

	var names []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return "", false, fmt.Errorf("failed to describe SSM parameters: %w", err)
		}
		for _, m := range page.Parameters {
			names = append(names, deref(m.Name))
		}
	}

	if len(names) != 1 {
		return "", false, nil
	}

	value, err = GetParameter(ctx, client, names[0])
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
