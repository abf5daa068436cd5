// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"

	awsx "github.com/staranto/smops/internal/aws"
)

// Param is one entry of a CloudFormation template configuration file.
type Param struct {
	ParameterKey   string `json:"ParameterKey"`
	ParameterValue string `json:"ParameterValue"`
}

// Params is an ordered parameter list.
type Params []Param

// Get returns the value of key, or "" if absent.
func (p Params) Get(key string) string {
	for _, e := range p {
		if e.ParameterKey == key {
			return e.ParameterValue
		}
	}
	return ""
}

// ReadParams reads a configuration file.
func ReadParams(path string) (Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var p Params
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return p, nil
}

// WriteParams writes a configuration file indented by two spaces.
func WriteParams(path string, p Params) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// StageInput holds the deployment time values of one stage.
type StageInput struct {
	Accounts          string
	ExecutionRoleName string
	ProjectName       string
	ProjectID         string
	ModelPackageARN   string
	EnvName           string
	EnvType           string
	VolumeKmsKeyArn   string
}

// BuildStageConfig appends the deployment time parameters to a copy of
// template, in a fixed order.
func BuildStageConfig(template Params, in StageInput) Params {
	out := make(Params, 0, len(template)+10)
	out = append(out, template...)
	return append(out,
		Param{"Accounts", in.Accounts},
		Param{"ExecutionRoleName", in.ExecutionRoleName},
		Param{"SageMakerProjectName", in.ProjectName},
		Param{"SageMakerProjectId", in.ProjectID},
		Param{"ModelPackageName", in.ModelPackageARN},
		Param{"EnvName", in.EnvName},
		Param{"EnvType", in.EnvType},
		Param{"VolumeKmsKeyArn", in.VolumeKmsKeyArn},
		Param{"SageMakerSecurityGroupIds", fmt.Sprintf("%s-%s-sagemaker-sg-ids", in.EnvName, in.EnvType)},
		Param{"SageMakerSubnetIds", fmt.Sprintf("%s-%s-private-subnet-ids", in.EnvName, in.EnvType)},
	)
}

// Stage names a configuration file and the values specific to it.
type Stage struct {
	ConfigName        string
	ExecutionRoleName string
	EnvType           string
	// Accounts is used only for multi-account deployments.
	Accounts string
}

// BuildOptions drives Build.
type BuildOptions struct {
	ProjectName       string
	ProjectID         string
	ModelPackageGroup string
	EnvName           string
	EbsKmsKeyArn      string
	MultiAccount      bool
	Stages            []Stage
	// Dir holds the <config>-template.json files and receives the results.
	Dir string
}

// ApprovedFinder finds the model to deploy.
type ApprovedFinder interface {
	LatestApproved(ctx context.Context, group string) (string, error)
}

// Build writes <ConfigName>.json for every stage from its template, pointing
// at the latest approved model. Single account deployments target the
// caller's account in every stage.
func Build(ctx context.Context, reg ApprovedFinder, sts awsx.CallerIdentityAPI, opts BuildOptions) ([]string, error) {
	pkg, err := reg.LatestApproved(ctx, opts.ModelPackageGroup)
	if err != nil {
		return nil, err
	}

	var caller string
	if !opts.MultiAccount {
		if caller, err = awsx.CallerAccount(ctx, sts); err != nil {
			return nil, err
		}
	}

	var written []string
	for _, s := range opts.Stages {
		accounts := s.Accounts
		if !opts.MultiAccount {
			accounts = caller
		}

		template, err := ReadParams(filepath.Join(opts.Dir, s.ConfigName+"-template.json"))
		if err != nil {
			return written, err
		}

		cfg := BuildStageConfig(template, StageInput{
			Accounts:          accounts,
			ExecutionRoleName: s.ExecutionRoleName,
			ProjectName:       opts.ProjectName,
			ProjectID:         opts.ProjectID,
			ModelPackageARN:   pkg,
			EnvName:           opts.EnvName,
			EnvType:           s.EnvType,
			VolumeKmsKeyArn:   opts.EbsKmsKeyArn,
		})

		path := filepath.Join(opts.Dir, s.ConfigName+".json")
		log.Infof("saving CodePipeline CFN template configuration file %s", path)
		if err := WriteParams(path, cfg); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
