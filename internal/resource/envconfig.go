// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"

	"github.com/aws/aws-lambda-go/cfn"

	"github.com/staranto/smops/internal/environment"
)

// EnvParams are the SSM settings every environment must publish.
var EnvParams = []environment.Param{
	{VariableName: "DataBucketName", ParameterName: "data-bucket-name", Required: true},
	{VariableName: "ModelBucketName", ParameterName: "model-bucket-name", Required: true},
	{VariableName: "S3VPCEId", ParameterName: "s3-vpce-id", Required: true},
}

// EnvConfiguration exposes the environment a SageMaker project runs in.
type EnvConfiguration struct {
	Resolver *environment.Resolver
}

// Create resolves SageMakerProjectName and returns the flattened environment.
func (h *EnvConfiguration) Create(ctx context.Context, event cfn.Event) (map[string]any, error) {
	project, err := StringProp(event, "SageMakerProjectName")
	if err != nil {
		return nil, err
	}
	env, err := h.Resolver.Resolve(ctx, project, EnvParams)
	if err != nil {
		return nil, err
	}
	return env.Map(), nil
}
