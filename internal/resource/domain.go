// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"

	"github.com/aws/aws-lambda-go/cfn"

	awsx "github.com/staranto/smops/internal/aws"
)

// DomainID exposes the SageMaker domain id stored in an SSM parameter.
type DomainID struct {
	SSM awsx.ParameterAPI
}

// Create reads SSMParameterName and returns it as SageMakerDomainId.
func (h *DomainID) Create(ctx context.Context, event cfn.Event) (map[string]any, error) {
	name, err := StringProp(event, "SSMParameterName")
	if err != nil {
		return nil, err
	}
	id, err := awsx.GetParameter(ctx, h.SSM, name)
	if err != nil {
		return nil, err
	}
	return map[string]any{"SageMakerDomainId": id}, nil
}
