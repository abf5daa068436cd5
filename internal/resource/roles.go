// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// RoleGetter looks up IAM roles.
type RoleGetter interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
}

// CheckRoles reports which of the Service Catalog roles SageMaker needs are
// missing, so the template can create only those.
type CheckRoles struct {
	IAM RoleGetter
}

// Create maps every name in RoleNames to "" if the role exists and to its own
// name if it does not.
func (h *CheckRoles) Create(ctx context.Context, event cfn.Event) (map[string]any, error) {
	names, err := StringSliceProp(event, "RoleNames")
	if err != nil {
		return nil, err
	}

	data := make(map[string]any, len(names))
	for _, n := range names {
		_, err := h.IAM.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(n)})
		var missing *iamtypes.NoSuchEntityException
		switch {
		case err == nil:
			data[n] = ""
		case errors.As(err, &missing):
			data[n] = n
		default:
			return nil, fmt.Errorf("failed to get role %s: %w", n, err)
		}
	}
	return data, nil
}
