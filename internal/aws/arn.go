// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// CallerIdentityAPI is the slice of the STS client needed to identify the
// caller.
type CallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// RoleARNFor builds arn:aws:iam::<account>:role/<role>.
func RoleARNFor(account, role string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", account, role)
}

// RootPrincipal builds arn:aws:iam::<account>:root.
func RootPrincipal(account string) string {
	return fmt.Sprintf("arn:aws:iam::%s:root", account)
}

// RoleARN converts an STS assumed-role ARN into the ARN of the IAM role
// behind it, dropping the session name:
//
//	arn:aws:sts::123:assumed-role/Exec/session -> arn:aws:iam::123:role/Exec
//
// IAM ARNs are returned unchanged.
func RoleARN(callerARN string) (string, error) {
	parsed, err := arn.Parse(callerARN)
	if err != nil {
		return "", fmt.Errorf("invalid caller ARN %q: %w", callerARN, err)
	}

	if parsed.Service == "iam" {
		return callerARN, nil
	}

	parts := strings.Split(parsed.Resource, "/")
	if parsed.Service != "sts" || parts[0] != "assumed-role" || len(parts) < 3 {
		return "", fmt.Errorf("caller ARN %q is not an assumed role", callerARN)
	}

	parsed.Service = "iam"
	parsed.Resource = "role/" + strings.Join(parts[1:len(parts)-1], "/")
	return parsed.String(), nil
}

// CallerRoleARN resolves the IAM role the current credentials belong to.
func CallerRoleARN(ctx context.Context, client CallerIdentityAPI) (string, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	return RoleARN(deref(out.Arn))
}

// CallerAccount returns the account id of the current credentials.
func CallerAccount(ctx context.Context, client CallerIdentityAPI) (string, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	return deref(out.Account), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
