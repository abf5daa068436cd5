// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	awsx "github.com/staranto/smops/internal/aws"
	"github.com/staranto/smops/internal/policy"
)

// KeyPolicyName is the only policy name KMS supports.
const KeyPolicyName = "default"

// BucketPolicyAPI reads and writes bucket policies.
type BucketPolicyAPI interface {
	GetBucketPolicy(ctx context.Context, params *s3.GetBucketPolicyInput, optFns ...func(*s3.Options)) (*s3.GetBucketPolicyOutput, error)
	PutBucketPolicy(ctx context.Context, params *s3.PutBucketPolicyInput, optFns ...func(*s3.Options)) (*s3.PutBucketPolicyOutput, error)
}

// KeyPolicyAPI reads and writes key policies.
type KeyPolicyAPI interface {
	GetKeyPolicy(ctx context.Context, params *kms.GetKeyPolicyInput, optFns ...func(*kms.Options)) (*kms.GetKeyPolicyOutput, error)
	PutKeyPolicy(ctx context.Context, params *kms.PutKeyPolicyInput, optFns ...func(*kms.Options)) (*kms.PutKeyPolicyOutput, error)
}

// CrossAccount opens the environment's data bucket and key to roles in
// other accounts, restricted to those accounts' VPC endpoints.
type CrossAccount struct {
	S3  BucketPolicyAPI
	KMS KeyPolicyAPI
	// AssumeSSM returns an SSM client acting as roleARN.
	AssumeSSM func(roleARN string) awsx.ParameterAPI
	// DryRun computes the patched policies without writing them.
	DryRun bool
}

// PolicyChange is the outcome of patching one policy.
type PolicyChange struct {
	Resource string `json:"resource"`
	Applied  bool   `json:"applied"`
	Diff     string `json:"diff"`
}

// CrossAccountInput holds the properties of the resource.
type CrossAccountInput struct {
	Accounts          []string
	PrincipalRoleName string
	SetupRoleName     string
	BucketName        string
	KMSKeyID          string
	S3VPCEParam       string
	KMSVPCEParam      string
}

func crossAccountInput(event cfn.Event) (in CrossAccountInput, err error) {
	if in.Accounts, err = StringSliceProp(event, "Accounts"); err != nil {
		return in, err
	}
	props := []struct {
		dst *string
		key string
	}{
		{&in.PrincipalRoleName, "PrincipalRoleName"},
		{&in.SetupRoleName, "SetupRoleName"},
		{&in.BucketName, "S3BucketName"},
		{&in.KMSKeyID, "KMSKeyId"},
		{&in.S3VPCEParam, "S3VPCESSMParamName"},
		{&in.KMSVPCEParam, "KMSVPCESSMParamName"},
	}
	for _, p := range props {
		if *p.dst, err = StringProp(event, p.key); err != nil {
			return in, err
		}
	}
	return in, nil
}

// Create patches the bucket policy, then the key policy.
func (h *CrossAccount) Create(ctx context.Context, event cfn.Event) (map[string]any, error) {
	in, err := crossAccountInput(event)
	if err != nil {
		return nil, err
	}
	if _, err := h.Setup(ctx, in); err != nil {
		return nil, err
	}
	return map[string]any{"Result": "SUCCESS"}, nil
}

// Setup grants arn:aws:iam::<account>:role/<PrincipalRoleName> of every
// account access to the bucket and key, and allows the VPC endpoint ids each
// account publishes in SSM. With DryRun nothing is written.
func (h *CrossAccount) Setup(ctx context.Context, in CrossAccountInput) ([]PolicyChange, error) {
	principals := make([]string, 0, len(in.Accounts))
	for _, a := range in.Accounts {
		principals = append(principals, awsx.RoleARNFor(a, in.PrincipalRoleName))
	}

	var changes []PolicyChange

	vpces, err := h.remoteParameters(ctx, in.Accounts, in.SetupRoleName, in.S3VPCEParam)
	if err != nil {
		return changes, err
	}
	bp, err := h.S3.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{Bucket: aws.String(in.BucketName)})
	if err != nil {
		return changes, fmt.Errorf("failed to get policy of bucket %s: %w", in.BucketName, err)
	}
	doc, change, err := patch("s3://"+in.BucketName, aws.ToString(bp.Policy), principals, vpces)
	if err != nil {
		return changes, fmt.Errorf("bucket %s: %w", in.BucketName, err)
	}
	if !h.DryRun {
		if _, err := h.S3.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{Bucket: aws.String(in.BucketName), Policy: aws.String(doc)}); err != nil {
			return changes, fmt.Errorf("failed to put policy of bucket %s: %w", in.BucketName, err)
		}
		change.Applied = true
	}
	changes = append(changes, change)

	vpces, err = h.remoteParameters(ctx, in.Accounts, in.SetupRoleName, in.KMSVPCEParam)
	if err != nil {
		return changes, err
	}
	kp, err := h.KMS.GetKeyPolicy(ctx, &kms.GetKeyPolicyInput{KeyId: aws.String(in.KMSKeyID), PolicyName: aws.String(KeyPolicyName)})
	if err != nil {
		return changes, fmt.Errorf("failed to get policy of key %s: %w", in.KMSKeyID, err)
	}
	doc, change, err = patch("kms:"+in.KMSKeyID, aws.ToString(kp.Policy), principals, vpces)
	if err != nil {
		return changes, fmt.Errorf("key %s: %w", in.KMSKeyID, err)
	}
	if !h.DryRun {
		_, err = h.KMS.PutKeyPolicy(ctx, &kms.PutKeyPolicyInput{
			KeyId:      aws.String(in.KMSKeyID),
			PolicyName: aws.String(KeyPolicyName),
			Policy:     aws.String(doc),
		})
		if err != nil {
			return changes, fmt.Errorf("failed to put policy of key %s: %w", in.KMSKeyID, err)
		}
		change.Applied = true
	}
	return append(changes, change), nil
}

func patch(resource, before string, principals, vpces []string) (string, PolicyChange, error) {
	change := PolicyChange{Resource: resource}
	after, err := policy.Setup(before, principals, vpces)
	if err != nil {
		return "", change, err
	}
	if d, err := policy.Diff(before, after); err == nil {
		log.Debugf("policy changes of %s:\n%s", resource, d)
		change.Diff = d
	} else {
		log.WithError(err).Warnf("cannot diff policy of %s", resource)
	}
	return after, change, nil
}

// remoteParameters reads the SSM parameter name in every account through
// the setup role there.
func (h *CrossAccount) remoteParameters(ctx context.Context, accounts []string, role, name string) ([]string, error) {
	values := make([]string, 0, len(accounts))
	for _, a := range accounts {
		roleARN := awsx.RoleARNFor(a, role)
		log.Infof("assume the role %s in %s", role, a)
		v, err := awsx.GetParameter(ctx, h.AssumeSSM(roleARN), name)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", a, err)
		}
		values = append(values, v)
	}
	log.Infof("values retrieved: %v", values)
	return values, nil
}
