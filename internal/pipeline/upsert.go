// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/google/uuid"

	awsx "github.com/staranto/smops/internal/aws"
)

// Script file names expected in the scripts directory.
const (
	PreprocessScript = "preprocess.py"
	EvaluateScript   = "evaluate.py"
)

// SageMakerAPI is the slice of the SageMaker client that manages pipelines.
type SageMakerAPI interface {
	DescribePipeline(ctx context.Context, params *sagemaker.DescribePipelineInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribePipelineOutput, error)
	CreatePipeline(ctx context.Context, params *sagemaker.CreatePipelineInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreatePipelineOutput, error)
	UpdatePipeline(ctx context.Context, params *sagemaker.UpdatePipelineInput, optFns ...func(*sagemaker.Options)) (*sagemaker.UpdatePipelineOutput, error)
	StartPipelineExecution(ctx context.Context, params *sagemaker.StartPipelineExecutionInput, optFns ...func(*sagemaker.Options)) (*sagemaker.StartPipelineExecutionOutput, error)
}

// UploadAPI is the slice of the S3 client used to stage scripts.
type UploadAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// UpsertResult reports what Upsert did.
type UpsertResult struct {
	PipelineArn  string `json:"pipelineArn"`
	Created      bool   `json:"created"`
	ExecutionArn string `json:"executionArn,omitempty"`
}

// Upsert creates the pipeline, or updates it when it already exists, and
// optionally starts an execution.
func Upsert(ctx context.Context, sm SageMakerAPI, name, roleARN string, def Definition, start bool) (*UpsertResult, error) {
	body, err := def.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to render pipeline definition: %w", err)
	}

	res := &UpsertResult{}
	_, err = sm.DescribePipeline(ctx, &sagemaker.DescribePipelineInput{PipelineName: aws.String(name)})
	switch {
	case err == nil:
		out, err := sm.UpdatePipeline(ctx, &sagemaker.UpdatePipelineInput{
			PipelineName:       aws.String(name),
			PipelineDefinition: aws.String(body),
			RoleArn:            aws.String(roleARN),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update pipeline %s: %w", name, err)
		}
		res.PipelineArn = aws.ToString(out.PipelineArn)
	case awsx.IsErrorCode(err, "ResourceNotFound"):
		out, err := sm.CreatePipeline(ctx, &sagemaker.CreatePipelineInput{
			PipelineName:       aws.String(name),
			PipelineDefinition: aws.String(body),
			RoleArn:            aws.String(roleARN),
			ClientRequestToken: aws.String(uuid.NewString()),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create pipeline %s: %w", name, err)
		}
		res.PipelineArn = aws.ToString(out.PipelineArn)
		res.Created = true
	default:
		return nil, fmt.Errorf("failed to describe pipeline %s: %w", name, err)
	}
	log.WithFields(log.Fields{"pipeline": name, "created": res.Created}).Info("pipeline upserted")

	if !start {
		return res, nil
	}

	exec, err := sm.StartPipelineExecution(ctx, &sagemaker.StartPipelineExecutionInput{
		PipelineName:       aws.String(name),
		ClientRequestToken: aws.String(uuid.NewString()),
	})
	if err != nil {
		return res, fmt.Errorf("failed to start pipeline %s: %w", name, err)
	}
	res.ExecutionArn = aws.ToString(exec.PipelineExecutionArn)
	log.WithField("execution", res.ExecutionArn).Info("pipeline execution started")
	return res, nil
}

// ScriptLocations returns where UploadScripts puts the scripts, without
// uploading anything.
func ScriptLocations(bucket, prefix string) CodeLocations {
	return CodeLocations{
		Preprocess: fmt.Sprintf("s3://%s/%s/code/%s", bucket, prefix, PreprocessScript),
		Evaluate:   fmt.Sprintf("s3://%s/%s/code/%s", bucket, prefix, EvaluateScript),
	}
}

// UploadScripts copies preprocess.py and evaluate.py from dir to
// s3://<bucket>/<prefix>/code/, encrypted with kmsKey when set.
func UploadScripts(ctx context.Context, client UploadAPI, dir, bucket, prefix, kmsKey string) (CodeLocations, error) {
	var loc CodeLocations
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{PreprocessScript, &loc.Preprocess},
		{EvaluateScript, &loc.Evaluate},
	} {
		uri, err := upload(ctx, client, filepath.Join(dir, f.name), bucket, prefix+"/code/"+f.name, kmsKey)
		if err != nil {
			return CodeLocations{}, err
		}
		*f.dst = uri
	}
	return loc, nil
}

func upload(ctx context.Context, client UploadAPI, src, bucket, key, kmsKey string) (string, error) {
	fh, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open script: %w", err)
	}
	defer fh.Close()

	in := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   fh,
	}
	if kmsKey != "" {
		in.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		in.SSEKMSKeyId = aws.String(kmsKey)
	}

	if _, err := client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("failed to upload %s to s3://%s/%s: %w", src, bucket, key, err)
	}

	uri := fmt.Sprintf("s3://%s/%s", bucket, key)
	log.Debugf("uploaded %s to %s", src, uri)
	return uri, nil
}
