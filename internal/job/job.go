// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package job runs CodePipeline custom actions backed by Lambda. It decodes
// the job, gives the action access to its input artifact and reports the
// outcome back to CodePipeline.
package job

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	cptypes "github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// maxMessage is the longest failure message CodePipeline accepts.
const maxMessage = 5000

// ResultAPI is the slice of the CodePipeline client used to report a job.
type ResultAPI interface {
	PutJobSuccessResult(ctx context.Context, params *codepipeline.PutJobSuccessResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobSuccessResultOutput, error)
	PutJobFailureResult(ctx context.Context, params *codepipeline.PutJobFailureResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobFailureResultOutput, error)
}

// ObjectAPI downloads artifacts.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// KeyValue is one entry of ProvisioningParameters.
type KeyValue struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// UserParameters is the JSON carried in the action's UserParameters.
type UserParameters struct {
	FileName               string     `json:"FileName"`
	Operation              string     `json:"Operation"`
	ProvisioningParameters []KeyValue `json:"ProvisioningParameters"`
}

// Job is a decoded CodePipeline job.
type Job struct {
	ID     string
	Params UserParameters

	data events.CodePipelineData
	s3   ObjectAPI
}

// Func performs the action of a job.
type Func func(ctx context.Context, j *Job) error

// Runner executes jobs and reports their result.
type Runner struct {
	CodePipeline ResultAPI
	// ArtifactClient returns the client used to download input artifacts,
	// given the short-lived credentials CodePipeline attached to the job.
	ArtifactClient func(creds events.CodePipelineArtifactCredentials) ObjectAPI
}

// Decode builds a Job from a CodePipeline event.
func (r *Runner) Decode(event events.CodePipelineJobEvent) (*Job, error) {
	j := &Job{ID: event.CodePipelineJob.ID, data: event.CodePipelineJob.Data}

	raw := j.data.ActionConfiguration.Configuration.UserParameters
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &j.Params); err != nil {
			return j, fmt.Errorf("invalid UserParameters: %w", err)
		}
	}

	if r.ArtifactClient != nil {
		j.s3 = r.ArtifactClient(j.data.ArtifactCredentials)
	}
	return j, nil
}

// Run decodes event, calls fn and reports success or failure to CodePipeline.
// A failing fn does not fail the invocation; only a failure to report does.
func (r *Runner) Run(ctx context.Context, event events.CodePipelineJobEvent, fn Func) error {
	j, err := r.Decode(event)
	if err == nil {
		log.WithField("job", j.ID).Debugf("user parameters: %+v", j.Params)
		err = fn(ctx, j)
	}

	if err != nil {
		log.WithField("job", j.ID).WithError(err).Error("job failed")
		return r.fail(ctx, j.ID, err)
	}

	log.WithField("job", j.ID).Info("job succeeded")
	if _, err := r.CodePipeline.PutJobSuccessResult(ctx, &codepipeline.PutJobSuccessResultInput{JobId: aws.String(j.ID)}); err != nil {
		return fmt.Errorf("failed to report success of job %s: %w", j.ID, err)
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, id string, cause error) error {
	msg := truncate(cause.Error(), maxMessage)
	_, err := r.CodePipeline.PutJobFailureResult(ctx, &codepipeline.PutJobFailureResultInput{
		JobId: aws.String(id),
		FailureDetails: &cptypes.FailureDetails{
			Type:    cptypes.FailureTypeJobFailed,
			Message: aws.String(msg),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to report failure of job %s: %w", id, err)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ReadArtifactFile decodes the JSON file fileName from the zip archive of
// the first input artifact into v.
func (j *Job) ReadArtifactFile(ctx context.Context, fileName string, v any) error {
	if len(j.data.InputArtifacts) == 0 {
		return fmt.Errorf("job %s has no input artifact", j.ID)
	}
	if j.s3 == nil {
		return fmt.Errorf("job %s has no artifact client", j.ID)
	}

	loc := j.data.InputArtifacts[0].Location.S3Location
	log.Debugf("reading %s from s3://%s/%s", fileName, loc.BucketName, loc.ObjectKey)

	out, err := j.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.BucketName),
		Key:    aws.String(loc.ObjectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to download artifact s3://%s/%s: %w", loc.BucketName, loc.ObjectKey, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}

	return ReadZipJSON(body, fileName, v)
}

// ReadZipJSON decodes the JSON file name inside the zip archive data into v.
func ReadZipJSON(data []byte, name string, v any) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("artifact is not a zip archive: %w", err)
	}

	f, err := zr.Open(name)
	if err != nil {
		return fmt.Errorf("%s not found in artifact: %w", name, err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}
