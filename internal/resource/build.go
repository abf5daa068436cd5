// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
)

// BuildStarter starts CodeBuild builds.
type BuildStarter interface {
	StartBuild(ctx context.Context, params *codebuild.StartBuildInput, optFns ...func(*codebuild.Options)) (*codebuild.StartBuildOutput, error)
}

// StartBuild kicks off a CodeBuild project once, when the stack is created.
type StartBuild struct {
	CodeBuild BuildStarter
}

// Create starts ProjectName and returns the BuildId.
func (h *StartBuild) Create(ctx context.Context, event cfn.Event) (map[string]any, error) {
	project, err := StringProp(event, "ProjectName")
	if err != nil {
		return nil, err
	}

	out, err := h.CodeBuild.StartBuild(ctx, &codebuild.StartBuildInput{ProjectName: aws.String(project)})
	if err != nil {
		return nil, fmt.Errorf("failed to start build of %s: %w", project, err)
	}

	var id string
	if out.Build != nil {
		id = aws.ToString(out.Build.Id)
	}
	log.WithField("project", project).Infof("build %s started", id)
	return map[string]any{"BuildId": id}, nil
}
