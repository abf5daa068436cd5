// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Command lambda is the bootstrap of every smops Lambda function. The
// function is selected by the _HANDLER name configured on the Lambda.
package main

import (
	"context"
	"os"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/lambda"

	awsx "github.com/staranto/smops/internal/aws"
	"github.com/staranto/smops/internal/function"
	mylog "github.com/staranto/smops/internal/log"
	"github.com/staranto/smops/internal/version"
)

func main() {
	mylog.InitLogger("INFO")

	name := os.Getenv("_HANDLER")
	ctx := context.Background()

	cfg, err := awsx.LoadAWSConfig(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to load AWS config")
	}

	h, err := function.Handler(name, function.DepsFromEnv(cfg))
	if err != nil {
		log.WithError(err).Fatal("failed to create handler")
	}

	log.WithFields(log.Fields{"function": name, "version": version.Version}).Info("starting")
	lambda.Start(h)
}
