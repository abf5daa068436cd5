// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package resource implements the CloudFormation custom resources used by
// the MLOps stacks. Each handler is a Func; Wrap turns one into a Lambda
// handler that reports SUCCESS or FAILED back to CloudFormation.
package resource
