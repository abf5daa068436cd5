// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package aws contains AWS SDK v2 configuration loading, cross-account role
// assumption, ARN helpers and API error classification shared by the Lambda
// handlers and CLI commands.
package aws
