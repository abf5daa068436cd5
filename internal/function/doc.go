// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package function maps Lambda function names to their handlers. One
// bootstrap binary serves every function; the _HANDLER name picks the
// handler at cold start and the AWS clients it needs are built once.
package function
