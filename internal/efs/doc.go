// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package efs tears down the EFS home file system SageMaker creates for a
// domain, together with its mount targets, the NFS security groups and,
// optionally, the VPC they were placed in.
package efs
