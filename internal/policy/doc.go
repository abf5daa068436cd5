// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package policy patches S3 bucket and KMS key policies to grant access to
// additional accounts and VPC endpoints, keeping the rest of the document
// untouched.
package policy
