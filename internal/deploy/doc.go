// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package deploy prepares the CloudFormation stage configuration files for a
// model deployment pipeline and smoke tests the deployed endpoints.
package deploy
