// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package pipeline builds the SageMaker model building pipeline definition
// (preprocess, train, evaluate, conditionally register) and creates or
// updates it in SageMaker. Tunables come from an optional HCL file.
package pipeline
