// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package output provides column selection, filtering, sorting and emission
// utilities used by commands to present result rows in various formats.
package output
