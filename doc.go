// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// smops is the main package for the smops command line tool. It wires the
// CLI, delegates to internal packages, and serves as the entry point.
package main
