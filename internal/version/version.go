// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package version holds the build version of the smops binaries.
package version

// Version is replaced at build time with
// -ldflags "-X github.com/staranto/smops/internal/version.Version=v1.2.3".
var Version = "dev"
