// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/smops/internal/command"
	"github.com/staranto/smops/internal/config"
	mylog "github.com/staranto/smops/internal/log"
	"github.com/staranto/smops/internal/version"
)

var ctx = context.Background()

func main() {
	os.Exit(realMain())
}

func realMain() int {
	mylog.InitLogger()

	args := os.Args

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	} else {
		args = mangleArguments(args)
	}

	// Short-circuit --version/-v.
	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Println(version.Version)
			return 0
		}
	}

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

// mangleArguments expands an @set argument into the flags stored under
// <group>.<set> in the config file. Without an explicit @set the
// <group>.defaults set is used. The expansion is inserted right after the
// command words so explicit flags that follow still win.
func mangleArguments(args []string) []string {
	// Short-circuit for --help/-h. If help is requested, keep everything up
	// to the first flag and add --help.
	if slices.Contains(args, "--help") || slices.Contains(args, "-h") {
		out := []string{}
		for _, a := range args {
			if strings.HasPrefix(a, "-") {
				break
			}
			out = append(out, a)
		}
		return append(out, "--help")
	}

	working := slices.Clone(args)

	// See if there is a @set specified. If so, it is removed from args and
	// names the set to expand.
	set := "defaults"
	for i, a := range working {
		if i > 0 && strings.HasPrefix(a, "@") {
			set = a[1:]
			working = slices.Delete(working, i, i+1)
			break
		}
	}

	if len(working) < 2 {
		return working
	}

	// The insertion point follows the group and command words.
	idx := 1
	for idx < len(working) && idx < 3 && !strings.HasPrefix(working[idx], "-") {
		idx++
	}

	setArgs, _ := config.GetStringSlice(working[1] + "." + set)
	var expanded []string
	for _, arg := range setArgs {
		expanded = append(expanded, strings.Fields(arg)...)
	}
	working = slices.Insert(working, idx, expanded...)

	log.Debugf("idx=%d, set=%s, args=%v", idx, set, working)
	return working
}
