// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/smops/internal/meta"
	"github.com/staranto/smops/internal/output"
	"github.com/staranto/smops/internal/poll"
	"github.com/staranto/smops/internal/progress"
)

// ShortCircuitTLDR checks the --tldr flag. When set it runs
// `tldr smops-<subcmd>`, or prints the usage of cmd when tldr is missing or
// has no page, and returns true so the caller can exit early.
func ShortCircuitTLDR(ctx context.Context, cmd *cli.Command, subcmd string) bool {
	if !cmd.Bool("tldr") {
		return false
	}
	if _, err := exec.LookPath("tldr"); err == nil {
		c := exec.CommandContext(ctx, "tldr", "smops-"+subcmd)
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if c.Run() == nil {
			return true
		}
	}
	output.DumpExamples(writer(cmd), [][2]string{{cmd.UsageText, cmd.Usage}})
	return true
}

// BuildColumns constructs a column list with defaults and optional extras
// from --columns, then applies the global transform spec.
func BuildColumns(cmd *cli.Command, defaults ...string) output.Columns {
	cols := output.NewColumns(defaults...)
	if extras := cmd.String("columns"); extras != "" {
		if err := cols.Set(extras); err != nil {
			log.WithError(err).Warn("ignoring --columns")
		}
	}
	cols.ApplyGlobalTransform()
	return cols
}

// ToRows turns a struct or a slice of structs into output rows using their
// JSON field names.
func ToRows(v any) ([]map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}

	if len(b) > 0 && b[0] == '{' {
		b = append(append([]byte{'['}, b...), ']')
	}

	var rows []map[string]any
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("failed to convert results to rows: %w", err)
	}
	return rows, nil
}

// Emit passes rows to the common output routine.
func Emit(cmd *cli.Command, rows []map[string]any, cols output.Columns) error {
	return output.SliceDiceSpit(rows, cols, cmd, writer(cmd))
}

func writer(cmd *cli.Command) io.Writer {
	if root := cmd.Root(); root != nil && root.Writer != nil {
		return root.Writer
	}
	return os.Stdout
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// PollOptions builds the polling options from --poll-interval and
// --poll-timeout, reporting every attempt to a progress reporter titled
// title. The caller must call Done on the reporter.
func PollOptions(cmd *cli.Command, title string) (poll.Options, progress.Reporter) {
	rep := progress.New(title, cmd.Bool("quiet"))
	return poll.Options{
		Interval: cmd.Duration("poll-interval"),
		Timeout:  cmd.Duration("poll-timeout"),
		OnTick:   rep.Tick,
	}, rep
}

// CommandBuilder constructs a cli.Command using a consistent pattern. The
// builder wires metadata and the tldr flag, and adds the output flags when
// the command emits rows. Namespace is the config file key of the command
// tree and defaults to Name.
type CommandBuilder struct {
	Name      string
	Usage     string
	UsageText string
	Namespace string
	Flags     []cli.Flag
	Commands  []*cli.Command
	Action    func(context.Context, *cli.Command) error
	Output    bool
	Meta      meta.Meta
}

// Build returns a configured cli.Command from the builder.
func (cb *CommandBuilder) Build() *cli.Command {
	ns := cb.Namespace
	if ns == "" {
		ns = cb.Name
	}

	flags := append([]cli.Flag{}, cb.Flags...)
	if cb.Action != nil {
		flags = append(flags, tldrFlag)
	}
	if cb.Output {
		flags = append(flags, NewGlobalFlags(ns)...)
	}

	return &cli.Command{
		Name:      cb.Name,
		Usage:     cb.Usage,
		UsageText: cb.UsageText,
		Metadata: map[string]any{
			"meta": cb.Meta,
		},
		Flags:    flags,
		Commands: cb.Commands,
		Action:   cb.Action,
	}
}

// RowsActionRunner encapsulates the common action pattern of commands that
// emit rows: GetMeta, tldr short-circuit, BuildColumns, fetch and emit.
type RowsActionRunner struct {
	CommandName    string
	DefaultColumns []string
	FetchFn        func(context.Context, *cli.Command) ([]map[string]any, error)
}

// Run executes the action with the provided context and command.
func (r *RowsActionRunner) Run(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	if len(m.Args) > 1 {
		log.Debugf("Executing action for %v", m.Args[1:])
	}

	if ShortCircuitTLDR(ctx, cmd, r.CommandName) {
		return nil
	}

	cols := BuildColumns(cmd, r.DefaultColumns...)
	log.Debugf("columns: %v", cols.String())

	rows, err := r.FetchFn(ctx, cmd)
	if err != nil {
		return err
	}

	return Emit(cmd, rows, cols)
}
