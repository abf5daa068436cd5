// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const efsPage = "# smops efs\n\n" +
	"## Short description\n\n" +
	"Delete the EFS home file system of a SageMaker domain.\n\n" +
	"## Quick examples\n\n" +
	"```bash\n" +
	"# Clean up the domain found in SSM\n" +
	"smops efs clean\n\n" +
	"# Keep the VPC\n" +
	"smops efs clean   --domain-id d-abc --no-delete-vpc\n" +
	"```\n"

func TestTitleAndShortDesc(t *testing.T) {
	title, short := titleAndShortDesc(efsPage)
	assert.Equal(t, "smops efs", title)
	assert.Equal(t, "Delete the EFS home file system of a SageMaker domain.", short)

	title, short = titleAndShortDesc("# smops ou\n")
	assert.Equal(t, "smops ou", title)
	assert.Equal(t, "smops ou.", short)
}

func TestQuickExamples(t *testing.T) {
	exs := quickExamples(efsPage)
	require.Len(t, exs, 2)
	assert.Equal(t, example{Desc: "Clean up the domain found in SSM", Cmd: "smops efs clean"}, exs[0])
	assert.Equal(t, "smops efs clean --domain-id d-abc --no-delete-vpc", exs[1].Cmd)

	assert.Nil(t, quickExamples("# nothing here"))
}

func TestBuildTLDR_NoExamples(t *testing.T) {
	got := buildTLDR("ou", "", "", nil)
	assert.Contains(t, got, "# smops-ou")
	assert.Contains(t, got, "> smops ou")
	assert.Contains(t, got, "`smops ou --help`")
}

func TestGenerate(t *testing.T) {
	root := t.TempDir()
	cmds := filepath.Join(root, "docs", "commands")
	require.NoError(t, os.MkdirAll(cmds, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cmds, "efs.md"), []byte(efsPage), 0o644))

	n, err := generate(root, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tldr, err := os.ReadFile(filepath.Join(root, "docs", "tldr", "smops-efs.md"))
	require.NoError(t, err)
	assert.Contains(t, string(tldr), "`smops efs clean`")
	assert.FileExists(t, filepath.Join(root, "docs", "man", "share", "man1", "smops-efs.1"))

	_, err = generate(t.TempDir(), true)
	assert.Error(t, err)
}
