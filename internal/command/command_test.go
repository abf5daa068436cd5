// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package command

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/staranto/smops/internal/catalog"
	"github.com/staranto/smops/internal/efs"
	"github.com/staranto/smops/internal/environment"
	"github.com/staranto/smops/internal/meta"
)

func TestValidators(t *testing.T) {
	tests := []struct {
		name      string
		validator FlagValidatorType
		value     any
		wantErr   bool
	}{
		{"output text", OutputValidator, "text", false},
		{"output yaml", OutputValidator, "yaml", false},
		{"output bogus", OutputValidator, "xml", true},
		{"yes", YesNoValidator, "YES", false},
		{"no", YesNoValidator, "NO", false},
		{"lower case", YesNoValidator, "yes", true},
		{"maybe", YesNoValidator, "maybe", true},
		{"no accounts", AccountListValidator, "", false},
		{"accounts", AccountListValidator, "111111111111, 222222222222", false},
		{"short account", AccountListValidator, "111111111111,222", true},
		{"jammed", JammedFlagValidator, "--output", true},
		{"not jammed", JammedFlagValidator, "d-abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FlagValidators(tt.value, tt.validator)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsYes(t *testing.T) {
	assert.True(t, isYes("YES"))
	assert.False(t, isYes("yes"))
	assert.False(t, isYes("Yes"))
	assert.False(t, isYes("NO"))
	assert.False(t, isYes(""))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, splitList("1, 2,,3 "))
	assert.Nil(t, splitList(""))
}

func TestToRows(t *testing.T) {
	type item struct {
		ID   string `json:"id"`
		Size int    `json:"size"`
	}

	rows, err := ToRows([]item{{"a", 1}, {"b", 2}})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[1]["id"])
	assert.Equal(t, float64(2), rows[1]["size"])

	rows, err = ToRows(&item{ID: "single"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "single", rows[0]["id"])

	_, err = ToRows("scalar")
	assert.Error(t, err)
}

func TestReportRows(t *testing.T) {
	rows := reportRows(&efs.Report{
		DomainID:       "d-1",
		FileSystems:    []string{"fs-1"},
		MountTargets:   []string{"fsmt-1", "fsmt-2"},
		SecurityGroups: []string{"sg-1"},
		VPCs:           []string{"vpc-1"},
	})

	var kinds []string
	for _, r := range rows {
		kinds = append(kinds, r["kind"].(string))
		assert.Equal(t, "d-1", r["domain"])
	}
	assert.Equal(t, []string{"mount-target", "mount-target", "security-group", "file-system", "vpc"}, kinds)

	assert.Empty(t, reportRows(nil))
}

func TestEnvRows(t *testing.T) {
	env := &environment.Environment{
		DomainID:        "d-1",
		EnvironmentName: "mlops",
		Params:          map[string]string{"DataBucketName": "data"},
	}
	rows := envRows(env)
	require.NotEmpty(t, rows)

	var keys []string
	values := map[string]any{}
	for _, r := range rows {
		k := r["key"].(string)
		keys = append(keys, k)
		values[k] = r["value"]
	}
	assert.IsIncreasing(t, keys)
	assert.Equal(t, "d-1", values["DomainId"])
	assert.Equal(t, "data", values["DataBucketName"])
	assert.Equal(t, "mlops", values["EnvironmentName"])
}

func TestProvisioningParams(t *testing.T) {
	params := provisioningParams(map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, []catalog.Parameter{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}, params)
	assert.Empty(t, provisioningParams(nil))
}

func TestReadProduct(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "product.json")
	require.NoError(t, os.WriteFile(good, []byte(`{
		"ProductId": "prod-1",
		"ProductName": "Data Science Environment",
		"ProvisioningArtifactIds": "pa-1",
		"PortfolioId": "port-1"
	}`), 0o644))

	p, err := readProduct(good)
	require.NoError(t, err)
	assert.Equal(t, "prod-1", p.ProductID)
	assert.Equal(t, "pa-1", p.ProvisioningArtifactID)
	assert.Equal(t, "port-1", p.PortfolioID)

	incomplete := filepath.Join(dir, "incomplete.json")
	require.NoError(t, os.WriteFile(incomplete, []byte(`{"ProductId": "prod-1"}`), 0o644))
	_, err = readProduct(incomplete)
	assert.ErrorContains(t, err, "ProvisioningArtifactIds")

	_, err = readProduct(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestGetMeta(t *testing.T) {
	assert.Equal(t, meta.Meta{}, GetMeta(nil))
	assert.Equal(t, meta.Meta{}, GetMeta(&cli.Command{}))

	m := meta.Meta{Args: []string{"smops", "efs"}}
	cmd := (&CommandBuilder{Name: "x", Meta: m}).Build()
	assert.Equal(t, m, GetMeta(cmd))
}

func TestCommandBuilder(t *testing.T) {
	action := func(context.Context, *cli.Command) error { return nil }

	names := func(cmd *cli.Command) []string {
		var out []string
		for _, f := range cmd.Flags {
			out = append(out, f.Names()[0])
		}
		return out
	}

	group := (&CommandBuilder{Name: "group"}).Build()
	assert.Empty(t, group.Flags, "groups without an action get no flags")

	plain := (&CommandBuilder{Name: "plain", Action: action}).Build()
	assert.Equal(t, []string{"tldr"}, names(plain))

	rows := (&CommandBuilder{Name: "rows", Action: action, Output: true}).Build()
	assert.Subset(t, names(rows), []string{"tldr", "columns", "color", "filter", "output", "sort", "titles"})
}

func TestInitApp(t *testing.T) {
	t.Setenv("SMOPS_CFG", filepath.Join(t.TempDir(), "smops.yaml"))

	app, err := InitApp(context.Background(), []string{"smops", "efs", "clean"})
	require.NoError(t, err)
	assert.Equal(t, "smops", app.Name)

	var groups []string
	for _, c := range app.Commands {
		groups = append(groups, c.Name)
	}
	assert.Equal(t, []string{"deploy", "efs", "env", "ou", "pipeline", "policy", "product", "registry", "completion"}, groups)

	m := GetMeta(app)
	assert.Equal(t, []string{"smops", "efs", "clean"}, m.Args)

	clean := app.Command("efs").Command("clean")
	require.NotNil(t, clean)
	for i := 1; i < len(clean.Flags); i++ {
		assert.LessOrEqual(t, clean.Flags[i-1].Names()[0], clean.Flags[i].Names()[0], "flags are sorted")
	}
}
