// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const bucketPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Sid": "AllowCrossAccount",
      "Effect": "Allow",
      "Principal": {"AWS": "arn:aws:iam::111111111111:role/Dev"},
      "Action": ["s3:GetObject", "s3:PutObject"],
      "Resource": "arn:aws:s3:::bucket/*"
    },
    {
      "Sid": "DenyNoVPC",
      "Effect": "Deny",
      "Principal": "*",
      "Action": "s3:*",
      "Resource": "arn:aws:s3:::bucket/*",
      "Condition": {"StringNotEquals": {"aws:sourceVpce": ["vpce-dev"]}}
    },
    {
      "Sid": "Untouched",
      "Effect": "Deny",
      "Principal": "*",
      "Action": "s3:DeleteBucket",
      "Resource": "arn:aws:s3:::bucket"
    }
  ]
}`

func TestSetup(t *testing.T) {
	out, err := Setup(bucketPolicy,
		[]string{"arn:aws:iam::222222222222:role/Exec", "arn:aws:iam::333333333333:role/Exec"},
		[]string{"vpce-stage", "vpce-prod"})
	require.NoError(t, err)

	principals := gjson.Get(out, "Statement.0.Principal.AWS")
	assert.True(t, principals.IsArray(), "string principal becomes a list")
	assert.Equal(t, []string{
		"arn:aws:iam::111111111111:role/Dev",
		"arn:aws:iam::222222222222:role/Exec",
		"arn:aws:iam::333333333333:role/Exec",
	}, strings(principals))

	vpces := gjson.Get(out, "Statement.1.Condition.StringNotEquals.aws:sourceVpce")
	assert.Equal(t, []string{"vpce-dev", "vpce-stage", "vpce-prod"}, strings(vpces))

	assert.JSONEq(t, gjson.Get(bucketPolicy, "Statement.2").Raw, gjson.Get(out, "Statement.2").Raw)
	assert.Equal(t, "2012-10-17", gjson.Get(out, "Version").String())
}

func TestSetup_KeepsDuplicates(t *testing.T) {
	out, err := Setup(bucketPolicy, []string{"arn:aws:iam::111111111111:role/Dev"}, []string{"vpce-dev"})
	require.NoError(t, err)
	assert.Len(t, gjson.Get(out, "Statement.0.Principal.AWS").Array(), 2)
	assert.Len(t, gjson.Get(out, "Statement.1.Condition.StringNotEquals.aws:sourceVpce").Array(), 2)
}

func TestSetup_Errors(t *testing.T) {
	_, err := Setup("{not json", nil, nil)
	assert.Error(t, err)

	noDeny := `{"Statement":[{"Sid":"AllowCrossAccount","Principal":{"AWS":[]}}]}`
	_, err = Setup(noDeny, []string{"a"}, []string{"b"})
	assert.ErrorIs(t, err, ErrStatementNotFound)
	assert.ErrorContains(t, err, "DenyNoVPC")

	_, err = Setup(`{"Statement":[]}`, nil, nil)
	assert.ErrorIs(t, err, ErrStatementNotFound)
	assert.ErrorContains(t, err, "AllowCrossAccount")
}

func TestAppend(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    []string
		wantErr bool
	}{
		{name: "missing", doc: `{}`, want: []string{"x"}},
		{name: "string", doc: `{"a":"s"}`, want: []string{"s", "x"}},
		{name: "list", doc: `{"a":["s","t"]}`, want: []string{"s", "t", "x"}},
		{name: "number", doc: `{"a":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Append(tt.doc, "a", []string{"x"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings(gjson.Get(out, "a")))
		})
	}
}

func TestSetup_SingleStatementObject(t *testing.T) {
	_, err := Setup(`{"Statement":{"Sid":"AllowCrossAccount","Principal":{"AWS":"a"}}}`, nil, nil)
	assert.ErrorIs(t, err, ErrStatementNotFound)
}

func TestDiff(t *testing.T) {
	after, err := Setup(bucketPolicy, []string{"arn:aws:iam::222222222222:role/Exec"}, []string{"vpce-stage"})
	require.NoError(t, err)

	d, err := Diff(bucketPolicy, after)
	require.NoError(t, err)
	assert.Contains(t, d, "vpce-stage")
	assert.Contains(t, d, "222222222222")

	d, err = Diff(bucketPolicy, bucketPolicy)
	require.NoError(t, err)
	assert.Empty(t, d)

	_, err = Diff("{", bucketPolicy)
	assert.Error(t, err)
}

func strings(r gjson.Result) []string {
	var out []string
	for _, v := range r.Array() {
		out = append(out, v.String())
	}
	return out
}
