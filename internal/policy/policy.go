// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

const (
	// SidAllowCrossAccount is the statement whose AWS principals get the
	// new role ARNs.
	SidAllowCrossAccount = "AllowCrossAccount"
	// SidDenyNoVPC is the statement whose aws:sourceVpce condition gets the
	// new endpoint ids.
	SidDenyNoVPC = "DenyNoVPC"

	principalPath = "Principal.AWS"
	vpcePath      = "Condition.StringNotEquals.aws:sourceVpce"
)

// ErrStatementNotFound is returned when the policy lacks a required Sid.
var ErrStatementNotFound = errors.New("policy statement not found")

// Setup appends principals to the AllowCrossAccount statement and vpceIDs to
// the DenyNoVPC statement of policyJSON. Both values end up as lists even if
// they were single strings before. Nothing is deduplicated.
func Setup(policyJSON string, principals, vpceIDs []string) (string, error) {
	if !gjson.Valid(policyJSON) {
		return "", fmt.Errorf("invalid policy document")
	}

	allow, err := statementPath(policyJSON, SidAllowCrossAccount)
	if err != nil {
		return "", err
	}
	deny, err := statementPath(policyJSON, SidDenyNoVPC)
	if err != nil {
		return "", err
	}

	out, err := Append(policyJSON, allow+"."+principalPath, principals)
	if err != nil {
		return "", err
	}
	out, err = Append(out, deny+"."+vpcePath, vpceIDs)
	if err != nil {
		return "", err
	}

	log.Debugf("policy: %s", out)
	return out, nil
}

// Append sets path in doc to the existing value followed by values. A string
// value is promoted to a single element list; a missing value starts empty.
func Append(doc, path string, values []string) (string, error) {
	var merged []string

	cur := gjson.Get(doc, path)
	switch {
	case !cur.Exists():
	case cur.IsArray():
		for _, v := range cur.Array() {
			merged = append(merged, v.String())
		}
	case cur.Type == gjson.String:
		merged = append(merged, cur.String())
	default:
		return "", fmt.Errorf("%s is neither a string nor a list", path)
	}
	merged = append(merged, values...)
	if merged == nil {
		merged = []string{}
	}

	out, err := sjson.Set(doc, path, merged)
	if err != nil {
		return "", fmt.Errorf("failed to set %s: %w", path, err)
	}
	return out, nil
}

// statementPath returns the gjson path of the statement with the given Sid.
func statementPath(doc, sid string) (string, error) {
	stmts := gjson.Get(doc, "Statement")
	if stmts.IsObject() {
		if stmts.Get("Sid").String() == sid {
			return "Statement", nil
		}
		return "", fmt.Errorf("%w: %s", ErrStatementNotFound, sid)
	}

	idx := -1
	stmts.ForEach(func(k, v gjson.Result) bool {
		if v.Get("Sid").String() == sid {
			idx = int(k.Int())
			return false
		}
		return true
	})
	if idx < 0 {
		return "", fmt.Errorf("%w: %s", ErrStatementNotFound, sid)
	}
	return fmt.Sprintf("Statement.%d", idx), nil
}

// Diff renders the difference between two policy documents in the ASCII
// format of gojsondiff. Identical documents yield "".
func Diff(before, after string) (string, error) {
	d, err := gojsondiff.New().Compare([]byte(before), []byte(after))
	if err != nil {
		return "", fmt.Errorf("failed to compare policies: %w", err)
	}
	if !d.Modified() {
		return "", nil
	}

	var left map[string]interface{}
	if err := json.Unmarshal([]byte(before), &left); err != nil {
		return "", fmt.Errorf("failed to decode policy: %w", err)
	}

	f := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	return f.Format(d)
}
