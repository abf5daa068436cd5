// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package resource

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvent(rt cfn.RequestType, props map[string]any) cfn.Event {
	return cfn.Event{
		RequestType:        rt,
		RequestID:          "req-1",
		StackID:            "arn:aws:cloudformation:eu-west-1:1:stack/s/1",
		LogicalResourceID:  "Thing",
		PhysicalResourceID: "phys-1",
		ResourceProperties: props,
	}
}

func TestStringProp(t *testing.T) {
	e := newEvent(cfn.RequestCreate, map[string]any{"Name": "x", "Empty": "", "Num": float64(3), "List": []any{"a"}})

	v, err := StringProp(e, "Name")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	v, err = StringProp(e, "Num")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	_, err = StringProp(e, "Missing")
	assert.ErrorContains(t, err, "missing resource property Missing")
	_, err = StringProp(e, "Empty")
	assert.Error(t, err)
	_, err = StringProp(e, "List")
	assert.Error(t, err)
}

func TestStringSliceProp(t *testing.T) {
	e := newEvent(cfn.RequestCreate, map[string]any{
		"List":  []any{"a", "b"},
		"CSV":   "a, b,,c",
		"Mixed": []any{"a", 1.0},
		"Num":   1.0,
	})

	v, err := StringSliceProp(e, "List")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)

	v, err = StringSliceProp(e, "CSV")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, v)

	_, err = StringSliceProp(e, "Mixed")
	assert.Error(t, err)
	_, err = StringSliceProp(e, "Num")
	assert.Error(t, err)
	_, err = StringSliceProp(e, "Missing")
	assert.Error(t, err)
}

func TestBoolProp(t *testing.T) {
	e := newEvent(cfn.RequestCreate, map[string]any{"S": "true", "B": true, "Bad": "maybe", "F": "false"})

	for key, want := range map[string]bool{"S": true, "B": true, "F": false, "Missing": false} {
		got, err := BoolProp(e, key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}
	_, err := BoolProp(e, "Bad")
	assert.Error(t, err)
}

func TestOnCreate(t *testing.T) {
	calls := 0
	fn := OnCreate(func(context.Context, cfn.Event) (map[string]any, error) {
		calls++
		return map[string]any{"k": "v"}, nil
	})

	id, data, err := fn(context.Background(), newEvent(cfn.RequestCreate, nil))
	require.NoError(t, err)
	assert.Equal(t, "", id)
	assert.Equal(t, "v", data["k"])

	for _, rt := range []cfn.RequestType{cfn.RequestUpdate, cfn.RequestDelete} {
		id, data, err = fn(context.Background(), newEvent(rt, nil))
		require.NoError(t, err)
		assert.Equal(t, "phys-1", id)
		assert.Nil(t, data)
	}
	assert.Equal(t, 1, calls)
}

func TestWrap_SendsResponse(t *testing.T) {
	var got cfn.Response
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	lambdacontext.LogStreamName = "2026/10/19/[$LATEST]abc"

	tests := []struct {
		name       string
		fn         CreateFunc
		wantStatus cfn.StatusType
		wantReason string
	}{
		{
			name:       "success",
			fn:         func(context.Context, cfn.Event) (map[string]any, error) { return map[string]any{"Accounts": []string{"1"}}, nil },
			wantStatus: cfn.StatusSuccess,
		},
		{
			name:       "failure",
			fn:         func(context.Context, cfn.Event) (map[string]any, error) { return nil, errors.New("role not found") },
			wantStatus: cfn.StatusFailed,
			wantReason: "role not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = cfn.Response{}
			e := newEvent(cfn.RequestCreate, nil)
			e.PhysicalResourceID = ""
			e.ResponseURL = srv.URL

			_, err := Wrap(OnCreate(tt.fn))(context.Background(), e)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantReason, got.Reason)
			assert.Equal(t, "2026/10/19/[$LATEST]abc", got.PhysicalResourceID)
			assert.Equal(t, "req-1", got.RequestID)
		})
	}
}
