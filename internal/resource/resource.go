// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/cfn"
)

// Func handles one custom resource request. An empty physicalID on Create is
// replaced by the Lambda log stream name. A returned error is reported as
// FAILED with the error text as reason.
type Func func(ctx context.Context, event cfn.Event) (physicalID string, data map[string]any, err error)

// CreateFunc handles only the Create request of a resource.
type CreateFunc func(ctx context.Context, event cfn.Event) (data map[string]any, err error)

// Wrap adapts fn to the Lambda handler shape that sends the response to the
// pre-signed CloudFormation URL.
func Wrap(fn Func) cfn.CustomResourceLambdaFunction {
	return cfn.LambdaWrap(cfn.CustomResourceFunction(fn))
}

// Keep returns the physical id CloudFormation already knows, so Update and
// Delete do not trigger a replacement.
func Keep(event cfn.Event) string {
	return event.PhysicalResourceID
}

// OnCreate runs fn for Create requests. Update and Delete succeed without
// doing anything.
func OnCreate(fn CreateFunc) Func {
	return func(ctx context.Context, event cfn.Event) (string, map[string]any, error) {
		l := log.WithFields(log.Fields{"request": string(event.RequestType), "logical": event.LogicalResourceID})
		if event.RequestType != cfn.RequestCreate {
			l.Info("nothing to do")
			return Keep(event), nil, nil
		}

		data, err := fn(ctx, event)
		if err != nil {
			l.WithError(err).Error("create failed")
			return "", nil, err
		}
		l.Debugf("data: %v", data)
		return "", data, nil
	}
}

// StringProp returns a required string resource property.
func StringProp(event cfn.Event, key string) (string, error) {
	v, ok := event.ResourceProperties[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing resource property %s", key)
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", fmt.Errorf("resource property %s is empty", key)
		}
		return t, nil
	case float64, bool:
		return fmt.Sprint(t), nil
	default:
		return "", fmt.Errorf("resource property %s is not a string", key)
	}
}

// StringSliceProp returns a required list property. CloudFormation passes
// lists as JSON arrays; a comma separated string is accepted too.
func StringSliceProp(event cfn.Event, key string) ([]string, error) {
	v, ok := event.ResourceProperties[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("missing resource property %s", key)
	}

	var out []string
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("resource property %s contains a non-string element", key)
			}
			out = append(out, s)
		}
	case []string:
		out = t
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	default:
		return nil, fmt.Errorf("resource property %s is not a list", key)
	}
	return out, nil
}

// BoolProp returns a boolean property. CloudFormation sends booleans as the
// strings "true" and "false". A missing property is false.
func BoolProp(event cfn.Event, key string) (bool, error) {
	v, ok := event.ResourceProperties[key]
	if !ok || v == nil {
		return false, nil
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, fmt.Errorf("resource property %s: %w", key, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("resource property %s is not a boolean", key)
	}
}
