// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"

	"github.com/apex/log"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Spec holds the tunables of the pipeline. Every attribute is optional in
// the HCL file; missing ones keep their DefaultSpec value.
type Spec struct {
	ProcessingInstanceType  string    `hcl:"processing_instance_type,optional"`
	ProcessingInstanceCount int       `hcl:"processing_instance_count,optional"`
	TrainingInstanceType    string    `hcl:"training_instance_type,optional"`
	ModelApprovalStatus     string    `hcl:"model_approval_status,optional"`
	XGBoostVersion          string    `hcl:"xgboost_version,optional"`
	SKLearnVersion          string    `hcl:"sklearn_version,optional"`
	MSEThreshold            float64   `hcl:"mse_threshold,optional"`
	InferenceInstances      []string  `hcl:"inference_instances,optional"`
	TransformInstances      []string  `hcl:"transform_instances,optional"`
	VolumeSizeGB            int       `hcl:"volume_size_gb,optional"`
	MaxRuntimeSeconds       int       `hcl:"max_runtime_seconds,optional"`
	Hyperparameters         cty.Value `hcl:"hyperparameters,optional"`
}

// DefaultSpec returns the abalone pipeline defaults.
func DefaultSpec() Spec {
	return Spec{
		ProcessingInstanceType:  "ml.m5.xlarge",
		ProcessingInstanceCount: 1,
		TrainingInstanceType:    "ml.m5.xlarge",
		ModelApprovalStatus:     "PendingManualApproval",
		XGBoostVersion:          "1.0-1",
		SKLearnVersion:          "0.23-1",
		MSEThreshold:            6.0,
		InferenceInstances:      []string{"ml.t2.medium", "ml.m5.large"},
		TransformInstances:      []string{"ml.m5.large"},
		VolumeSizeGB:            30,
		MaxRuntimeSeconds:       86400,
		Hyperparameters: cty.ObjectVal(map[string]cty.Value{
			"objective":        cty.StringVal("reg:linear"),
			"num_round":        cty.NumberIntVal(50),
			"max_depth":        cty.NumberIntVal(5),
			"eta":              cty.MustParseNumberVal("0.2"),
			"gamma":            cty.NumberIntVal(4),
			"min_child_weight": cty.NumberIntVal(6),
			"subsample":        cty.MustParseNumberVal("0.7"),
			"silent":           cty.NumberIntVal(0),
		}),
	}
}

// LoadSpec decodes path over DefaultSpec. An empty path returns the
// defaults. The file is HCL, or JSON when named *.json.
func LoadSpec(path string) (Spec, error) {
	spec := DefaultSpec()
	if path == "" {
		return spec, nil
	}

	if err := hclsimple.DecodeFile(path, nil, &spec); err != nil {
		return Spec{}, fmt.Errorf("failed to load pipeline spec %s: %w", path, err)
	}
	if spec.Hyperparameters.IsNull() {
		spec.Hyperparameters = DefaultSpec().Hyperparameters
	}

	log.WithField("spec", path).Debug("pipeline spec loaded")
	return spec, nil
}

// HyperparameterMap renders the hyperparameters as the string map training
// jobs expect.
func (s Spec) HyperparameterMap() (map[string]string, error) {
	hp := s.Hyperparameters
	if hp.IsNull() {
		return map[string]string{}, nil
	}
	if !hp.Type().IsObjectType() && !hp.Type().IsMapType() {
		return nil, fmt.Errorf("hyperparameters must be an object, got %s", hp.Type().FriendlyName())
	}

	out := map[string]string{}
	for k, v := range hp.AsValueMap() {
		sv, err := convert.Convert(v, cty.String)
		if err != nil {
			return nil, fmt.Errorf("hyperparameter %s: %w", k, err)
		}
		if sv.IsNull() || !sv.IsKnown() {
			return nil, fmt.Errorf("hyperparameter %s has no value", k)
		}
		out[k] = sv.AsString()
	}
	return out, nil
}
