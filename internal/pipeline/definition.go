// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
)

// DefinitionVersion is the pipeline definition schema version.
const DefinitionVersion = "2020-12-01"

// Step and property file names.
const (
	StepPreprocess = "PreprocessAbaloneData"
	StepTrain      = "TrainAbaloneModel"
	StepEvaluate   = "EvaluateAbaloneModel"
	StepCheck      = "CheckMSEAbaloneEvaluation"
	StepRegister   = "RegisterAbaloneModel"

	EvaluationReport = "AbaloneEvaluationReport"
	mseJSONPath      = "regression_metrics.mse.value"
)

const (
	processingRoot = "/opt/ml/processing"
	codeDir        = processingRoot + "/input/code"
)

// Names identifies the pipeline and what it produces.
type Names struct {
	Pipeline          string
	ModelPackageGroup string
	BaseJobPrefix     string
}

// DefaultNames returns the abalone names.
func DefaultNames() Names {
	return Names{
		Pipeline:          "AbalonePipeline",
		ModelPackageGroup: "AbalonePackageGroup",
		BaseJobPrefix:     "Abalone",
	}
}

// Settings is the environment the jobs run in.
type Settings struct {
	Role             string
	Subnets          []string
	SecurityGroupIDs []string
	DataBucket       string
	ModelBucket      string
	// VolumeKmsKey encrypts the job volumes, OutputKmsKey the S3 outputs.
	VolumeKmsKey string
	OutputKmsKey string
}

// CodeLocations are the S3 URIs of the processing scripts.
type CodeLocations struct {
	Preprocess string
	Evaluate   string
}

// Definition is a SageMaker pipeline definition document.
type Definition map[string]any

// JSON renders d.
func (d Definition) JSON() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Indent renders d for humans.
func (d Definition) Indent() (string, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func get(ref string) map[string]any {
	return map[string]any{"Get": ref}
}

func param(name string) map[string]any {
	return get("Parameters." + name)
}

func stepOutput(step, output string) map[string]any {
	return get(fmt.Sprintf("Steps.%s.ProcessingOutputConfig.Outputs['%s'].S3Output.S3Uri", step, output))
}

// Build assembles the definition.
func Build(s Settings, names Names, spec Spec, images Images, code CodeLocations) (Definition, error) {
	if s.Role == "" {
		return nil, errors.New("execution role is required")
	}
	if s.DataBucket == "" || s.ModelBucket == "" {
		return nil, errors.New("data and model buckets are required")
	}
	if code.Preprocess == "" || code.Evaluate == "" {
		return nil, errors.New("preprocess and evaluate script locations are required")
	}

	hp, err := spec.HyperparameterMap()
	if err != nil {
		return nil, err
	}

	b := &builder{s: s, names: names, spec: spec, images: images}

	evalOutput := b.outputURI(StepEvaluate, "evaluation")
	register := map[string]any{
		"Name": StepRegister,
		"Type": "RegisterModel",
		"Arguments": map[string]any{
			"ModelPackageGroupName": names.ModelPackageGroup,
			"ModelMetrics": map[string]any{
				"ModelQuality": map[string]any{
					"Statistics": map[string]any{
						"ContentType": "application/json",
						"S3Uri":       evalOutput + "/evaluation.json",
					},
				},
			},
			"InferenceSpecification": map[string]any{
				"Containers": []any{map[string]any{
					"Image":        images.XGBoost,
					"ModelDataUrl": get("Steps." + StepTrain + ".ModelArtifacts.S3ModelArtifacts"),
				}},
				"SupportedContentTypes":                   []string{"text/csv"},
				"SupportedResponseMIMETypes":              []string{"text/csv"},
				"SupportedRealtimeInferenceInstanceTypes": spec.InferenceInstances,
				"SupportedTransformInstanceTypes":         spec.TransformInstances,
			},
			"ModelApprovalStatus": param("ModelApprovalStatus"),
		},
	}

	steps := []any{
		b.processing(StepPreprocess, images.SKLearn, code.Preprocess,
			param("ProcessingInstanceCount"),
			[]any{"--input-data", param("InputDataUrl")},
			nil,
			[]string{"train", "validation", "test"},
		),
		b.training(hp),
		b.withPropertyFile(b.processing(StepEvaluate, images.XGBoost, code.Evaluate,
			1,
			nil,
			[]any{
				b.input("input-1", get("Steps."+StepTrain+".ModelArtifacts.S3ModelArtifacts"), processingRoot+"/model"),
				b.input("input-2", stepOutput(StepPreprocess, "test"), processingRoot+"/test"),
			},
			[]string{"evaluation"},
		)),
		map[string]any{
			"Name": StepCheck,
			"Type": "Condition",
			"Arguments": map[string]any{
				"Conditions": []any{map[string]any{
					"Type": "LessThanOrEqualTo",
					"LeftValue": map[string]any{
						"Std:JsonGet": map[string]any{
							"PropertyFile": get(fmt.Sprintf("Steps.%s.PropertyFiles.%s", StepEvaluate, EvaluationReport)),
							"Path":         mseJSONPath,
						},
					},
					"RightValue": spec.MSEThreshold,
				}},
				"IfSteps":   []any{register},
				"ElseSteps": []any{},
			},
		},
	}

	return Definition{
		"Version":  DefinitionVersion,
		"Metadata": map[string]any{},
		"Parameters": []any{
			map[string]any{"Name": "ProcessingInstanceType", "Type": "String", "DefaultValue": spec.ProcessingInstanceType},
			map[string]any{"Name": "ProcessingInstanceCount", "Type": "Integer", "DefaultValue": spec.ProcessingInstanceCount},
			map[string]any{"Name": "TrainingInstanceType", "Type": "String", "DefaultValue": spec.TrainingInstanceType},
			map[string]any{"Name": "ModelApprovalStatus", "Type": "String", "DefaultValue": spec.ModelApprovalStatus},
			map[string]any{"Name": "InputDataUrl", "Type": "String", "DefaultValue": fmt.Sprintf("s3://%s/datasets/abalone-dataset.csv", s.DataBucket)},
		},
		"Steps": steps,
	}, nil
}

type builder struct {
	s      Settings
	names  Names
	spec   Spec
	images Images
}

func (b *builder) outputURI(step, output string) string {
	return fmt.Sprintf("s3://%s/%s/%s/%s", b.s.DataBucket, b.names.BaseJobPrefix, step, output)
}

func (b *builder) vpcConfig() map[string]any {
	return map[string]any{
		"Subnets":          b.s.Subnets,
		"SecurityGroupIds": b.s.SecurityGroupIDs,
	}
}

func (b *builder) input(name string, source any, dest string) map[string]any {
	return map[string]any{
		"InputName":  name,
		"AppManaged": false,
		"S3Input": map[string]any{
			"S3Uri":                  source,
			"LocalPath":              dest,
			"S3DataType":             "S3Prefix",
			"S3InputMode":            "File",
			"S3DataDistributionType": "FullyReplicated",
			"S3CompressionType":      "None",
		},
	}
}

func (b *builder) processing(name, image, code string, count any, args []any, inputs []any, outputs []string) map[string]any {
	script := path.Base(code)

	inputs = append(inputs, b.input("code", code, codeDir))

	outs := make([]any, 0, len(outputs))
	for _, o := range outputs {
		outs = append(outs, map[string]any{
			"OutputName": o,
			"AppManaged": false,
			"S3Output": map[string]any{
				"S3Uri":        b.outputURI(name, o),
				"LocalPath":    processingRoot + "/" + o,
				"S3UploadMode": "EndOfJob",
			},
		})
	}

	app := map[string]any{
		"ImageUri":            image,
		"ContainerEntrypoint": []string{"python3", codeDir + "/" + script},
	}
	if len(args) > 0 {
		app["ContainerArguments"] = args
	}

	return map[string]any{
		"Name": name,
		"Type": "Processing",
		"Arguments": map[string]any{
			"ProcessingResources": map[string]any{
				"ClusterConfig": map[string]any{
					"InstanceType":   param("ProcessingInstanceType"),
					"InstanceCount":  count,
					"VolumeSizeInGB": b.spec.VolumeSizeGB,
					"VolumeKmsKeyId": b.s.VolumeKmsKey,
				},
			},
			"AppSpecification": app,
			"RoleArn":          b.s.Role,
			"ProcessingInputs": inputs,
			"ProcessingOutputConfig": map[string]any{
				"Outputs":  outs,
				"KmsKeyId": b.s.OutputKmsKey,
			},
			"StoppingCondition": map[string]any{"MaxRuntimeInSeconds": b.spec.MaxRuntimeSeconds},
			"NetworkConfig": map[string]any{
				"EnableNetworkIsolation":                false,
				"EnableInterContainerTrafficEncryption": true,
				"VpcConfig":                             b.vpcConfig(),
			},
		},
	}
}

func (b *builder) withPropertyFile(step map[string]any) map[string]any {
	step["PropertyFiles"] = []any{map[string]any{
		"PropertyFileName": EvaluationReport,
		"OutputName":       "evaluation",
		"FilePath":         "evaluation.json",
	}}
	return step
}

func (b *builder) channel(name string) map[string]any {
	return map[string]any{
		"ChannelName": name,
		"ContentType": "text/csv",
		"DataSource": map[string]any{
			"S3DataSource": map[string]any{
				"S3DataType":             "S3Prefix",
				"S3Uri":                  stepOutput(StepPreprocess, name),
				"S3DataDistributionType": "FullyReplicated",
			},
		},
	}
}

func (b *builder) training(hp map[string]string) map[string]any {
	return map[string]any{
		"Name": StepTrain,
		"Type": "Training",
		"Arguments": map[string]any{
			"AlgorithmSpecification": map[string]any{
				"TrainingImage":     b.images.XGBoost,
				"TrainingInputMode": "File",
			},
			"OutputDataConfig": map[string]any{
				"S3OutputPath": fmt.Sprintf("s3://%s/%s/AbaloneTrain", b.s.ModelBucket, b.names.BaseJobPrefix),
				"KmsKeyId":     b.s.OutputKmsKey,
			},
			"StoppingCondition": map[string]any{"MaxRuntimeInSeconds": b.spec.MaxRuntimeSeconds},
			"ResourceConfig": map[string]any{
				"InstanceCount":  1,
				"InstanceType":   param("TrainingInstanceType"),
				"VolumeSizeInGB": b.spec.VolumeSizeGB,
				"VolumeKmsKeyId": b.s.VolumeKmsKey,
			},
			"RoleArn":                               b.s.Role,
			"InputDataConfig":                       []any{b.channel("train"), b.channel("validation")},
			"HyperParameters":                       hp,
			"VpcConfig":                             b.vpcConfig(),
			"EnableNetworkIsolation":                false,
			"EnableInterContainerTrafficEncryption": true,
		},
	}
}
