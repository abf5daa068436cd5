// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import "github.com/staranto/smops/internal/environment"

// EnvParams are the SSM settings the pipeline reads. None is required; a
// missing bucket is reported by Build.
var EnvParams = []environment.Param{
	{VariableName: "DataBucketName", ParameterName: "data-bucket-name"},
	{VariableName: "ModelBucketName", ParameterName: "model-bucket-name"},
	{VariableName: "S3KmsKeyId", ParameterName: "kms-s3-key-arn"},
	{VariableName: "EbsKmsKeyArn", ParameterName: "kms-ebs-key-arn"},
}

// SettingsFrom maps a resolved environment onto job settings.
func SettingsFrom(env *environment.Environment) Settings {
	return Settings{
		Role:             env.ExecutionRole,
		Subnets:          env.SubnetIDs,
		SecurityGroupIDs: env.SecurityGroups,
		DataBucket:       env.Param("DataBucketName"),
		ModelBucket:      env.Param("ModelBucketName"),
		VolumeKmsKey:     env.Param("EbsKmsKeyArn"),
		OutputKmsKey:     env.Param("S3KmsKeyId"),
	}
}
