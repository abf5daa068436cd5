// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/urfave/cli/v3"

	"github.com/staranto/smops/internal/meta"
	"github.com/staranto/smops/internal/pipeline"
)

// pipelineInputs gathers everything needed to build a definition from the
// flags and, when --sagemaker-project-name is set, the project environment.
type pipelineInputs struct {
	cfg      aws.Config
	settings pipeline.Settings
	names    pipeline.Names
	spec     pipeline.Spec
	images   pipeline.Images
}

func resolvePipelineInputs(ctx context.Context, cmd *cli.Command) (*pipelineInputs, error) {
	cfg, err := loadAWSConfig(ctx, cmd)
	if err != nil {
		return nil, err
	}
	in := &pipelineInputs{cfg: cfg}

	if project := cmd.String("sagemaker-project-name"); project != "" {
		env, err := newResolver(cfg).Resolve(ctx, project, pipeline.EnvParams)
		if err != nil {
			return nil, err
		}
		in.settings = pipeline.SettingsFrom(env)
	}

	overrides := map[string]*string{
		"role-arn":     &in.settings.Role,
		"data-bucket":  &in.settings.DataBucket,
		"model-bucket": &in.settings.ModelBucket,
	}
	for flag, dst := range overrides {
		if v := cmd.String(flag); v != "" {
			*dst = v
		}
	}

	in.names = pipeline.Names{
		Pipeline:          cmd.String("pipeline-name"),
		ModelPackageGroup: cmd.String("model-package-group-name"),
		BaseJobPrefix:     cmd.String("base-job-prefix"),
	}

	in.spec = pipeline.DefaultSpec()
	if path := cmd.String("spec"); path != "" {
		if in.spec, err = pipeline.LoadSpec(path); err != nil {
			return nil, err
		}
	}

	region := cmd.String("region")
	if region == "" {
		region = cfg.Region
	}
	in.images, err = pipeline.ImagesFor(region, in.spec, pipeline.Images{
		XGBoost: cmd.String("xgboost-image"),
		SKLearn: cmd.String("sklearn-image"),
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"pipeline": in.names.Pipeline, "region": region}).Debugf("settings: %+v", in.settings)
	return in, nil
}

// PipelineDefinitionAction prints the pipeline definition without touching
// the pipeline in SageMaker.
func PipelineDefinitionAction(ctx context.Context, cmd *cli.Command) error {
	if ShortCircuitTLDR(ctx, cmd, "pipeline") {
		return nil
	}

	in, err := resolvePipelineInputs(ctx, cmd)
	if err != nil {
		return err
	}

	def, err := pipeline.Build(in.settings, in.names, in.spec, in.images,
		pipeline.ScriptLocations(in.settings.DataBucket, in.names.BaseJobPrefix))
	if err != nil {
		return err
	}

	body, err := def.Indent()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(writer(cmd), body)
	return err
}

// PipelineUpsertAction uploads the processing scripts, then creates or
// updates the pipeline and optionally starts it.
func PipelineUpsertAction(ctx context.Context, cmd *cli.Command) error {
	runner := &RowsActionRunner{
		CommandName:    "pipeline",
		DefaultColumns: []string{"pipelineArn", "created", "executionArn"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]map[string]any, error) {
			in, err := resolvePipelineInputs(ctx, cmd)
			if err != nil {
				return nil, err
			}

			sm, s3Client := newPipelineClients(in.cfg)

			code, err := pipeline.UploadScripts(ctx, s3Client, cmd.String("scripts-dir"),
				in.settings.DataBucket, in.names.BaseJobPrefix, in.settings.OutputKmsKey)
			if err != nil {
				return nil, err
			}

			def, err := pipeline.Build(in.settings, in.names, in.spec, in.images, code)
			if err != nil {
				return nil, err
			}

			res, err := pipeline.Upsert(ctx, sm, in.names.Pipeline, in.settings.Role, def, cmd.Bool("start"))
			if err != nil {
				return nil, err
			}
			return ToRows(res)
		},
	}
	return runner.Run(ctx, cmd)
}

func pipelineFlags(path string) []cli.Flag {
	names := pipeline.DefaultNames()
	str := func(name, usage, value string) cli.Flag {
		return NameSpacedValueChainFlagFromConfigFile("pipeline", path, &cli.StringFlag{
			Name:  name,
			Usage: usage,
			Value: value,
		})
	}

	return []cli.Flag{
		str("sagemaker-project-name", "SageMaker project whose environment the jobs run in", ""),
		str("pipeline-name", "name of the pipeline", names.Pipeline),
		str("model-package-group-name", "model package group the model is registered in", names.ModelPackageGroup),
		str("base-job-prefix", "prefix of the job names and S3 outputs", names.BaseJobPrefix),
		str("role-arn", "execution role, overrides the environment", ""),
		str("data-bucket", "data bucket, overrides the environment", ""),
		str("model-bucket", "model bucket, overrides the environment", ""),
		str("xgboost-image", "XGBoost training image URI", ""),
		str("sklearn-image", "scikit-learn processing image URI", ""),
		&cli.StringFlag{
			Name:      "spec",
			Usage:     "HCL file tuning instance types, hyperparameters and threshold",
			TakesFile: true,
		},
	}
}

// PipelineCommandBuilder constructs the "pipeline" command tree.
func PipelineCommandBuilder(meta meta.Meta) *cli.Command {
	definition := (&CommandBuilder{
		Name:      "definition",
		Usage:     "print the pipeline definition JSON",
		UsageText: `smops pipeline definition [--sagemaker-project-name p | --role-arn r --data-bucket b] [--spec pipeline.hcl] [options]`,
		Namespace: "pipeline",
		Flags:     pipelineFlags(meta.Config.Source),
		Action:    PipelineDefinitionAction,
		Meta:      meta,
	}).Build()

	upsert := (&CommandBuilder{
		Name:      "upsert",
		Usage:     "create or update the pipeline",
		UsageText: `smops pipeline upsert --sagemaker-project-name p --scripts-dir dir [--spec pipeline.hcl] [--start] [options]`,
		Namespace: "pipeline",
		Flags: append(pipelineFlags(meta.Config.Source),
			&cli.StringFlag{
				Name:      "scripts-dir",
				Usage:     "directory holding preprocess.py and evaluate.py",
				Value:     ".",
				TakesFile: true,
			},
			&cli.BoolFlag{
				Name:  "start",
				Usage: "start an execution after the upsert",
			},
		),
		Action: PipelineUpsertAction,
		Output: true,
		Meta:   meta,
	}).Build()

	return (&CommandBuilder{
		Name:     "pipeline",
		Usage:    "SageMaker model building pipeline",
		Commands: []*cli.Command{definition, upsert},
		Meta:     meta,
	}).Build()
}
