// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package function

import (
	"context"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/events"

	"github.com/staranto/smops/internal/catalog"
	"github.com/staranto/smops/internal/efs"
	"github.com/staranto/smops/internal/job"
)

// OperationAssociateRole selects AssociateRole in provision jobs.
const OperationAssociateRole = "associate-role"

// CleanUpEFSEvent is the payload of clean-up-efs.
type CleanUpEFSEvent struct {
	SageMakerDomainID string `json:"SageMakerDomainId"`
	DeleteVPC         bool   `json:"DeleteVPC"`
}

// EFSDeleter is implemented by efs.Teardown.
type EFSDeleter interface {
	DeleteEFS(ctx context.Context, domainID string, opts efs.Options) (*efs.Report, error)
}

// CleanUpEFSHandler deletes the EFS home file system of the domain named in
// the event.
func CleanUpEFSHandler(t EFSDeleter) func(context.Context, CleanUpEFSEvent) (*efs.Report, error) {
	return func(ctx context.Context, event CleanUpEFSEvent) (*efs.Report, error) {
		log.WithFields(log.Fields{"domain": event.SageMakerDomainID, "deleteVPC": event.DeleteVPC}).Info("clean up EFS")
		return t.DeleteEFS(ctx, event.SageMakerDomainID, efs.Options{DeleteVPC: event.DeleteVPC})
	}
}

// JobHandler adapts fn to a CodePipeline job event handler.
func JobHandler(r *job.Runner, fn job.Func) func(context.Context, events.CodePipelineJobEvent) error {
	return func(ctx context.Context, event events.CodePipelineJobEvent) error {
		return r.Run(ctx, event, fn)
	}
}

// Provisioner is the part of catalog.Catalog used by provision jobs.
type Provisioner interface {
	Provision(ctx context.Context, product catalog.Product, params []catalog.Parameter) (string, error)
	AssociateRole(ctx context.Context, portfolioID string) error
}

// Terminator is the part of catalog.Catalog used by terminate jobs.
type Terminator interface {
	Terminate(ctx context.Context, product catalog.Product) error
}

// Provision reads the product file named by the job and provisions it, or
// associates the caller role with its portfolio when the operation asks for
// it. An empty operation provisions.
func Provision(c Provisioner) job.Func {
	return func(ctx context.Context, j *job.Job) error {
		var product catalog.Product
		if err := j.ReadArtifactFile(ctx, j.Params.FileName, &product); err != nil {
			return err
		}

		if j.Params.Operation == OperationAssociateRole {
			return c.AssociateRole(ctx, product.PortfolioID)
		}

		params := make([]catalog.Parameter, 0, len(j.Params.ProvisioningParameters))
		for _, kv := range j.Params.ProvisioningParameters {
			params = append(params, catalog.Parameter{Key: kv.Key, Value: kv.Value})
		}
		_, err := c.Provision(ctx, product, params)
		return err
	}
}

// Terminate reads the product file named by the job and terminates its
// provisioned instance.
func Terminate(c Terminator) job.Func {
	return func(ctx context.Context, j *job.Job) error {
		var product catalog.Product
		if err := j.ReadArtifactFile(ctx, j.Params.FileName, &product); err != nil {
			return err
		}
		return c.Terminate(ctx, product)
	}
}
