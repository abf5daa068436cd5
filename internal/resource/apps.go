// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"

	awsx "github.com/staranto/smops/internal/aws"
	"github.com/staranto/smops/internal/poll"
)

// AppsPollInterval is how often app deletion is checked.
const AppsPollInterval = 5 * time.Second

// AppsAPI is the slice of the SageMaker client used to delete Studio apps.
type AppsAPI interface {
	DescribeDomain(ctx context.Context, params *sagemaker.DescribeDomainInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeDomainOutput, error)
	sagemaker.ListAppsAPIClient
	DeleteApp(ctx context.Context, params *sagemaker.DeleteAppInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DeleteAppOutput, error)
}

// DeleteApps removes the KernelGateway apps of a domain before the domain
// itself is deleted; CloudFormation cannot delete a domain with running apps.
type DeleteApps struct {
	SageMaker AppsAPI
	Poll      poll.Options
}

// Handle uses DomainId as physical id on Create and Update and deletes the
// apps on Delete.
func (h *DeleteApps) Handle(ctx context.Context, event cfn.Event) (string, map[string]any, error) {
	switch event.RequestType {
	case cfn.RequestCreate, cfn.RequestUpdate:
		id, err := StringProp(event, "DomainId")
		if err != nil {
			return Keep(event), nil, err
		}
		return id, nil, nil
	case cfn.RequestDelete:
		return Keep(event), nil, h.DeleteKernelGateways(ctx, Keep(event))
	default:
		return Keep(event), nil, fmt.Errorf("unknown request type %q", event.RequestType)
	}
}

// DeleteKernelGateways deletes every KernelGateway app of domainID and waits
// until all of them are Deleted. Apps already Deleting are only waited for. A domain that cannot be described is assumed gone.
func (h *DeleteApps) DeleteKernelGateways(ctx context.Context, domainID string) error {
	log.Infof("start deleting apps for domain id: %s", domainID)

	if _, err := h.SageMaker.DescribeDomain(ctx, &sagemaker.DescribeDomainInput{DomainId: aws.String(domainID)}); err != nil {
		log.Warnf("cannot retrieve %s: %s", domainID, awsx.ErrorMessage(err))
		return nil
	}

	apps, err := h.kernelGateways(ctx, domainID)
	if err != nil {
		return err
	}
	for _, a := range apps {
		if a.Status == smtypes.AppStatusDeleting {
			continue
		}
		log.WithFields(log.Fields{"app": aws.ToString(a.AppName), "user": aws.ToString(a.UserProfileName)}).Debug("deleting app")
		_, err := h.SageMaker.DeleteApp(ctx, &sagemaker.DeleteAppInput{
			DomainId:        a.DomainId,
			UserProfileName: a.UserProfileName,
			SpaceName:       a.SpaceName,
			AppType:         a.AppType,
			AppName:         a.AppName,
		})
		if err != nil {
			return fmt.Errorf("failed to delete app %s: %w", aws.ToString(a.AppName), err)
		}
	}

	opts := h.Poll
	if opts.Interval == 0 {
		opts.Interval = AppsPollInterval
	}
	err = poll.Until(ctx, opts, func(ctx context.Context) (bool, string, error) {
		left, err := h.kernelGateways(ctx, domainID)
		if err != nil {
			return false, "", err
		}
		return len(left) == 0, fmt.Sprintf("number of active KernelGateway apps: %d", len(left)), nil
	})
	if err != nil {
		return err
	}

	log.Infof("KernelGateway apps for %s deleted", domainID)
	return nil
}

// kernelGateways lists the KernelGateway apps of domainID that are not
// deleted. Failed apps are included; they still block the domain delete.
func (h *DeleteApps) kernelGateways(ctx context.Context, domainID string) ([]smtypes.AppDetails, error) {
	var apps []smtypes.AppDetails
	p := sagemaker.NewListAppsPaginator(h.SageMaker, &sagemaker.ListAppsInput{DomainIdEquals: aws.String(domainID)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list apps of %s: %w", domainID, err)
		}
		for _, a := range page.Apps {
			if a.AppType != smtypes.AppTypeKernelGateway {
				continue
			}
			if a.Status == smtypes.AppStatusDeleted {
				continue
			}
			apps = append(apps, a)
		}
	}
	return apps, nil
}
