// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go-v2/service/organizations"

	"github.com/staranto/smops/internal/org"
)

// OUAccounts lists the accounts in a set of organizational units.
type OUAccounts struct {
	Organizations organizations.ListAccountsForParentAPIClient
}

// Create returns the account ids of every OU in OUIds as Accounts.
func (h *OUAccounts) Create(ctx context.Context, event cfn.Event) (map[string]any, error) {
	ous, err := StringSliceProp(event, "OUIds")
	if err != nil {
		return nil, err
	}
	ids, err := org.AccountIDs(ctx, h.Organizations, ous...)
	if err != nil {
		return nil, err
	}
	return map[string]any{"Accounts": ids}, nil
}
