// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package org lists the accounts of AWS Organizations units. It must run in
// the management account or a delegated administrator.
package org

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
)

// Account is a member account of an OU.
type Account struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status string `json:"status"`
	OU     string `json:"ou"`
}

// ListAccounts returns the accounts directly under each of ouIDs, in order.
func ListAccounts(ctx context.Context, client organizations.ListAccountsForParentAPIClient, ouIDs ...string) ([]Account, error) {
	var accounts []Account
	for _, ou := range ouIDs {
		p := organizations.NewListAccountsForParentPaginator(client, &organizations.ListAccountsForParentInput{
			ParentId: aws.String(ou),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list accounts of %s: %w", ou, err)
			}
			for _, a := range page.Accounts {
				accounts = append(accounts, fromAccount(ou, a))
			}
		}
	}
	log.Debugf("%d account(s) in %v", len(accounts), ouIDs)
	return accounts, nil
}

// AccountIDs is ListAccounts reduced to the account ids.
func AccountIDs(ctx context.Context, client organizations.ListAccountsForParentAPIClient, ouIDs ...string) ([]string, error) {
	accounts, err := ListAccounts(ctx, client, ouIDs...)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func fromAccount(ou string, a orgtypes.Account) Account {
	return Account{
		ID:     aws.ToString(a.Id),
		Name:   aws.ToString(a.Name),
		Email:  aws.ToString(a.Email),
		Status: string(a.Status),
		OU:     ou,
	}
}
