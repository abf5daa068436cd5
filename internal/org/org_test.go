// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package org

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrg map[string][][]string

func (f fakeOrg) ListAccountsForParent(_ context.Context, in *organizations.ListAccountsForParentInput, _ ...func(*organizations.Options)) (*organizations.ListAccountsForParentOutput, error) {
	pages, ok := f[aws.ToString(in.ParentId)]
	if !ok {
		return nil, errors.New("ParentNotFoundException")
	}
	idx := 0
	if in.NextToken != nil {
		idx = 1
	}
	out := &organizations.ListAccountsForParentOutput{}
	for _, id := range pages[idx] {
		out.Accounts = append(out.Accounts, orgtypes.Account{Id: aws.String(id), Name: aws.String("acct-" + id), Status: orgtypes.AccountStatusActive})
	}
	if idx+1 < len(pages) {
		out.NextToken = aws.String("next")
	}
	return out, nil
}

func TestListAccounts(t *testing.T) {
	client := fakeOrg{
		"ou-stage": {{"111", "222"}, {"333"}},
		"ou-prod":  {{"444"}},
	}

	ids, err := AccountIDs(context.Background(), client, "ou-stage", "ou-prod")
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "222", "333", "444"}, ids)

	accounts, err := ListAccounts(context.Background(), client, "ou-prod")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, Account{ID: "444", Name: "acct-444", Status: "ACTIVE", OU: "ou-prod"}, accounts[0])
}

func TestListAccounts_Error(t *testing.T) {
	_, err := AccountIDs(context.Background(), fakeOrg{}, "ou-x")
	assert.ErrorContains(t, err, "ou-x")
}

func TestListAccounts_None(t *testing.T) {
	ids, err := AccountIDs(context.Background(), fakeOrg{})
	require.NoError(t, err)
	assert.Empty(t, ids)
}
