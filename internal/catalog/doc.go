// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package catalog provisions and terminates Service Catalog products and
// manages the portfolio association of the calling role. Provisioned product
// ids are kept in SSM so a later pipeline stage can find them again.
package catalog
