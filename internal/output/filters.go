// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/apex/log"
	"github.com/tidwall/gjson"
)

// filterRegex splits a filter into key, operator and target. Operators are
// one of = ^ ~ < > @ or /, optionally negated with a leading !.
var filterRegex = regexp.MustCompile(`^(.*?)(!?[=^~<>@/])(.*)$`)

// Filter is a single parsed --filter expression.
type Filter struct {
	Key     string
	Negate  bool
	Operand string
	Target  string
}

// BuildFilters parses a filter specification. Malformed entries are logged
// and skipped.
func BuildFilters(spec string) []Filter {
	//nolint:prealloc
	var filters []Filter

	if spec == "" {
		return filters
	}

	delim := ","
	if d, ok := os.LookupEnv("SMOPS_FILTER_DELIM"); ok && d != "" {
		delim = d
	}

	for _, filterSpec := range strings.Split(spec, delim) {
		parts := filterRegex.FindStringSubmatch(filterSpec)
		if parts == nil || parts[1] == "" {
			log.Error("invalid filter: " + filterSpec)
			continue
		}

		negate := strings.HasPrefix(parts[2], "!")
		filters = append(filters, Filter{
			Key:     parts[1],
			Negate:  negate,
			Operand: strings.TrimPrefix(parts[2], "!"),
			Target:  parts[3],
		})
	}

	return filters
}

// FilterDataset returns the rows matching every filter of spec, reduced to
// cols keyed by their OutputKey. Filter keys name a column's OutputKey or
// any gjson path of the row.
func FilterDataset(rows []map[string]any, cols Columns, spec string) []map[string]any {
	//nolint:prealloc
	var filtered []map[string]any

	filters := BuildFilters(spec)
	for _, row := range rows {
		raw, err := json.Marshal(row)
		if err != nil {
			log.WithError(err).Error("failed to encode row")
			continue
		}
		candidate := gjson.ParseBytes(raw)

		if !applyFilters(candidate, cols, filters) {
			continue
		}

		result := make(map[string]any, len(cols))
		for _, col := range cols {
			if col.Key == "*" {
				continue
			}
			result[col.OutputKey] = candidate.Get(col.Key).Value()
		}
		filtered = append(filtered, result)
	}

	return filtered
}

// applyFilters reports whether candidate matches all filters.
func applyFilters(candidate gjson.Result, cols Columns, filters []Filter) bool {
	for _, filter := range filters {
		key := filter.Key
		for _, col := range cols {
			if col.OutputKey == filter.Key {
				key = col.Key
				break
			}
		}

		found := candidate.Get(key)
		if !found.Exists() {
			return false
		}
		value := found.Value()

		var ok bool
		switch v := value.(type) {
		case string:
			ok = checkStringOperand(v, filter)
		case bool, float64:
			ok = checkStringOperand(fmt.Sprintf("%v", v), filter)
		default:
			if filter.Operand != "@" {
				log.Errorf("operand %s is not supported on %s", filter.Operand, filter.Key)
				return false
			}
			ok = checkContainsOperand(value, filter)
		}

		if !ok {
			return false
		}
	}

	return true
}

// checkContainsOperand evaluates @ against list and object values.
func checkContainsOperand(value any, filter Filter) bool {
	var found bool
	switch val := value.(type) {
	case []any:
		for _, item := range val {
			if fmt.Sprintf("%v", item) == filter.Target {
				found = true
				break
			}
		}
	case map[string]any:
		_, found = val[filter.Target]
	default:
		log.Errorf("unsupported type for contains filtering: %T", value)
		return false
	}
	return found == !filter.Negate
}

// checkStringOperand evaluates a string comparison filter.
func checkStringOperand(value string, filter Filter) bool {
	switch filter.Operand {
	case "=":
		return value == filter.Target == !filter.Negate
	case "~":
		return strings.EqualFold(value, filter.Target) == !filter.Negate
	case "^":
		return strings.HasPrefix(value, filter.Target) == !filter.Negate
	case ">":
		return value > filter.Target == !filter.Negate
	case "<":
		return value < filter.Target == !filter.Negate
	case "@":
		return strings.Contains(value, filter.Target) == !filter.Negate
	case "/":
		matched, err := regexp.MatchString(filter.Target, value)
		if err != nil {
			log.Error("invalid regex: " + filter.Target)
			return false
		}
		return matched == !filter.Negate
	default:
		log.Error("unsupported filtering operand: " + filter.Operand)
		return false
	}
}
