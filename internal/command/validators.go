// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

type FlagValidatorType func(any) error

func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// JammedFlagValidator verifies that the arg following a flag does not begin
// with '--'.  urfave/cli allows this and I don't see how to turn it off.
func JammedFlagValidator(value any) error {
	if strings.HasPrefix(value.(string), "--") {
		return errors.New("must not begin with '--'")
	}
	return nil
}

func OutputValidator(value any) error {
	var validOutputFlagValues = []string{"text", "json", "raw", "yaml"}
	if !slices.Contains(validOutputFlagValues, value.(string)) {
		return fmt.Errorf("must be one of %v", validOutputFlagValues)
	}
	return nil
}

// YesNoValidator accepts the YES/NO switches the deployment templates use.
// Only the upper case spellings are valid.
func YesNoValidator(value any) error {
	switch value.(string) {
	case "YES", "NO":
		return nil
	}
	return errors.New("must be YES or NO")
}

var accountIDPattern = regexp.MustCompile(`^\d{12}$`)

// AccountListValidator accepts an empty value or a comma separated list of
// 12 digit account ids.
func AccountListValidator(value any) error {
	s := value.(string)
	if s == "" {
		return nil
	}
	for _, a := range strings.Split(s, ",") {
		if !accountIDPattern.MatchString(strings.TrimSpace(a)) {
			return fmt.Errorf("%q is not an AWS account id", a)
		}
	}
	return nil
}

// isYes reports whether a YES/NO switch is on.
func isYes(value string) bool {
	return value == "YES"
}
