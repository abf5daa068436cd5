// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"

	"github.com/staranto/smops/internal/config"
)

// Column is one key of a result row to be included in the output.
type Column struct {
	// Key is the gjson path of the value in the row.
	Key string
	// Include is false for columns used only for filtering and sorting.
	Include bool
	// OutputKey is the key in json/yaml output and the text title.
	OutputKey string
	// TransformSpec is applied to the value before output.
	//   t  convert RFC3339 times to the local timezone
	//   h  humanize times ("3 hours ago") and byte counts
	//   l  lower case, u upper case
	//   N  truncate to N runes, -N elide the middle
	TransformSpec string
}

var lengthRe = regexp.MustCompile(`-?\d+`)

// Transform applies the column's transform spec to value.
func (c *Column) Transform(value any) any {
	if c.TransformSpec == "" {
		return value
	}

	if strings.ContainsAny(c.TransformSpec, "hH") {
		switch v := value.(type) {
		case float64:
			return humanize.Bytes(uint64(v))
		case int64:
			return humanize.Bytes(uint64(v))
		case time.Time:
			return humanize.Time(v)
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return humanize.Time(t)
			}
		}
	}

	result, ok := value.(string)
	if !ok {
		if t, isTime := value.(time.Time); isTime {
			result = t.Format(time.RFC3339)
		} else {
			return value
		}
	}

	if strings.ContainsAny(c.TransformSpec, "tT") {
		result = localTime(result)
	}

	// The last case transform wins, so a per column spec overrides a global one.
	lastL := strings.LastIndexAny(c.TransformSpec, "lL")
	lastU := strings.LastIndexAny(c.TransformSpec, "uU")
	if lastL > lastU {
		result = strings.ToLower(result)
	} else if lastU > lastL {
		result = strings.ToUpper(result)
	}

	if match := lengthRe.FindAllString(c.TransformSpec, -1); len(match) != 0 {
		l, _ := strconv.Atoi(match[len(match)-1])
		abs := int(math.Abs(float64(l)))
		runes := []rune(result)
		if len(runes) > abs && abs > 0 {
			if l < 0 && abs > 4 {
				side := abs/2 - 1
				result = string(runes[:side]) + ".." + string(runes[len(runes)-side:])
			} else {
				result = string(runes[:abs])
			}
		}
	}

	return result
}

func localTime(value string) string {
	tz, _ := config.GetString("timezone", os.Getenv("TZ"))
	if tz == "" {
		return value
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Debugf("unknown timezone %s: %v", tz, err)
		return value
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return t.In(loc).Format("2006-01-02T15:04:05MST")
}

// Columns is an ordered column list. It implements the flag value
// interface used by --columns.
type Columns []Column

// NewColumns builds an included column per key, titled by the last path
// segment.
func NewColumns(keys ...string) Columns {
	var c Columns
	for _, k := range keys {
		_ = c.Set(k)
	}
	return c
}

// String returns the list in --columns syntax.
func (c *Columns) String() string {
	result := make([]string, 0, len(*c))
	for _, col := range *c {
		result = append(result, fmt.Sprintf("%s:%s:%s", col.Key, col.OutputKey, col.TransformSpec))
	}
	return strings.Join(result, ",")
}

// Set parses a comma separated list of key[:title[:transform]] specs. A
// leading ! keeps the column for filtering and sorting only. A key of *
// carries a transform applied to every column. Specs naming an existing
// column update it in place.
func (c *Columns) Set(value string) error {
	if value == "" {
		return nil
	}

	const (
		keyIdx = iota
		outputIdx
		transformIdx
	)

specloop:
	for _, spec := range strings.Split(value, ",") {
		col := Column{Include: true}
		fields := strings.Split(spec, ":")

		col.Key = strings.TrimSpace(fields[keyIdx])
		if strings.HasPrefix(col.Key, "!") {
			col.Include = false
			col.Key = col.Key[1:]
		}
		if col.Key == "" {
			return fmt.Errorf("invalid column spec %q", spec)
		}
		if col.Key == "*" {
			col.Include = false
		}

		switch {
		case len(fields) == 1 || fields[outputIdx] == "":
			segments := strings.Split(col.Key, ".")
			col.OutputKey = segments[len(segments)-1]
		default:
			col.OutputKey = strings.TrimSpace(fields[outputIdx])
		}

		if len(fields) > transformIdx {
			col.TransformSpec = strings.TrimSpace(fields[transformIdx])
		}

		for i := range *c {
			if (*c)[i].Key == col.Key || (*c)[i].OutputKey == col.Key {
				(*c)[i].Include = col.Include
				(*c)[i].OutputKey = col.OutputKey
				(*c)[i].TransformSpec = col.TransformSpec
				continue specloop
			}
		}

		*c = append(*c, col)
	}

	return nil
}

// ApplyGlobalTransform prefixes every column's transform with the spec of
// the * column, if any.
func (c Columns) ApplyGlobalTransform() {
	spec := ""
	for _, col := range c {
		if col.Key == "*" {
			spec = col.TransformSpec
			break
		}
	}
	if spec == "" {
		return
	}
	for i := range c {
		if c[i].Key != "*" {
			c[i].TransformSpec = spec + "," + c[i].TransformSpec
		}
	}
}

// Included returns the columns that are emitted.
func (c Columns) Included() Columns {
	var out Columns
	for _, col := range c {
		if col.Include {
			out = append(out, col)
		}
	}
	return out
}
