// Package validate certifies finalized telemetry documents independently of
// the writer that produced them, so a separate run can audit old logs.
//
// DESIGN: Two layers. The structural contract is an embedded JSON Schema
// compiled once with santhosh-tekuri/jsonschema. Cross-field business rules
// (count equality, id uniqueness, chronological order, summary arithmetic)
// walk the raw bytes with gjson. All failure modes reduce to
// (false, error list) — ValidateFile never panics and never returns an
// error value.
package validate

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tidwall/gjson"
)

//go:embed telemetry_schema.json
var schemaJSON []byte

var compileOnce = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse embedded schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("telemetry_schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return compiler.Compile("telemetry_schema.json")
})

// ValidateFile checks the document at path against the structural schema
// and the business rules. Returns (true, nil) only when every check passes;
// otherwise (false, ordered error list).
func ValidateFile(path string) (bool, []string) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, []string{fmt.Sprintf("file does not exist: %s", path)}
	}
	if err != nil {
		return false, []string{fmt.Sprintf("cannot read file: %v", err)}
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return false, []string{fmt.Sprintf("invalid JSON: %v", err)}
	}

	var errs []string

	schema, err := compileOnce()
	if err != nil {
		return false, []string{fmt.Sprintf("schema compilation failed: %v", err)}
	}
	if err := schema.Validate(instance); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			for _, leaf := range leafCauses(ve) {
				errs = append(errs, fmt.Sprintf("schema violation: %v", leaf))
			}
		} else {
			errs = append(errs, fmt.Sprintf("schema violation: %v", err))
		}
	}

	errs = append(errs, businessRules(data)...)
	return len(errs) == 0, errs
}

// leafCauses flattens a validation error tree into its most specific causes.
func leafCauses(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var leaves []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		leaves = append(leaves, leafCauses(c)...)
	}
	return leaves
}

// businessRules checks the cross-field invariants the structural schema
// cannot express. Each rule is guarded on field presence so a structurally
// broken document does not also drown in spurious rule errors.
func businessRules(data []byte) []string {
	var errs []string

	events := gjson.GetBytes(data, "events")
	eventCount := int(events.Get("#").Int())

	if declared := gjson.GetBytes(data, "metadata.total_events"); declared.Exists() && events.Exists() {
		if int(declared.Int()) != eventCount {
			errs = append(errs, fmt.Sprintf(
				"inconsistency: metadata.total_events (%d) != actual event count (%d)",
				declared.Int(), eventCount))
		}
	}

	seen := make(map[string]struct{}, eventCount)
	duplicates := false
	prevTS := ""
	ordered := true
	events.ForEach(func(_, event gjson.Result) bool {
		id := event.Get("event_id").String()
		if _, dup := seen[id]; dup {
			duplicates = true
		}
		seen[id] = struct{}{}

		ts := event.Get("timestamp").String()
		if ts < prevTS {
			ordered = false
		}
		prevTS = ts
		return true
	})
	if duplicates {
		errs = append(errs, "duplicate event_id values detected")
	}
	if !ordered {
		errs = append(errs, "events are not in chronological order")
	}

	metrics := gjson.GetBytes(data, "metrics")
	if metrics.Exists() {
		total := metrics.Get("total_events").Int()
		successful := metrics.Get("successful_events").Int()
		failed := metrics.Get("failed_events").Int()
		if successful+failed != total {
			errs = append(errs, fmt.Sprintf(
				"inconsistency: successful_events (%d) + failed_events (%d) != total_events (%d)",
				successful, failed, total))
		}
	}

	return errs
}
