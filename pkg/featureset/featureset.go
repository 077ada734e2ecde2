// Package featureset holds the prioritized MVP feature set an agent emits at
// the end of the planning workflow, and the two deterministic helper programs
// (score-features, validate-feature-set) the agent may run while building it.
package featureset

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Priority ranks a selected feature.
type Priority string

// Feature priorities.
const (
	P0 Priority = "P0"
	P1 Priority = "P1"
	P2 Priority = "P2"
)

// Valid reports whether p is one of P0, P1 or P2.
func (p Priority) Valid() bool {
	return p == P0 || p == P1 || p == P2
}

// SelectedFeature is a feature chosen for the MVP.
type SelectedFeature struct {
	FeatureID    string   `json:"featureId" jsonschema:"description=Identifier of the feature,minLength=1"`
	Title        string   `json:"title" jsonschema:"description=Short feature title,minLength=2"`
	Priority     Priority `json:"priority" jsonschema:"enum=P0,enum=P1,enum=P2"`
	Rationale    string   `json:"rationale" jsonschema:"description=Why the feature is in scope,minLength=10"`
	Dependencies []string `json:"dependencies" jsonschema:"description=Feature IDs this feature depends on"`
}

// DeferredFeature is a feature left out of the MVP.
type DeferredFeature struct {
	FeatureID string `json:"featureId" jsonschema:"minLength=1"`
	Reason    string `json:"reason" jsonschema:"description=Why the feature was deferred,minLength=5"`
}

// FeatureSet is the final structured output of the workflow.
type FeatureSet struct {
	Selected []SelectedFeature `json:"selected" jsonschema:"minItems=1"`
	Deferred []DeferredFeature `json:"deferred"`
}

// ErrInvalidFeatureSet wraps every emit-time validation failure.
var ErrInvalidFeatureSet = errors.New("invalid feature set")

// Parse decodes and validates an emitted feature set. Missing dependency and
// deferred lists default to empty. Fields of the wrong JSON type are reported
// together with every other violation.
func Parse(data []byte) (*FeatureSet, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(ErrInvalidFeatureSet, "malformed feature set: %v", err)
	}

	d := &decoder{mistyped: map[string]bool{}}
	fs := d.featureSet(raw)
	fs.normalize()

	if err := fs.validate(d.result, d.mistyped); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FeatureSet) normalize() {
	if fs.Deferred == nil {
		fs.Deferred = []DeferredFeature{}
	}
	for i := range fs.Selected {
		if fs.Selected[i].Dependencies == nil {
			fs.Selected[i].Dependencies = []string{}
		}
	}
}

// Validate checks the emit-time schema and reports every violation at once.
func (fs *FeatureSet) Validate() error {
	return fs.validate(nil, nil)
}

// validate appends schema violations to result. Fields in mistyped already
// carry a type violation and are not checked again.
func (fs *FeatureSet) validate(result *multierror.Error, mistyped map[string]bool) error {
	check := func(field, value string, n int) {
		if !mistyped[field] {
			result = minLength(result, field, value, n)
		}
	}

	if len(fs.Selected) == 0 && !mistyped["selected"] {
		result = multierror.Append(result, errors.New("selected must contain at least 1 feature"))
	}
	for i, f := range fs.Selected {
		item := fmt.Sprintf("selected[%d]", i)
		if mistyped[item] {
			continue
		}
		check(item+".featureId", f.FeatureID, 1)
		check(item+".title", f.Title, 2)
		if !f.Priority.Valid() && !mistyped[item+".priority"] {
			result = multierror.Append(result, errors.Errorf("%s.priority must be P0, P1, or P2", item))
		}
		check(item+".rationale", f.Rationale, 10)
		for j, dep := range f.Dependencies {
			check(fmt.Sprintf("%s.dependencies[%d]", item, j), dep, 1)
		}
	}
	for i, f := range fs.Deferred {
		item := fmt.Sprintf("deferred[%d]", i)
		if mistyped[item] {
			continue
		}
		check(item+".featureId", f.FeatureID, 1)
		check(item+".reason", f.Reason, 5)
	}

	if result == nil {
		return nil
	}
	result.ErrorFormat = formatViolations
	return &ValidationError{errs: result}
}

// decoder builds a FeatureSet from generic JSON, recording a violation for
// every value of the wrong type instead of stopping at the first one.
type decoder struct {
	result   *multierror.Error
	mistyped map[string]bool
}

func (d *decoder) fail(field, want string) {
	d.mistyped[field] = true
	d.result = multierror.Append(d.result, errors.Errorf("%s must be %s", field, want))
}

func (d *decoder) object(v any, field string) (map[string]any, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		d.fail(field, "an object")
	}
	return obj, ok
}

// list returns nil without a violation when the key is absent or null.
func (d *decoder) list(obj map[string]any, key, field string) []any {
	v, present := obj[key]
	if !present || v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		d.fail(field, "an array")
	}
	return items
}

// str returns "" without a violation when the key is absent or null, leaving
// the length checks to report it.
func (d *decoder) str(obj map[string]any, key, field string) string {
	v, present := obj[key]
	if !present || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(field, "a string")
	}
	return s
}

func (d *decoder) featureSet(raw any) *FeatureSet {
	fs := &FeatureSet{}
	obj, ok := raw.(map[string]any)
	if !ok {
		d.fail("feature set", "an object")
		d.mistyped["selected"] = true
		return fs
	}

	for i, v := range d.list(obj, "selected", "selected") {
		item := fmt.Sprintf("selected[%d]", i)
		f := SelectedFeature{}
		if fields, ok := d.object(v, item); ok {
			f.FeatureID = d.str(fields, "featureId", item+".featureId")
			f.Title = d.str(fields, "title", item+".title")
			f.Priority = Priority(d.str(fields, "priority", item+".priority"))
			f.Rationale = d.str(fields, "rationale", item+".rationale")
			for j, dep := range d.list(fields, "dependencies", item+".dependencies") {
				field := fmt.Sprintf("%s.dependencies[%d]", item, j)
				s, ok := dep.(string)
				if !ok {
					d.fail(field, "a string")
				}
				f.Dependencies = append(f.Dependencies, s)
			}
		}
		fs.Selected = append(fs.Selected, f)
	}

	for i, v := range d.list(obj, "deferred", "deferred") {
		item := fmt.Sprintf("deferred[%d]", i)
		f := DeferredFeature{}
		if fields, ok := d.object(v, item); ok {
			f.FeatureID = d.str(fields, "featureId", item+".featureId")
			f.Reason = d.str(fields, "reason", item+".reason")
		}
		fs.Deferred = append(fs.Deferred, f)
	}
	return fs
}

// ValidationError lists every emit-time violation of a feature set.
type ValidationError struct {
	errs *multierror.Error
}

func (e *ValidationError) Error() string {
	return ErrInvalidFeatureSet.Error() + ": " + e.errs.Error()
}

// Is matches ErrInvalidFeatureSet.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidFeatureSet
}

func (e *ValidationError) Unwrap() error {
	return e.errs
}

// Violations returns the individual messages.
func (e *ValidationError) Violations() []string {
	out := make([]string, 0, len(e.errs.Errors))
	for _, err := range e.errs.Errors {
		out = append(out, err.Error())
	}
	return out
}

func minLength(result *multierror.Error, field, value string, n int) *multierror.Error {
	if utf8.RuneCountInString(value) < n {
		return multierror.Append(result, errors.Errorf("%s must be at least %d characters", field, n))
	}
	return result
}

func formatViolations(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
