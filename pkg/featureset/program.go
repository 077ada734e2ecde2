package featureset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
)

// Program is a pure JSON-in, JSON-out helper.
type Program func(payload any) any

// Programs maps each helper name to its implementation.
var Programs = map[string]Program{
	"score-features":       func(p any) any { return ScoreFeatures(p) },
	"validate-feature-set": func(p any) any { return ValidationReport(p) },
}

// ProgramNames returns the registered helper names in sorted order.
func ProgramNames() []string {
	names := make([]string, 0, len(Programs))
	for name := range Programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunProgram reads a JSON payload from stdin, applies p and writes the
// indented result to stdout. Empty input is treated as {}.
func RunProgram(p Program, stdin io.Reader, stdout io.Writer) error {
	raw, err := io.ReadAll(stdin)
	if err != nil {
		return errors.Wrap(err, "failed to read stdin")
	}

	var payload any = map[string]any{}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return errors.Wrap(err, "invalid JSON input")
		}
		if _, err := dec.Token(); err != io.EOF {
			return errors.New("invalid JSON input: unexpected data after the top-level value")
		}
	}

	out, err := json.MarshalIndent(p(payload), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode result")
	}
	_, err = fmt.Fprintln(stdout, string(out))
	return err
}

// RunHelper runs the named helper on stdio and returns the process exit code.
func RunHelper(name string, stdin io.Reader, stdout, stderr io.Writer) int {
	p, ok := Programs[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown helper %q\n", name)
		return 2
	}
	if err := RunProgram(p, stdin, stdout); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return 0
}
