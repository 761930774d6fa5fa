// Package report formats benchmark results and writes them to their
// destination.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/weiihann/compilebench/harness"
)

// Header is the first line of a text report.
const Header = "name, times"

// Output formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Generate writes the header followed by one line per result: the project
// name and each round in whole seconds, separated by ", ". An empty result
// list yields just the header.
func Generate(w io.Writer, results []harness.Result) error {
	var buf bytes.Buffer

	buf.WriteString(Header)
	buf.WriteByte('\n')

	for _, r := range results {
		fields := make([]string, 0, len(r.Rounds)+1)
		fields = append(fields, r.Project.Name())

		for _, s := range r.Seconds() {
			fields = append(fields, strconv.FormatInt(s, 10))
		}

		buf.WriteString(strings.Join(fields, ", "))
		buf.WriteByte('\n')
	}

	_, err := w.Write(buf.Bytes())

	return err
}

type jsonResult struct {
	Project string  `json:"project"`
	Name    string  `json:"name"`
	Times   []int64 `json:"times"`
}

// GenerateJSON writes results as a JSON array with times in whole seconds.
func GenerateJSON(w io.Writer, results []harness.Result) error {
	out := make([]jsonResult, len(results))
	for i, r := range results {
		out[i] = jsonResult{
			Project: r.Project.Show(),
			Name:    r.Project.Name(),
			Times:   r.Seconds(),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

// Render returns the report in the given format.
func Render(format string, results []harness.Result) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case "", FormatCSV:
		if err := Generate(&buf, results); err != nil {
			return nil, err
		}
	case FormatJSON:
		if err := GenerateJSON(&buf, results); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}

	return buf.Bytes(), nil
}

// WriteFile renders results and replaces path with them in one step: the
// data goes to a temporary file in the same directory which is then renamed
// over path, so readers never observe a partial report.
func WriteFile(path, format string, results []harness.Result) error {
	data, err := Render(format, results)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".compilebench-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return fmt.Errorf("write report: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod report: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename report to %s: %w", path, err)
	}

	return nil
}
