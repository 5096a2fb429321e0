package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/jparent/internal/config"
)

// outputJSON writes v as pretty-printed JSON.
func outputJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// outputYAML writes v as YAML using the same field names and order as the
// JSON form.
func outputYAML(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	blockStyle(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle clears the flow and quoting styles a JSON document decodes
// with, so the encoder emits plain block YAML.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// writeStructured writes v in a machine-readable format.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case config.FormatJSON:
		return outputJSON(w, v)
	case config.FormatYAML:
		return outputYAML(w, v)
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// outputJSONError outputs an error as JSON to stderr and exits with code 1.
// The code parameter is optional (pass "" to omit).
func outputJSONError(err error, code string) {
	errObj := map[string]string{"error": err.Error()}
	if code != "" {
		errObj["code"] = code
	}
	_ = outputJSON(os.Stderr, errObj) // Best effort: nothing else to report to
	exit(1)
}
