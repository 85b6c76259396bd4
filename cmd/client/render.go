package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/goccy/go-yaml"

	"collage-api/internal/assets"
	"collage-api/internal/client"
	"collage-api/internal/manifest"
)

// render writes v as JSON, YAML or, for "text", through the given printer.
func render[T any](w io.Writer, format string, v T, text func(io.Writer, T)) error {
	switch strings.ToLower(format) {
	case "", "text":
		text(w, v)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// renderRaw re-encodes a served manifest. Text output is indented JSON.
func renderRaw(w io.Writer, format string, raw json.RawMessage) error {
	switch strings.ToLower(format) {
	case "", "text", "json":
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(w)
		return err
	case "yaml":
		b, err := yaml.JSONToYAML(raw)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func status(valid bool) string {
	if valid {
		return color.GreenString("VALID")
	}
	return color.RedString("INVALID")
}

func renderSummaries(w io.Writer, summaries []manifest.Summary) {
	for _, s := range summaries {
		if !s.Available {
			fmt.Fprintf(w, "%-10s %s\n", s.Type, color.YellowString("missing"))
			continue
		}
		fmt.Fprintf(w, "%-10s %s  %d categories, %d resources\n", s.Type, status(s.Valid), s.Categories, s.Resources)
	}
}

func renderReport(w io.Writer, r *manifest.Report) {
	fmt.Fprintf(w, "%-10s %s  %d categories, %d resources\n", r.Type, status(r.Valid), r.Categories, r.Resources)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("warning:"), warning)
	}
}

func renderAggregate(w io.Writer, agg *client.AggregateReport) {
	for i := range agg.Reports {
		renderReport(w, &agg.Reports[i])
	}
}

func renderUpload(w io.Writer, up *assets.Upload) {
	fmt.Fprintf(w, "Uploaded %s (%d bytes)\n", color.CyanString(up.Path), up.Size)
	fmt.Fprintf(w, "  sha256 %s\n", up.Checksum)
}
