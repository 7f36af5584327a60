package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"promptcanvas/internal/server"
	"promptcanvas/internal/tools"
)

var toolsFormat string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalog the model sees",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func runTools(cmd *cobra.Command, args []string) error {
	reg := tools.NewCanvasRegistry(tools.NewValidator(nil, nil))
	return printCatalog(cmd.OutOrStdout(), reg, toolsFormat)
}

func printCatalog(w io.Writer, reg *tools.Registry, format string) error {
	catalog := server.Catalog(reg)

	switch format {
	case "json":
		data, err := json.MarshalIndent(catalog, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case "yaml":
		data, err := yaml.Marshal(catalog)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err

	case "markdown", "md":
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return fmt.Errorf("failed to create markdown renderer: %w", err)
		}
		out, err := renderer.Render(catalogMarkdown(catalog))
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, out)
		return err
	}
	return fmt.Errorf("unknown format %q (want yaml, json or markdown)", format)
}

func catalogMarkdown(catalog []server.ToolInfo) string {
	var sb strings.Builder
	sb.WriteString("# Canvas tools\n\n")
	for _, t := range catalog {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", t.Name, t.Description)
		if len(t.Parameters.Properties) == 0 {
			sb.WriteString("_No parameters._\n\n")
			continue
		}

		required := make(map[string]bool, len(t.Parameters.Required))
		for _, r := range t.Parameters.Required {
			required[r] = true
		}
		names := t.Parameters.Order
		if len(names) == 0 {
			for name := range t.Parameters.Properties {
				names = append(names, name)
			}
			sort.Strings(names)
		}

		sb.WriteString("| Parameter | Type | Range | Default | Description |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, name := range names {
			p := t.Parameters.Properties[name]
			label := name
			if required[name] {
				label += " *"
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				label, p.Type, rangeOf(p), defaultOf(p), p.Description)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func rangeOf(p tools.Property) string {
	if p.Minimum == nil || p.Maximum == nil {
		return ""
	}
	return fmt.Sprintf("%g-%g", *p.Minimum, *p.Maximum)
}

func defaultOf(p tools.Property) string {
	if p.Default == nil {
		return ""
	}
	return fmt.Sprint(p.Default)
}
