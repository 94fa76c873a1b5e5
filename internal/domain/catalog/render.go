package catalog

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/infinyte/mcp-server/internal/domain/tool"
)

// Format selects a catalog rendering. Unknown values degrade to JSON.
type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
	FormatHTML  Format = "html"
)

// ParseFormat normalizes a query value; anything unrecognized is JSON.
func ParseFormat(value string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatYAML:
		return FormatYAML
	case FormatTable:
		return FormatTable
	case FormatHTML:
		return FormatHTML
	default:
		return FormatJSON
	}
}

// ContentType returns the exact response content type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "text/yaml"
	case FormatTable:
		return "text/plain"
	case FormatHTML:
		return "text/html"
	default:
		return "application/json"
	}
}

type renderedTool struct {
	tool.Definition `yaml:",inline"`
	Usage           *Usage `json:"usage,omitempty" yaml:"usage,omitempty"`
}

type renderedListing struct {
	Success  bool           `json:"success" yaml:"success"`
	Tools    []renderedTool `json:"tools" yaml:"tools"`
	Metadata ListMetadata   `json:"metadata" yaml:"metadata"`
}

// Render serializes a listing in the requested format. The JSON and YAML
// renderings carry the full definitions with derived usage blocks; the table
// renderings are summaries.
func Render(result *ListResult, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(buildListing(result))
	case FormatTable:
		return []byte(renderTable(result.Tools)), nil
	case FormatHTML:
		return []byte(renderHTML(result.Tools)), nil
	default:
		return json.Marshal(buildListing(result))
	}
}

func buildListing(result *ListResult) renderedListing {
	tools := make([]renderedTool, 0, len(result.Tools))
	for _, def := range result.Tools {
		tools = append(tools, renderedTool{
			Definition: *def,
			Usage:      UsageFor(def.Name),
		})
	}
	return renderedListing{Success: true, Tools: tools, Metadata: result.Metadata}
}

var tableColumns = []string{"Name", "Description", "Category", "Version"}

func renderTable(tools []*tool.Definition) string {
	rows := make([][]string, 0, len(tools))
	widths := make([]int, len(tableColumns))
	for i, col := range tableColumns {
		widths[i] = len(col)
	}
	for _, def := range tools {
		row := []string{def.Name, def.Description, string(def.Category), def.Version}
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
		rows = append(rows, row)
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i, cell := range cells {
			fmt.Fprintf(&b, " %-*s |", widths[i], cell)
		}
		b.WriteString("\n")
	}

	writeRow(tableColumns)
	b.WriteString("|")
	for _, w := range widths {
		b.WriteString(" " + strings.Repeat("-", w) + " |")
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
	return b.String()
}

func renderHTML(tools []*tool.Definition) string {
	var b strings.Builder
	b.WriteString("<table>\n<thead>\n<tr>")
	for _, col := range tableColumns {
		b.WriteString("<th>" + col + "</th>")
	}
	b.WriteString("</tr>\n</thead>\n<tbody>\n")
	for _, def := range tools {
		b.WriteString("<tr>")
		for _, cell := range []string{def.Name, def.Description, string(def.Category), def.Version} {
			b.WriteString("<td>" + html.EscapeString(cell) + "</td>")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</tbody>\n</table>\n")
	return b.String()
}
