package resolver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/khirotaka/bmi-mcp/internal/mcp"
)

const systemPrompt = "You are an intelligent assistant. You will execute tasks as prompted."

// BuildPrompt renders the catalog and the query into the instruction sent to
// the model. It is a pure function of its inputs; tools appear in the order
// given.
func BuildPrompt(query string, tools []mcp.ToolInfo) string {
	var b strings.Builder

	b.WriteString("You are a helpful assistant with access to these tools:\n\n")
	for _, tool := range tools {
		fmt.Fprintf(&b, "- %s: %s Input schema: %s\n", tool.Name, tool.Description, compactSchema(tool.InputSchema))
	}
	b.WriteString("\nChoose the appropriate tool based on the user's question.\n")
	fmt.Fprintf(&b, "User's question: %s\n", query)
	b.WriteString("If no tool is needed, reply directly in plain text.\n\n")
	b.WriteString("IMPORTANT: When you need to use a tool, you must ONLY respond with ")
	b.WriteString("the exact JSON object format below, nothing else:\n")
	b.WriteString("{\n")
	b.WriteString(`    "tool": "tool-name",` + "\n")
	b.WriteString(`    "arguments": {` + "\n")
	b.WriteString(`        "argument-name": value` + "\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")
	b.WriteString("Use JSON numbers for numeric arguments and convert quantities to the units the tool expects.\n")

	return b.String()
}

// compactSchema renders a schema as single-line JSON. encoding/json sorts map
// keys, so the output is stable for a given schema.
func compactSchema(schema any) string {
	if schema == nil {
		return "{}"
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
