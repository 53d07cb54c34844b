package jira

import (
	"encoding/json"
	"strings"
)

// adfNode is a node in Jira's Atlassian Document Format tree.
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

// adfToPlainText flattens an ADF document to plain text. Jira's v3 API
// returns descriptions and comment bodies as ADF JSON, not strings.
func adfToPlainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Type != "doc" {
		// Not ADF; older sites return a plain string.
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	}

	var lines []string
	for _, block := range doc.Content {
		var parts []string
		collectText(block, &parts)
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, ""))
		}
	}
	return strings.Join(lines, "\n")
}

func collectText(n adfNode, parts *[]string) {
	if n.Type == "text" && n.Text != "" {
		*parts = append(*parts, n.Text)
	}
	for _, child := range n.Content {
		collectText(child, parts)
	}
}

// plainTextToADF wraps plain text in a minimal ADF document, one
// paragraph per line.
func plainTextToADF(text string) []byte {
	var content []any
	for _, para := range strings.Split(text, "\n") {
		inner := []any{}
		if para != "" {
			inner = append(inner, map[string]any{"type": "text", "text": para})
		}
		content = append(content, map[string]any{"type": "paragraph", "content": inner})
	}

	doc := map[string]any{
		"type":    "doc",
		"version": 1,
		"content": content,
	}
	data, _ := json.Marshal(doc)
	return data
}
