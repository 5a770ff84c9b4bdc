package jira

import (
	"strconv"
	"strings"

	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
)

// TextToADF converts plain text to an Atlassian Document Format document.
// Blank lines separate paragraphs; single newlines become hard breaks.
func TextToADF(text string) *models.CommentNodeScheme {
	doc := &models.CommentNodeScheme{Version: 1, Type: "doc"}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.Trim(block, "\n")
		if strings.TrimSpace(block) == "" {
			continue
		}
		para := &models.CommentNodeScheme{Type: "paragraph"}
		for i, line := range strings.Split(block, "\n") {
			if i > 0 {
				para.Content = append(para.Content, &models.CommentNodeScheme{Type: "hardBreak"})
			}
			if line != "" {
				para.Content = append(para.Content, &models.CommentNodeScheme{Type: "text", Text: line})
			}
		}
		doc.Content = append(doc.Content, para)
	}

	return doc
}

// ADFToText renders an ADF node tree as terminal text. Returns "" for nil.
// Media and other nodes without a text form render as a bracketed type name.
func ADFToText(node *models.CommentNodeScheme) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	writeNode(&b, node, 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeNode(b *strings.Builder, node *models.CommentNodeScheme, depth int) {
	if node == nil {
		return
	}

	switch node.Type {
	case "doc":
		writeChildren(b, node, depth)

	case "paragraph", "heading":
		writeChildren(b, node, depth)
		b.WriteString("\n\n")

	case "text":
		b.WriteString(withLink(node.Text, node.Marks))

	case "hardBreak":
		b.WriteString("\n")

	case "bulletList", "orderedList":
		for i, item := range node.Content {
			b.WriteString(strings.Repeat("  ", depth))
			if node.Type == "orderedList" {
				b.WriteString(strconv.Itoa(i+1) + ". ")
			} else {
				b.WriteString("- ")
			}
			writeListItem(b, item, depth+1)
		}
		if depth == 0 {
			b.WriteString("\n")
		}

	case "codeBlock":
		writeChildren(b, node, depth)
		b.WriteString("\n\n")

	case "blockquote":
		var inner strings.Builder
		writeChildren(&inner, node, depth)
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			b.WriteString("> " + line + "\n")
		}
		b.WriteString("\n")

	case "rule":
		b.WriteString("----\n\n")

	case "mention", "emoji", "inlineCard":
		for _, key := range []string{"text", "shortName", "url"} {
			if s, ok := node.Attrs[key].(string); ok && s != "" {
				b.WriteString(s)
				break
			}
		}

	default:
		b.WriteString("[" + node.Type + "]")
		if len(node.Content) == 0 {
			b.WriteString("\n\n")
			return
		}
		writeChildren(b, node, depth)
	}
}

func writeChildren(b *strings.Builder, node *models.CommentNodeScheme, depth int) {
	for _, child := range node.Content {
		writeNode(b, child, depth)
	}
}

// writeListItem keeps the item's first paragraph on the bullet line.
func writeListItem(b *strings.Builder, item *models.CommentNodeScheme, depth int) {
	if item == nil || len(item.Content) == 0 {
		b.WriteString("\n")
		return
	}
	for i, child := range item.Content {
		if child.Type == "paragraph" {
			if i > 0 {
				b.WriteString(strings.Repeat("  ", depth))
			}
			writeChildren(b, child, depth)
			b.WriteString("\n")
			continue
		}
		writeNode(b, child, depth)
	}
}

func withLink(text string, marks []*models.MarkScheme) string {
	for _, mark := range marks {
		if mark == nil || mark.Type != "link" {
			continue
		}
		if href, ok := mark.Attrs["href"].(string); ok && href != "" && href != text {
			return text + " <" + href + ">"
		}
	}
	return text
}
