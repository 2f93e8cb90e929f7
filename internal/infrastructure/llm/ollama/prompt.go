package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/doc-lifecycle/internal/infrastructure/chunking"
)

// maxPromptSnippet is measured in runes.
const maxPromptSnippet = 6000

func buildFieldExtractionPrompt(filename, declaredType, text string) string {
	snippet := chunking.Excerpt(text, maxPromptSnippet)
	declared := strings.TrimSpace(declaredType)
	if declared == "" {
		declared = "unknown"
	}

	return fmt.Sprintf(`You extract document metadata.
Return strict JSON object with keys:
title (string), subject (string), sender (string), receiver (string), category (string),
tags (array of strings), keywords (array of strings), summary (string), documentDate (string, YYYY-MM-DD or empty).
Use empty strings for unknown values. No markdown, no extra keys.

Declared document type: %s
File name: %s

Document:
%s`, declared, filename, snippet)
}
