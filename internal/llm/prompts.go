package llm

import (
	"embed"
	"strings"
)

//go:embed prompts/*.txt
var promptFS embed.FS

const fallbackPromptKind = "other"

// PromptTemplate returns the scoring prompt for a document kind and whether the kind was recognized.
// Unknown kinds get the generic template.
func PromptTemplate(kind string) (string, bool) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != "" && !strings.ContainsAny(kind, "/.\\") {
		if data, err := promptFS.ReadFile("prompts/" + kind + ".txt"); err == nil {
			return string(data), true
		}
	}
	data, err := promptFS.ReadFile("prompts/" + fallbackPromptKind + ".txt")
	if err != nil {
		return "", false
	}
	return string(data), false
}

// RenderPrompt fills {{KEY}} placeholders in a template.
func RenderPrompt(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
