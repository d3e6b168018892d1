package analyzer

import (
	"strings"

	"github.com/Sumatoshi-tech/guidelint/pkg/filereader"
)

const promptInstructions = `Check the following files for compliance with the guidelines above.
For each file, evaluate:
1. Pattern compliance - Does the code follow specific patterns mentioned?
2. Principle adherence - Does the code embody the philosophy described?
3. Anti-pattern detection - Does the code contain things warned against?
`

const promptFormat = `Return results in this JSON format:
{
  "results": [
    {
      "file": "path/to/file",
      "violations": [
        {
          "type": "missing-pattern|principle-violation|anti-pattern",
          "message": "Description of the issue",
          "line": null or line number
        }
      ]
    }
  ]
}

If a file has no violations, include it with an empty violations array.
`

// BuildPrompt renders the user message for a batch: the guidelines, the
// evaluation instructions, every file wrapped in a path-tagged element and
// the expected answer shape.
func BuildPrompt(guidelines string, files []filereader.Document) string {
	var b strings.Builder

	b.WriteString("<guidelines>\n")
	b.WriteString(guidelines)
	b.WriteString("\n</guidelines>\n\n")
	b.WriteString(promptInstructions)
	b.WriteString("\n<files>\n")

	for _, f := range files {
		b.WriteString(`  <file path="`)
		b.WriteString(escapeAttr(f.Path))
		b.WriteString("\">\n")
		b.WriteString(f.Content)
		b.WriteString("\n  </file>\n")
	}

	b.WriteString("</files>\n\n")
	b.WriteString(promptFormat)

	return b.String()
}

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;")

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}
