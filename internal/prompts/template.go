package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"slices"
)

// variablePattern matches {{.Name}} and {{ .Name }}, including nested fields.
var variablePattern = regexp.MustCompile(`\{\{\s*\.([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// ExtractVariables returns the sorted, distinct field references in a template.
// "{{.Doc.Title}} in {{.TargetLanguage}}" returns ["Doc.Title", "TargetLanguage"].
func ExtractVariables(text string) []string {
	var vars []string
	for _, match := range variablePattern.FindAllStringSubmatch(text, -1) {
		vars = append(vars, match[1])
	}
	slices.Sort(vars)
	return slices.Compact(vars)
}

// HashText returns a SHA256 hash of the text for change detection.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
