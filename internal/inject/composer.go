// Package inject turns serialized character data into the final text handed
// to the host's ephemeral-injection primitive.
package inject

import "strings"

// CharacterDataVar is the placeholder every injection template must carry.
const CharacterDataVar = "CHARACTER_DATA"

// Compose substitutes characterData and the caller's vars into template.
// Substitution is literal string replacement, deliberately not a templating
// engine: every occurrence of a known placeholder is replaced, and unknown
// placeholders are left untouched rather than erroring.
func Compose(template, characterData string, vars map[string]string) string {
	out := strings.ReplaceAll(template, placeholder(CharacterDataVar), characterData)
	for name, value := range vars {
		out = strings.ReplaceAll(out, placeholder(name), value)
	}
	return out
}

func placeholder(name string) string {
	return "{{" + name + "}}"
}
