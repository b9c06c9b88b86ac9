package persona

import (
	"fmt"
	"sort"
	"strings"
)

// supportedLanguages lists the languages the code generator can at least name
// in its advice. Only python and javascript have concrete templates.
var supportedLanguages = map[string]bool{
	"python":     true,
	"javascript": true,
	"rust":       true,
	"cpp":        true,
	"java":       true,
	"go":         true,
	"c":          true,
	"typescript": true,
	"kotlin":     true,
	"swift":      true,
}

// SupportedLanguages returns the sorted language names.
func SupportedLanguages() []string {
	names := make([]string, 0, len(supportedLanguages))
	for name := range supportedLanguages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GenerateCode returns a code skeleton for the task in the requested language.
// Unsupported languages get an apologetic comment naming the supported set.
func GenerateCode(language, task string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if !supportedLanguages[lang] {
		return fmt.Sprintf("# Sorry, I don't support %q yet.\n# Supported languages: %s",
			language, strings.Join(SupportedLanguages(), ", "))
	}

	lowered := strings.ToLower(task)
	switch lang {
	case "python":
		if strings.Contains(lowered, "class") {
			return pythonClassTemplate(task)
		}
		return pythonFunctionTemplate(task)
	case "javascript":
		if strings.Contains(lowered, "class") {
			return javascriptClassTemplate(task)
		}
		return javascriptFunctionTemplate(task)
	default:
		return fmt.Sprintf("// %s implementation for: %s\n// Fill in the %s-specific logic.",
			capitalize(lang), task, lang)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func pythonFunctionTemplate(task string) string {
	return fmt.Sprintf(`def solve_task():
    """%s"""
    # Implementation goes here
    result = None
    return result


if __name__ == "__main__":
    print(solve_task())`, task)
}

func pythonClassTemplate(task string) string {
	return fmt.Sprintf(`class Solution:
    """%s"""

    def __init__(self):
        self.state = {}

    def run(self):
        # Implementation goes here
        return None`, task)
}

func javascriptFunctionTemplate(task string) string {
	return fmt.Sprintf(`// %s
function solveTask() {
  // Implementation goes here
  let result = null;
  return result;
}

console.log(solveTask());`, task)
}

func javascriptClassTemplate(task string) string {
	return fmt.Sprintf(`// %s
class Solution {
  constructor() {
    this.state = {};
  }

  run() {
    // Implementation goes here
    return null;
  }
}`, task)
}
