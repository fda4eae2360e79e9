package classify

import (
	"path"
	"regexp"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// interestingExt lists extensions that may hold student work.
var interestingExt = map[string]bool{
	".md": true, ".txt": true, ".csv": true,
	".py": true, ".ipynb": true,
	".java": true, ".kt": true, ".scala": true,
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cc": true,
	".cs": true, ".go": true, ".rs": true, ".hs": true,
	".js": true, ".ts": true, ".html": true, ".css": true,
	".sql": true, ".sh": true,
	".xml": true, ".toml": true, ".yml": true, ".yaml": true, ".json": true,
}

// codeLanguages are enry language names accepted for files whose extension
// is not listed in interestingExt.
var codeLanguages = map[string]bool{
	"Python": true, "Java": true, "Kotlin": true, "C": true, "C++": true, "C#": true,
	"Go": true, "Rust": true, "Haskell": true, "JavaScript": true, "TypeScript": true,
	"Shell": true, "SQL": true, "Markdown": true,
}

// ignoredNames are dependency manifests and build files that never count
// as submitted work. Compared lower-cased.
var ignoredNames = map[string]bool{
	"requirements.txt":  true,
	"readme.md":         true,
	"pyproject.toml":    true,
	"build.gradle":      true,
	"settings.gradle":   true,
	"pom.xml":           true,
	"package.json":      true,
	"package-lock.json": true,
	"cargo.toml":        true,
	"poetry.lock":       true,
}

// interesting reports whether a file may contain student work, judged by its
// extension or, failing that, by the language enry detects from its content.
func interesting(rel string, content []byte) bool {
	if interestingExt[strings.ToLower(path.Ext(rel))] {
		return true
	}
	if content == nil {
		return false
	}
	for _, lang := range enry.GetLanguages(path.Base(rel), content) {
		if codeLanguages[lang] {
			return true
		}
	}
	return false
}

// ignored applies the built-in ignore rules and the operator pattern to a
// slash-separated relative path.
func ignored(rel string, pattern *regexp.Regexp) bool {
	if ignoredNames[strings.ToLower(path.Base(rel))] {
		return true
	}
	if strings.HasPrefix(rel, "_") || strings.Contains(rel, "__") {
		return true
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	if enry.IsVendor(rel) {
		return true
	}
	return pattern != nil && pattern.MatchString(rel)
}
