package homepage

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// templateVar matches Homepage substitutions such as {{HOMEPAGE_VAR_NAS_URL}}.
var templateVar = regexp.MustCompile(`\{\{\s*([^}\s]+)\s*\}\}`)

// BookmarkLoader reads a Homepage bookmarks.yaml.
type BookmarkLoader struct {
	filePath string
	lookup   func(string) (string, bool)
}

// NewBookmarkLoader creates a loader resolving substitutions from the process environment.
func NewBookmarkLoader(filePath string) *BookmarkLoader {
	return &BookmarkLoader{
		filePath: filePath,
		lookup:   os.LookupEnv,
	}
}

// Path returns the file the loader reads.
func (l *BookmarkLoader) Path() string { return l.filePath }

// Load reads and parses the bookmarks file.
func (l *BookmarkLoader) Load() (BookmarksConfig, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read bookmarks file: %w", err)
	}

	data = expandTemplateVariables(data, l.lookup)

	var config BookmarksConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse bookmarks yaml: %w", err)
	}

	return config, nil
}

// expandTemplateVariables replaces HOMEPAGE_VAR_* with the variable's value and
// HOMEPAGE_FILE_* with the content of the file the variable names. Anything
// unresolved becomes an empty string, which the mapper then skips.
func expandTemplateVariables(data []byte, lookup func(string) (string, bool)) []byte {
	return templateVar.ReplaceAllFunc(data, func(m []byte) []byte {
		name := string(templateVar.FindSubmatch(m)[1])
		value, ok := lookup(name)
		if ok && strings.HasPrefix(name, "HOMEPAGE_FILE_") {
			content, err := os.ReadFile(value)
			value, ok = strings.TrimSpace(string(content)), err == nil
		}
		if !ok || !strings.HasPrefix(name, "HOMEPAGE_") {
			value = ""
		}
		return []byte(strconv.Quote(value))
	})
}
