// Package docs embeds the user documentation, one markdown file per topic.
package docs

import (
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strings"
)

//go:embed *.md
var files embed.FS

// Index is the topic listing every other topic.
const Index = "readme"

// Topic returns the markdown content of a topic.
func Topic(name string) (string, error) {
	content, err := files.ReadFile(name + ".md")
	if err != nil {
		return "", fmt.Errorf("topic %q not found, see 'quotes topic' for the list: %w", name, err)
	}
	return string(content), nil
}

// Topics concatenates topics. "*" stands for every topic but the index.
func Topics(names ...string) (string, error) {
	var b strings.Builder
	for _, name := range names {
		expanded := []string{name}
		if name == "*" {
			expanded = List()
		}
		for _, n := range expanded {
			content, err := Topic(n)
			if err != nil {
				return "", err
			}
			b.WriteString(content)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// List returns the available topics, sorted, without the index.
func List() []string {
	entries, _ := fs.Glob(files, "*.md")
	var topics []string
	for _, e := range entries {
		if t := strings.TrimSuffix(e, ".md"); t != Index {
			topics = append(topics, t)
		}
	}
	slices.Sort(topics)
	return topics
}
