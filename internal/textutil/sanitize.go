package textutil

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

const untitled = "Untitled Document"

// SanitizeFileName makes name safe to use as a single path segment.
// Separators and wildcards become dashes, other unsafe characters are dropped.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(name)))
	name = strings.Trim(name, ".")
	if name == "" {
		return ""
	}
	return name
}

// DeriveTitle builds a readable title from the last path segment of a URL or
// file path: the extension is dropped, separators become spaces and words
// are title-cased.
func DeriveTitle(source string) string {
	base := source
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		base = u.Path
	}
	base = path.Base(strings.ReplaceAll(base, "\\", "/"))
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	base = strings.TrimSuffix(base, path.Ext(base))

	var cleaned strings.Builder
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.' || r == '+':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" || title == "/" {
		return untitled
	}
	return cases.Title(language.Und).String(title)
}

// DocumentDirName returns the directory name for a document's pages,
// preferring title and falling back to one derived from source.
func DocumentDirName(title, source string) string {
	if name := SanitizeFileName(title); name != "" {
		return name
	}
	if name := SanitizeFileName(DeriveTitle(source)); name != "" {
		return name
	}
	return untitled
}

// PageFileName names the image of the page at index, zero-padded so pages
// sort in order.
func PageFileName(index, pageCount int) string {
	width := max(len(fmt.Sprint(pageCount)), 3)
	return fmt.Sprintf("page-%0*d.png", width, index+1)
}
