// Package utils holds small parsing helpers shared by the HTTP handlers and
// the operator CLI.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s, returning def when s is empty or not an integer.
// Surrounding whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageParams turns raw page and page_size query values into a 1-based page
// and a size in [1, maxSize]. Missing, malformed or non-positive values fall
// back to page 1 and defSize.
func PageParams(pageStr, sizeStr string, defSize, maxSize int) (page, size int) {
	page = AtoiDefault(strings.TrimSpace(pageStr), 1)
	if page < 1 {
		page = 1
	}
	size = AtoiDefault(strings.TrimSpace(sizeStr), defSize)
	if size < 1 {
		size = defSize
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	return page, size
}

// Offset is the row offset of page at size.
func Offset(page, size int) int {
	if page < 1 || size < 1 {
		return 0
	}
	return (page - 1) * size
}
