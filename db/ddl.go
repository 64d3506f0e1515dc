package db

import (
	"strings"
	"unicode"
)

// tableMarker opens every per-table section of a dbexport schema file:
//
//	{ TABLE "informix".customers row size = 429 number of columns = 6 index size = 0 }
const tableMarker = "TABLE"

// columnTypes are the type keywords that identify a column definition line.
// Matching is by prefix, so serial8, char(10) and decimal(10,2) all count.
var columnTypes = []string{
	"serial",
	"integer",
	"varchar",
	"char",
	"date",
	"datetime",
	"decimal",
	"blob",
	"set",
}

// splitBlocks cuts the DDL text at each "{ TABLE" marker. The preamble before
// the first marker is dropped.
func splitBlocks(ddl string) []string {
	var starts []int
	for i := 0; i < len(ddl); i++ {
		if ddl[i] != '{' {
			continue
		}
		j := skipSpace(ddl, i+1)
		if strings.HasPrefix(ddl[j:], tableMarker) && j+len(tableMarker) < len(ddl) && isSpace(ddl[j+len(tableMarker)]) {
			starts = append(starts, i)
		}
	}

	blocks := make([]string, 0, len(starts))
	for n, start := range starts {
		end := len(ddl)
		if n+1 < len(starts) {
			end = starts[n+1]
		}
		blocks = append(blocks, ddl[start:end])
	}
	return blocks
}

// unloadFileName extracts X from a "{ unload file name = X ... }" directive.
func unloadFileName(block string) (string, bool) {
	for i := 0; i < len(block); i++ {
		if block[i] != '{' {
			continue
		}
		rest := block[skipSpace(block, i+1):]
		rest, ok := consumeWords(rest, "unload", "file", "name")
		if !ok {
			continue
		}
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if !strings.HasPrefix(rest, "=") {
			continue
		}
		rest = strings.TrimLeftFunc(rest[1:], unicode.IsSpace)
		name := readToken(rest, "}")
		if name == "" {
			continue
		}
		return name, true
	}
	return "", false
}

// createTable locates `create table <owner>.<name> ( ... ) extent` and returns
// the bare table name and the text between the parentheses.
func createTable(block string) (name, columns string, ok bool) {
	from := 0
	for {
		idx := strings.Index(block[from:], "create")
		if idx < 0 {
			return "", "", false
		}
		pos := from + idx + len("create")
		from = pos
		if pos >= len(block) || !isSpace(block[pos]) {
			continue
		}

		rest, matched := consumeWords(block[pos:], "table")
		if !matched {
			continue
		}
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		qualified := readToken(rest, "(")
		if qualified == "" {
			continue
		}
		name = bareName(qualified)

		open := strings.IndexByte(rest, '(')
		if open < 0 {
			return "", "", false
		}
		body := rest[open+1:]
		closeAt := closingBeforeExtent(body)
		if closeAt < 0 {
			return "", "", false
		}
		return name, body[:closeAt], true
	}
}

// closingBeforeExtent finds the first ')' that is followed, after optional
// whitespace, by the extent clause.
func closingBeforeExtent(body string) int {
	for i := 0; i < len(body); i++ {
		if body[i] != ')' {
			continue
		}
		rest := strings.TrimLeftFunc(body[i+1:], unicode.IsSpace)
		if len(rest) >= len("extent") && strings.EqualFold(rest[:len("extent")], "extent") {
			return i
		}
	}
	return -1
}

// columnLine reports the field name declared on a single line of the column
// section. Lines without a recognised type keyword (constraints, indexes,
// continuation lines) are not columns.
func columnLine(line string) (ColumnSchema, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return ColumnSchema{}, false
	}

	nameEnd := strings.IndexFunc(line, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
	if nameEnd <= 0 {
		return ColumnSchema{}, false
	}
	name := strings.Trim(line[:nameEnd], `"`)
	if name == "" || strings.ContainsAny(name, `",`) {
		return ColumnSchema{}, false
	}

	rest := line[nameEnd:]
	if !unicode.IsSpace(rune(rest[0])) {
		return ColumnSchema{}, false
	}
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	lowerRest := strings.ToLower(rest)

	typ := ""
	for _, kw := range columnTypes {
		if strings.HasPrefix(lowerRest, kw) && len(kw) > len(typ) {
			typ = kw
		}
	}
	if typ == "" {
		return ColumnSchema{}, false
	}

	definition := strings.TrimSuffix(strings.TrimSpace(rest), ",")
	return ColumnSchema{
		Name:      name,
		Type:      typ,
		IsID:      strings.HasPrefix(typ, "serial"),
		Nullable:  !strings.Contains(strings.ToLower(definition), "not null"),
		MaxLength: declaredLength(definition),
	}, true
}

// declaredLength returns n from a definition like varchar(n) or char(n, m).
func declaredLength(definition string) int {
	open := strings.IndexByte(definition, '(')
	if open < 0 {
		return 0
	}
	n := 0
	for _, r := range definition[open+1:] {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// consumeWords matches each word case-insensitively, separated by whitespace,
// and returns what follows the last one.
func consumeWords(s string, words ...string) (string, bool) {
	for n, w := range words {
		if n > 0 {
			trimmed := strings.TrimLeftFunc(s, unicode.IsSpace)
			if len(trimmed) == len(s) {
				return s, false
			}
			s = trimmed
		} else {
			s = strings.TrimLeftFunc(s, unicode.IsSpace)
		}
		if len(s) < len(w) || !strings.EqualFold(s[:len(w)], w) {
			return s, false
		}
		s = s[len(w):]
		if s != "" && !isSpace(s[0]) && !strings.ContainsRune("=(", rune(s[0])) {
			return s, false
		}
	}
	return s, true
}

// readToken returns the leading run of s up to whitespace or any stop byte.
func readToken(s, stops string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(stops, r)
	})
	if end < 0 {
		return s
	}
	return s[:end]
}

// bareName strips the owner prefix and quoting: "informix".customers -> customers.
func bareName(qualified string) string {
	if dot := strings.LastIndexByte(qualified, '.'); dot >= 0 {
		qualified = qualified[dot+1:]
	}
	return strings.Trim(qualified, `"`)
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
