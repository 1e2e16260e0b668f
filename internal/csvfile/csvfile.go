// Package csvfile decodes operator-exported CSV files into header-keyed rows.
package csvfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

const (
	EncodingUTF8    = "utf-8"
	EncodingGB18030 = "gb18030"
)

var (
	ErrEmptyFile = errors.New("empty_file")

	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
)

// Row maps a header name to its trimmed cell value.
type Row map[string]string

type Table struct {
	Header    []string
	Rows      []Row
	Encoding  string
	Delimiter rune
}

type Options struct {
	// Delimiter of zero sniffs the first line.
	Delimiter rune
}

// Decode parses content. Files that are not valid UTF-8 are decoded as
// GB18030, which is what spreadsheet tools on Chinese Windows export.
func Decode(content []byte, opts Options) (*Table, error) {
	content = bytes.TrimPrefix(content, utf8BOM)

	encoding := EncodingUTF8
	if !utf8.Valid(content) {
		decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(content), simplifiedchinese.GB18030.NewDecoder()))
		if err != nil {
			return nil, fmt.Errorf("decode gb18030: %w", err)
		}
		content = decoded
		encoding = EncodingGB18030
	}

	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyFile
	}

	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = SniffDelimiter(content)
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = uniqueHeader(header)

	table := &Table{Header: header, Encoding: encoding, Delimiter: delimiter}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(table.Rows)+2, err)
		}

		row := make(Row, len(header))
		empty := true
		for i, name := range header {
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			if value != "" {
				empty = false
			}
			row[name] = value
		}
		if empty {
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// SniffDelimiter picks tab, semicolon or comma by frequency in the first line.
func SniffDelimiter(content []byte) rune {
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, candidate := range []rune{'\t', ';'} {
		if n := bytes.Count(line, []byte(string(candidate))); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

// ParseDelimiter accepts a literal character or the names tab, comma and semicolon.
func ParseDelimiter(raw string) (rune, error) {
	switch strings.ToLower(raw) {
	case "":
		return 0, nil
	case "tab", `\t`, "\t":
		return '\t', nil
	case "comma", ",":
		return ',', nil
	case "semicolon", ";":
		return ';', nil
	}
	r, size := utf8.DecodeRuneInString(raw)
	if size != len(raw) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", raw)
	}
	return r, nil
}

// uniqueHeader suffixes repeated names with _1, _2... so no column is lost.
func uniqueHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, name := range header {
		candidate := name
		for {
			n, dup := seen[candidate]
			if !dup {
				break
			}
			seen[candidate] = n + 1
			candidate = name + "_" + strconv.Itoa(n+1)
		}
		seen[candidate] = 0
		out[i] = candidate
	}
	return out
}

// VisibleHeader returns the non-blank header names, trimmed.
func (t *Table) VisibleHeader() []string {
	out := make([]string, 0, len(t.Header))
	for _, h := range t.Header {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

// HeaderLooksGarbled reports whether any header carries the Unicode
// replacement character, the usual sign of a mis-encoded export.
func (t *Table) HeaderLooksGarbled() bool {
	for _, h := range t.Header {
		if strings.ContainsRune(h, utf8.RuneError) {
			return true
		}
	}
	return false
}
