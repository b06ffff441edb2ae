package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file is not an error.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Entry is one parsed log line.
type Entry struct {
	Time   string
	Level  string
	Msg    string
	Attrs  []Attr
	Raw    string
	Parsed bool
}

// Attr is a key/value pair from a log line other than time, level, and msg.
type Attr struct {
	Key   string
	Value string
}

// Parse decodes a line written by the slog text or JSON handler. Lines in
// neither format come back with Parsed false and only Raw set.
func Parse(line string) Entry {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		if e, ok := parseJSON(trimmed); ok {
			e.Raw = line
			return e
		}
	}
	if e, ok := parseText(trimmed); ok {
		e.Raw = line
		return e
	}
	return Entry{Raw: line}
}

func parseJSON(line string) (Entry, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return Entry{}, false
	}
	e := Entry{Parsed: true}
	e.Time, _ = fields["time"].(string)
	e.Level, _ = fields["level"].(string)
	e.Msg, _ = fields["msg"].(string)
	for k, v := range fields {
		switch k {
		case "time", "level", "msg":
			continue
		}
		e.Attrs = append(e.Attrs, Attr{Key: k, Value: fmt.Sprint(v)})
	}
	sortAttrs(e.Attrs)
	return e, e.Level != ""
}

func parseText(line string) (Entry, bool) {
	e := Entry{Parsed: true}
	rest := line
	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return Entry{}, false
		}
		key := rest[:eq]
		if strings.ContainsAny(key, " \t\"") {
			return Entry{}, false
		}
		rest = rest[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			quoted, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return Entry{}, false
			}
			value, _ = strconv.Unquote(quoted)
			rest = rest[len(quoted):]
		} else if sp := strings.IndexByte(rest, ' '); sp >= 0 {
			value = rest[:sp]
			rest = rest[sp:]
		} else {
			value = rest
			rest = ""
		}
		rest = strings.TrimLeft(rest, " ")

		switch key {
		case "time":
			e.Time = value
		case "level":
			e.Level = value
		case "msg":
			e.Msg = value
		default:
			e.Attrs = append(e.Attrs, Attr{Key: key, Value: value})
		}
	}
	return e, e.Level != ""
}

func sortAttrs(attrs []Attr) {
	for i := 1; i < len(attrs); i++ {
		for j := i; j > 0 && attrs[j].Key < attrs[j-1].Key; j-- {
			attrs[j], attrs[j-1] = attrs[j-1], attrs[j]
		}
	}
}

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

// AtLeast reports whether e's level is at or above min. Unparsed lines and
// unknown levels always pass.
func (e Entry) AtLeast(min string) bool {
	want, ok := levelRank[strings.ToUpper(min)]
	if !ok {
		return true
	}
	have, ok := levelRank[strings.ToUpper(e.Level)]
	if !ok {
		return true
	}
	return have >= want
}

// Filter parses lines and keeps entries at or above min.
func Filter(lines []string, min string) []Entry {
	out := make([]Entry, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if e := Parse(l); e.AtLeast(min) {
			out = append(out, e)
		}
	}
	return out
}
