package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Document is a decoded JSON response. Providers disagree on where the same
// value lives, so lookups take an ordered list of dotted paths and return the
// first non-empty hit. Numeric segments index arrays ("images.0.url").
type Document struct {
	Status int
	root   any
}

// ParseDocument decodes body, keeping numbers as json.Number so numeric task
// ids survive unchanged.
func ParseDocument(status int, body []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return Document{Status: status}, err
	}
	return Document{Status: status, root: root}, nil
}

// NewDocument wraps an already decoded value.
func NewDocument(root any) Document {
	return Document{Status: 200, root: root}
}

func (d Document) Raw() any {
	return d.root
}

// Lookup resolves a single dotted path.
func (d Document) Lookup(path string) (any, bool) {
	cur := d.root
	if path == "" {
		return cur, cur != nil
	}
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// FirstString returns the first path holding a non-empty string or number.
func (d Document) FirstString(paths ...string) string {
	for _, p := range paths {
		v, ok := d.Lookup(p)
		if !ok {
			continue
		}
		if s := scalarString(v); s != "" {
			return s
		}
	}
	return ""
}

// FirstValue returns the first path holding a non-empty value of any kind.
func (d Document) FirstValue(paths ...string) (any, bool) {
	for _, p := range paths {
		v, ok := d.Lookup(p)
		if !ok || isEmpty(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

// Sub returns the document rooted at path.
func (d Document) Sub(path string) Document {
	v, _ := d.Lookup(path)
	return Document{Status: d.Status, root: v}
}

// Int returns the numeric value at path.
func (d Document) Int(path string) (int64, bool) {
	v, ok := d.Lookup(path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

// Message extracts a provider error message from the usual fields.
func (d Document) Message() string {
	return d.FirstString("message", "error.message", "error", "msg", "detail")
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return ""
	}
	return ""
}

func isEmpty(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	case map[string]any:
		return len(s) == 0
	case []any:
		return len(s) == 0
	case bool:
		return !s
	}
	return false
}

// TextValue renders v as text. Objects are searched for a text-like field and
// serialized when none is found.
func TextValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case map[string]any:
		doc := NewDocument(t)
		if s := doc.FirstString("text", "lyrics", "content"); s != "" {
			return s
		}
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	default:
		return scalarString(v)
	}
}

var (
	markdownImageRe = regexp.MustCompile(`(?i)!\[.*?\]\((https?://[^\s"'<>)]+)\)`)
	looseURLRe      = regexp.MustCompile(`(?i)(https?://[^\s"'<>]+)`)
)

var locatorPriorityKeys = []string{"url", "b64_json", "image", "img", "link", "content", "data"}

// FindMediaLocator searches a decoded value depth-first for something that
// looks like a media locator: a markdown image link, an http(s) URL or a
// data:image URI. Priority keys are visited before the remaining keys, which
// are then visited in sorted order.
func FindMediaLocator(v any) string {
	switch node := v.(type) {
	case string:
		return locatorFromString(node)
	case []any:
		for _, item := range node {
			if found := FindMediaLocator(item); found != "" {
				return found
			}
		}
	case map[string]any:
		visited := make(map[string]bool, len(locatorPriorityKeys))
		for _, key := range locatorPriorityKeys {
			visited[key] = true
			child, ok := node[key]
			if !ok || isEmpty(child) {
				continue
			}
			if found := FindMediaLocator(child); found != "" {
				return found
			}
		}
		keys := make([]string, 0, len(node))
		for k := range node {
			if !visited[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			if found := FindMediaLocator(node[k]); found != "" {
				return found
			}
		}
	}
	return ""
}

func locatorFromString(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}
	if m := markdownImageRe.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	if (strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://")) && !strings.Contains(trimmed, " ") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "data:image") {
		return trimmed
	}
	if m := looseURLRe.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return ""
}
