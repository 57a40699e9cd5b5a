package aiparse

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fencedBlockRe   = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	objectSeamRe    = regexp.MustCompile(`}\s*{`)
	arraySeamRe     = regexp.MustCompile(`]\s*\[`)
)

// Repair extracts the best-effort JSON payload from raw model output. It
// strips Markdown fences and surrounding prose, closes unterminated strings,
// fixes common comma defects, and recovers what it can from truncated
// payloads. It never fails: hopeless input collapses to "[]".
func Repair(raw string) string {
	s := stripFences(raw)
	s = trimToPayload(s)
	if s == "" {
		return "[]"
	}
	s = closeUnterminatedString(s)
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = objectSeamRe.ReplaceAllString(s, "},{")
	s = arraySeamRe.ReplaceAllString(s, "],[")
	if isComplete(s) {
		return s
	}
	return recoverTruncated(s)
}

// stripFences removes Markdown code-fence wrappers, including a dangling
// opening fence on truncated output.
func stripFences(s string) string {
	if m := fencedBlockRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	t := strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(t, "```"); ok {
		// Drop a leading language tag such as "json".
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			tag := strings.TrimSpace(rest[:i])
			if len(tag) <= 10 && !strings.ContainsAny(tag, "{}[]") {
				rest = rest[i+1:]
			}
		}
		return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), "```"))
	}
	return t
}

// trimToPayload strips prose before the first bracket and after the last
// closing bracket. Truncated payloads with no closer keep their tail.
func trimToPayload(s string) string {
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndexAny(s, "]}")
	if end > start {
		return s[start : end+1]
	}
	return s[start:]
}

// closeUnterminatedString scans quote state (honoring backslash escapes) and,
// if the input ends inside a string, inserts a closing quote at the nearest
// structural boundary after the unmatched quote, or at end of input.
func closeUnterminatedString(s string) string {
	inString := false
	escaped := false
	lastOpen := -1
	for i := 0; i < len(s); i++ {
		if escaped {
			escaped = false
			continue
		}
		switch s[i] {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
			if inString {
				lastOpen = i
			}
		}
	}
	if !inString {
		return s
	}
	for i := lastOpen + 1; i < len(s); i++ {
		switch s[i] {
		case ',', '}', ']':
			return s[:i] + `"` + s[i:]
		}
	}
	return s + `"`
}

// isComplete reports whether every brace and bracket closes and no string is
// left open at end of scan.
func isComplete(s string) bool {
	braces, brackets := 0, 0
	inString := false
	escaped := false
	seen := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			braces++
			seen = true
		case '}':
			braces--
		case '[':
			brackets++
			seen = true
		case ']':
			brackets--
		}
		if braces < 0 || brackets < 0 {
			return false
		}
	}
	return seen && braces == 0 && brackets == 0 && !inString
}

// recoverTruncated salvages what it can from an incomplete payload: first the
// longest prefix of cleanly closed array elements, then any independent
// objects, and finally an empty array.
func recoverTruncated(s string) string {
	if i := strings.IndexByte(s, '['); i >= 0 {
		if arr := recoverArrayPrefix(s[i:]); arr != "" {
			return arr
		}
	}
	if objs := extractClosedObjects(s); len(objs) > 0 {
		return "[" + strings.Join(objs, ",") + "]"
	}
	return "[]"
}

// recoverArrayPrefix walks elements of an array starting at s[0] == '[' and
// keeps every element that closes cleanly.
func recoverArrayPrefix(s string) string {
	var elems []string
	i := 1
	for i < len(s) {
		for i < len(s) && (s[i] == ',' || s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
			i++
		}
		if i >= len(s) || s[i] == ']' {
			break
		}
		end, ok := scanValue(s, i)
		if !ok {
			break
		}
		elem := strings.TrimSpace(s[i:end])
		if json.Valid([]byte(elem)) {
			elems = append(elems, elem)
		}
		i = end
	}
	if len(elems) == 0 {
		return ""
	}
	return "[" + strings.Join(elems, ",") + "]"
}

// extractClosedObjects returns every top-level brace-delimited object that
// closes cleanly, in order of appearance.
func extractClosedObjects(s string) []string {
	var objs []string
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		end, ok := scanValue(s, i)
		if !ok {
			// The object at i never closes; an inner object still might.
			continue
		}
		if obj := s[i:end]; json.Valid([]byte(obj)) {
			objs = append(objs, obj)
			i = end - 1
		}
	}
	return objs
}

// scanValue scans one JSON value starting at s[i] and returns the index just
// past its end. Containers must close at the starting nesting level; scalars
// must reach a top-level comma or closing bracket before end of input.
func scanValue(s string, i int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for j := i; j < len(s); j++ {
		c := s[j]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
				if depth == 0 && s[i] == '"' {
					return j + 1, true
				}
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			if depth == 0 {
				// Scalar terminated by the enclosing container.
				return j, j > i
			}
			depth--
			if depth == 0 && (s[i] == '{' || s[i] == '[') {
				return j + 1, true
			}
		case ',':
			if depth == 0 {
				return j, j > i
			}
		}
	}
	return len(s), false
}
