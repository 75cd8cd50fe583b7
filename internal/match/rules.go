package match

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// indentWidth is the number of spaces per nesting level in rule text.
const indentWidth = 4

// Rule maps an ancestor-path pattern to a label.
//
// Pattern is a dot-separated list of segments with the most specific (leaf)
// segment last. A segment is a node kind, optionally qualified by a field
// (`name:identifier`) and optionally suffixed with `+` to match one or more
// consecutive ancestors of that kind.
type Rule struct {
	Pattern string
	Label   string
	Embed   string // embedded language tag, "" for none
	Line    int    // 1-based line in the rule text, 0 if built in code
}

// RuleError reports a rule that was skipped.
type RuleError struct {
	Line   int
	Rule   string
	Reason string
}

func (e *RuleError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: rule %q: %s", e.Line, e.Rule, e.Reason)
	}
	return fmt.Sprintf("rule %q: %s", e.Rule, e.Reason)
}

// ParseRules reads the indented rule-table format:
//
//	# comment
//	class_definition
//	    class            Class
//	    identifier       ClassName
//	call.attribute+
//	    identifier       CalledMethod
//	string               String   embed:python
//
// Each line holds one path segment (or a dotted run of segments), optionally
// followed by a label and an `embed:<tag>` marker. Nesting depth (four spaces
// per level) prefixes the ancestors' segments. Only labelled lines produce
// rules. Malformed lines are reported and skipped together with everything
// nested under them; parsing always continues.
func ParseRules(r io.Reader) ([]Rule, []error) {
	type frame struct {
		pattern string
		bad     bool
	}

	var (
		rules []Rule
		errs  []error
		stack []frame
	)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := strings.TrimRight(sc.Text(), " \r")
		text := strings.TrimLeft(raw, " ")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if strings.HasPrefix(text, "\t") {
			errs = append(errs, &RuleError{Line: lineNo, Rule: strings.TrimSpace(text), Reason: "tab indentation"})
			continue
		}
		indent := len(raw) - len(text)
		fields := strings.Fields(text)
		if len(fields) == 0 {
			// Only non-space blanks such as \v or U+00A0.
			continue
		}
		if indent%indentWidth != 0 {
			errs = append(errs, &RuleError{Line: lineNo, Rule: fields[0], Reason: fmt.Sprintf("indent of %d is not a multiple of %d", indent, indentWidth)})
			continue
		}
		depth := indent / indentWidth
		if depth > len(stack) {
			errs = append(errs, &RuleError{Line: lineNo, Rule: fields[0], Reason: "indentation skips a level"})
			continue
		}
		stack = stack[:depth]

		parentBad := depth > 0 && stack[depth-1].bad
		pattern := fields[0]
		if depth > 0 {
			pattern = stack[depth-1].pattern + "." + fields[0]
		}
		if parentBad {
			stack = append(stack, frame{pattern: pattern, bad: true})
			continue
		}
		if _, err := compilePattern(fields[0]); err != nil {
			errs = append(errs, &RuleError{Line: lineNo, Rule: pattern, Reason: err.Error()})
			stack = append(stack, frame{pattern: pattern, bad: true})
			continue
		}
		stack = append(stack, frame{pattern: pattern})

		if len(fields) == 1 {
			continue
		}
		rule := Rule{Pattern: pattern, Label: fields[1], Line: lineNo}
		switch {
		case strings.HasPrefix(fields[1], "embed:"):
			errs = append(errs, &RuleError{Line: lineNo, Rule: pattern, Reason: "embed marker without a label"})
			continue
		case len(fields) > 3:
			errs = append(errs, &RuleError{Line: lineNo, Rule: pattern, Reason: fmt.Sprintf("unexpected %q", fields[3])})
			continue
		case len(fields) == 3:
			tag, ok := strings.CutPrefix(fields[2], "embed:")
			if !ok || tag == "" {
				errs = append(errs, &RuleError{Line: lineNo, Rule: pattern, Reason: fmt.Sprintf("expected embed:<tag>, got %q", fields[2])})
				continue
			}
			rule.Embed = tag
		}
		rules = append(rules, rule)
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, fmt.Errorf("match: read rules: %w", err))
	}
	return rules, errs
}

// segment is one compiled pattern element.
type segment struct {
	field  string
	kind   string
	repeat bool
}

// compilePattern splits a dotted pattern into segments, root first.
func compilePattern(pattern string) ([]segment, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	parts := strings.Split(pattern, ".")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		s, err := compileSegment(p)
		if err != nil {
			return nil, err
		}
		segs = append(segs, s)
	}
	return segs, nil
}

// compileSegment parses `kind`, `field:kind`, and their `+` forms. Node kinds
// made only of punctuation (`(`, `::`, `+=`) are taken literally; `+` and `:`
// are only operators next to identifier-like text.
func compileSegment(seg string) (segment, error) {
	if seg == "" {
		return segment{}, fmt.Errorf("empty segment")
	}
	var s segment
	if body, ok := strings.CutSuffix(seg, "+"); ok && body != "" && !isPunct(body) {
		if strings.HasSuffix(body, "+") {
			return segment{}, fmt.Errorf("segment %q: repeated '+'", seg)
		}
		s.repeat = true
		seg = body
	}
	if !strings.Contains(seg, ":") || isPunct(seg) {
		s.kind = seg
		return s, nil
	}
	parts := strings.Split(seg, ":")
	if len(parts) != 2 || !isIdent(parts[0]) || parts[1] == "" {
		return segment{}, fmt.Errorf("segment %q: unbalanced field qualifier", seg)
	}
	s.field, s.kind = parts[0], parts[1]
	return s, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// isPunct reports whether s has no identifier characters at all.
func isPunct(s string) bool {
	for _, c := range s {
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			return false
		}
	}
	return true
}
