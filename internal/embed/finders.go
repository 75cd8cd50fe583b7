package embed

import "strings"

// ReSTFinder finds reStructuredText literal blocks: the indented lines
// following a paragraph ending in "::" or a code directive such as
// ".. code-block:: python".
type ReSTFinder struct{}

func (ReSTFinder) FindEmbeddedCode(lines []string) []Block {
	var blocks []Block
	for i := 0; i < len(lines); i++ {
		if !opensLiteral(lines[i]) {
			continue
		}
		markerIndent := indentOf(lines[i])
		j := i + 1
		// Directive options and blank lines before the body.
		for j < len(lines) && (isBlank(lines[j]) || isOption(lines[j], markerIndent)) {
			j++
		}
		if j >= len(lines) || indentOf(lines[j]) <= markerIndent {
			continue
		}
		indent := indentOf(lines[j])
		first, last := j, j
		for ; j < len(lines); j++ {
			if isBlank(lines[j]) {
				continue
			}
			if indentOf(lines[j]) < indent {
				break
			}
			last = j
		}
		blocks = append(blocks, Block{Offset: first, Count: last - first + 1, Indent: indent})
		i = last
	}
	return blocks
}

func opensLiteral(line string) bool {
	t := strings.TrimSpace(line)
	if strings.HasPrefix(t, ".. ") {
		for _, d := range []string{"code-block::", "code::", "sourcecode::"} {
			if strings.HasPrefix(t[3:], d) {
				return true
			}
		}
		return false
	}
	return strings.HasSuffix(t, "::")
}

func isOption(line string, markerIndent int) bool {
	return indentOf(line) > markerIndent && strings.HasPrefix(strings.TrimSpace(line), ":")
}

// FenceFinder finds Markdown fenced code blocks (```).
type FenceFinder struct {
	// Info, when set, only accepts fences whose info string starts with
	// one of these words.
	Info []string
}

func (f FenceFinder) FindEmbeddedCode(lines []string) []Block {
	var blocks []Block
	for i := 0; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(t, "```") {
			continue
		}
		indent := indentOf(lines[i])
		j := i + 1
		for j < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[j]), "```") {
			j++
		}
		if j >= len(lines) {
			break
		}
		if j > i+1 && f.accepts(strings.TrimSpace(t[3:])) {
			blocks = append(blocks, Block{Offset: i + 1, Count: j - i - 1, Indent: indent})
		}
		i = j
	}
	return blocks
}

func (f FenceFinder) accepts(info string) bool {
	if len(f.Info) == 0 {
		return true
	}
	word, _, _ := strings.Cut(info, " ")
	for _, w := range f.Info {
		if w == word {
			return true
		}
	}
	return false
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
