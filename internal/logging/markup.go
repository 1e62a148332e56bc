package logging

import (
	"regexp"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
)

var markupTagPattern = regexp.MustCompile(`\[(/?)([^\[\]]*)\]`)

// ExpandMarkup renders inline style tags like "[bold red]...[/]" in s.
// Closing tags may be anonymous ("[/]") or name the style they close.
// When styled is false, valid tags are stripped and only the text remains.
//
// Message content is often unsanitized user data, so malformed or unbalanced
// markup never fails: the input is returned unchanged instead.
func ExpandMarkup(s string, styled bool) string {
	matches := markupTagPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	type frame struct {
		name   string
		colors text.Colors
		buf    strings.Builder
	}
	root := &frame{}
	stack := []*frame{root}
	last := 0

	for _, match := range matches {
		top := stack[len(stack)-1]
		top.buf.WriteString(s[last:match[0]])
		last = match[1]

		closing := s[match[2]:match[3]] == "/"
		name := strings.TrimSpace(s[match[4]:match[5]])

		if closing {
			if len(stack) == 1 {
				return s
			}
			if name != "" && name != top.name {
				return s
			}
			stack = stack[:len(stack)-1]
			parent := stack[len(stack)-1]
			if styled {
				parent.buf.WriteString(top.colors.Sprint(top.buf.String()))
			} else {
				parent.buf.WriteString(top.buf.String())
			}
			continue
		}

		colors, err := ParseStyle(name)
		if err != nil {
			return s
		}
		stack = append(stack, &frame{name: name, colors: colors})
	}

	if len(stack) != 1 {
		return s
	}
	root.buf.WriteString(s[last:])
	return root.buf.String()
}
