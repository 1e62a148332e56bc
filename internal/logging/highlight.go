package logging

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
)

// StyleRule pairs a pattern with the style applied to its matches.
type StyleRule struct {
	Pattern *regexp.Regexp
	Style   text.Colors
}

// Highlighter applies an ordered list of pattern/style rules to console
// output. It never touches the text handed to the shipping sink.
type Highlighter struct {
	rules []StyleRule
}

// NewHighlighter builds a highlighter from compiled rules, preserving order.
func NewHighlighter(rules []StyleRule) *Highlighter {
	if len(rules) == 0 {
		return nil
	}
	return &Highlighter{rules: append([]StyleRule(nil), rules...)}
}

// Apply styles every match of every rule, in rule order. Nil-safe.
func (h *Highlighter) Apply(line string) string {
	if h == nil {
		return line
	}
	for _, rule := range h.rules {
		style := rule.Style
		line = rule.Pattern.ReplaceAllStringFunc(line, func(match string) string {
			return style.Sprint(match)
		})
	}
	return line
}

// CompileRule parses a pattern/style pair from configuration.
func CompileRule(pattern, style string) (StyleRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return StyleRule{}, fmt.Errorf("highlight pattern %q: %w", pattern, err)
	}
	colors, err := ParseStyle(style)
	if err != nil {
		return StyleRule{}, err
	}
	return StyleRule{Pattern: re, Style: colors}, nil
}

var styleNames = map[string]text.Color{
	"bold":       text.Bold,
	"dim":        text.Faint,
	"faint":      text.Faint,
	"italic":     text.Italic,
	"underline":  text.Underline,
	"black":      text.FgBlack,
	"red":        text.FgRed,
	"green":      text.FgGreen,
	"yellow":     text.FgYellow,
	"blue":       text.FgBlue,
	"magenta":    text.FgMagenta,
	"cyan":       text.FgCyan,
	"white":      text.FgWhite,
	"hi-black":   text.FgHiBlack,
	"hi-red":     text.FgHiRed,
	"hi-green":   text.FgHiGreen,
	"hi-yellow":  text.FgHiYellow,
	"hi-blue":    text.FgHiBlue,
	"hi-magenta": text.FgHiMagenta,
	"hi-cyan":    text.FgHiCyan,
	"hi-white":   text.FgHiWhite,
	"bg-black":   text.BgBlack,
	"bg-red":     text.BgRed,
	"bg-green":   text.BgGreen,
	"bg-yellow":  text.BgYellow,
	"bg-blue":    text.BgBlue,
	"bg-magenta": text.BgMagenta,
	"bg-cyan":    text.BgCyan,
	"bg-white":   text.BgWhite,
}

// ParseStyle resolves a space-separated style name like "bold red" to
// go-pretty colors.
func ParseStyle(name string) (text.Colors, error) {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty style name")
	}
	colors := make(text.Colors, 0, len(parts))
	for _, part := range parts {
		color, ok := styleNames[part]
		if !ok {
			return nil, fmt.Errorf("unknown style %q", part)
		}
		colors = append(colors, color)
	}
	return colors, nil
}
