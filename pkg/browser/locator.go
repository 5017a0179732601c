package browser

import (
	"strings"
)

// Strategy is the element lookup strategy a selector resolved to.
type Strategy string

const (
	// StrategyCSS matches a CSS selector.
	StrategyCSS Strategy = "css"

	// StrategyID matches an element id.
	StrategyID Strategy = "id"

	// StrategyXPath evaluates an XPath expression. Only the chrome engine
	// supports it.
	StrategyXPath Strategy = "xpath"

	// StrategyAuto locates the first element whose own text contains the
	// value.
	StrategyAuto Strategy = "auto"
)

// Locator is a resolved element lookup.
type Locator struct {
	Strategy Strategy
	Value    string
}

// AutoSelector is the selector value that requests text-based detection.
const AutoSelector = "auto"

// ParseSelector classifies a configured selector:
//
//	//... or (//...  XPath
//	#id             element id
//	.class          CSS
//	auto or empty   text-based detection against expectedText
//	anything else   CSS
//
// Auto detection without an expected literal has nothing to search for and
// degrades to watching the page body.
func ParseSelector(selector, expectedText string) Locator {
	selector = strings.TrimSpace(selector)

	switch {
	case selector == "" || selector == AutoSelector:
		if expectedText == "" {
			return Locator{Strategy: StrategyCSS, Value: "body"}
		}
		return Locator{Strategy: StrategyAuto, Value: expectedText}
	case strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(//"):
		return Locator{Strategy: StrategyXPath, Value: selector}
	case strings.HasPrefix(selector, "#"):
		return Locator{Strategy: StrategyID, Value: strings.TrimPrefix(selector, "#")}
	default:
		return Locator{Strategy: StrategyCSS, Value: selector}
	}
}

// XPath returns the XPath expression for locators the chrome engine
// evaluates through the search API.
func (l Locator) XPath() string {
	switch l.Strategy {
	case StrategyXPath:
		return l.Value
	case StrategyAuto:
		return containsTextXPath(l.Value)
	default:
		return ""
	}
}

// containsTextXPath builds the text-detection expression
// //*[contains(text(), <value>)]. The value is embedded as a valid XPath
// string literal even when it contains quotes.
func containsTextXPath(text string) string {
	return "//*[contains(text(), " + xpathLiteral(text) + ")]"
}

// xpathLiteral quotes a string for embedding in an XPath 1.0 expression.
// XPath 1.0 has no escape sequences, so a value holding both quote kinds
// must be assembled with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	var b strings.Builder
	b.WriteString("concat(")
	for i, part := range strings.Split(s, "'") {
		if i > 0 {
			b.WriteString(`, "'", `)
		}
		b.WriteString("'" + part + "'")
	}
	b.WriteString(")")
	return b.String()
}
