package common

import (
	"fmt"
	"strings"
)

// Strategy selects how a Locator value is matched against the DOM.
type Strategy string

// Supported locator strategies.
const (
	// ByText matches the innermost element whose whitespace normalised text
	// equals the value.
	ByText Strategy = "text"
	// ByID matches the element with the given DOM id.
	ByID Strategy = "id"
	// ByLinkText matches anchors whose normalised text equals the value.
	ByLinkText Strategy = "link"
)

// Locator describes how to find an element. It is resolved again on each use.
type Locator struct {
	Strategy Strategy
	Value    string
}

// Text returns a locator matching exact visible text.
func Text(s string) Locator { return Locator{Strategy: ByText, Value: s} }

// ID returns a locator matching a DOM id.
func ID(s string) Locator { return Locator{Strategy: ByID, Value: s} }

// LinkText returns a locator matching anchor link text.
func LinkText(s string) Locator { return Locator{Strategy: ByLinkText, Value: s} }

func (l Locator) String() string {
	switch l.Strategy {
	case ByID:
		return "#" + l.Value
	default:
		return fmt.Sprintf("%s=%q", l.Strategy, l.Value)
	}
}

// Validate returns ErrUnknownStrategy for unsupported strategies.
func (l Locator) Validate() error {
	switch l.Strategy {
	case ByText, ByID, ByLinkText:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, l.Strategy)
	}
	if l.Value == "" {
		return fmt.Errorf("empty %s locator", l.Strategy)
	}
	return nil
}

// XPath renders the locator as an XPath 1.0 expression. When it matches
// several nodes, callers use the first one in document order.
func (l Locator) XPath() (string, error) {
	if err := l.Validate(); err != nil {
		return "", err
	}
	v := xpathLiteral(l.Value)
	switch l.Strategy {
	case ByID:
		return fmt.Sprintf("//*[@id=%s]", v), nil
	case ByLinkText:
		return fmt.Sprintf("//a[normalize-space(.)=%s]", v), nil
	default:
		return fmt.Sprintf(
			"//body//*[not(self::script or self::style)][normalize-space(.)=%s][not(.//*[normalize-space(.)=%s])]",
			v, v), nil
	}
}

// NormalizeSpace collapses whitespace runs and trims, like XPath's
// normalize-space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
