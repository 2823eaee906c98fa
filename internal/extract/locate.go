package extract

import "strings"

// Shape is the expected top-level form of the embedded payload.
type Shape int

const (
	ShapeObject Shape = iota
	ShapeList
)

func (s Shape) String() string {
	if s == ShapeList {
		return "list"
	}
	return "object"
}

func (s Shape) delimiters() (open, close string) {
	if s == ShapeList {
		return "[", "]"
	}
	return "{", "}"
}

// Locator finds the span of text holding the structured payload.
type Locator interface {
	Locate(text string, shape Shape) (string, bool)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(text string, shape Shape) (string, bool)

func (f LocatorFunc) Locate(text string, shape Shape) (string, bool) {
	return f(text, shape)
}

// OuterSpan takes everything from the first opening delimiter of the shape
// to the last closing one. Delimiters inside string literals are not
// special-cased, so prose after the payload that contains a closing
// delimiter widens the span and the parse fails.
type OuterSpan struct{}

func (OuterSpan) Locate(text string, shape Shape) (string, bool) {
	open, close := shape.delimiters()

	start := strings.Index(text, open)
	if start < 0 {
		return "", false
	}
	end := strings.LastIndex(text, close)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}
