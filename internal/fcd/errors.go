package fcd

import "fmt"

// ParseError reports malformed or truncated XML.
type ParseError struct {
	// Offset is the input byte offset at which decoding failed.
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("fcd: parse error at byte %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValueError reports a required attribute that is missing or cannot be
// converted.
type ValueError struct {
	Element string
	Attr    string
	Value   string
	Err     error
}

func (e *ValueError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("fcd: <%s> missing required attribute %q", e.Element, e.Attr)
	}
	return fmt.Sprintf("fcd: <%s> attribute %s=%q: %v", e.Element, e.Attr, e.Value, e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }
