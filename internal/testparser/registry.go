package testparser

import "strings"

// Registry maps toolchain identifiers to their parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates a new parser registry with all built-in parsers.
func NewRegistry() *Registry {
	r := &Registry{
		parsers: make(map[string]Parser),
	}

	pytestParser := &PytestParser{}
	r.parsers["python"] = pytestParser
	r.parsers["uv"] = pytestParser
	r.parsers["pytest"] = pytestParser

	return r
}

// GetParser returns a parser for the given toolchain identifier.
// Returns nil if no parser is found.
func (r *Registry) GetParser(toolchain string) Parser {
	return r.parsers[strings.ToLower(toolchain)]
}
