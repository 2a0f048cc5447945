package model

import "go.starlark.net/syntax"

// SyntaxOptions returns the dialect options shared by the validator and the
// runner. While loops, recursion, and sets are permitted inside run's body;
// the top-level shape of a script is constrained by the validator, not by
// the parser.
func SyntaxOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:       true,
		While:     true,
		Recursion: true,
	}
}
