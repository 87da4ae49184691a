// Package resolver turns a track reference, either a direct video link or a
// free-text search phrase, into a playable audio locator with display
// metadata. A search phrase yields a bounded candidate list for the client to
// disambiguate; that is a regular result variant, not an error.
package resolver

import "context"

// MaxCandidates caps a disambiguation list.
const MaxCandidates = 5

// Resolved is a playable track.
type Resolved struct {
	Link   string `json:"link"`
	Title  string `json:"title"`
	Avatar string `json:"avatar"`
}

// Candidate is one disambiguation entry. The json field names match the wire
// contract clients already speak.
type Candidate struct {
	Link   string `json:"link"`
	Title  string `json:"title"`
	Avatar string `json:"img"`
}

// Result is either a resolved track or a candidate list, never both.
type Result struct {
	Resolved   *Resolved
	Candidates []Candidate
}

// Resolver classifies and resolves track references.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (*Result, error)
}
