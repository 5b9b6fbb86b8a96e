// Package contacts turns a free-text name query into a single unambiguous
// message target. Scoring is a deterministic substring count, not a fuzzy
// similarity: ties are surfaced to the caller instead of being broken
// arbitrarily.
package contacts

import (
	"sort"
	"strings"

	"chat-gateway/backend/internal/protocol"
)

// MaxAmbiguousCandidates caps the disambiguation list returned to callers.
const MaxAmbiguousCandidates = 10

type Outcome string

const (
	OutcomeNoMatch   Outcome = "no_match"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeResolved  Outcome = "resolved"
)

// Candidate pairs a contact with its match score for one resolution call.
type Candidate struct {
	Contact protocol.Contact
	Score   int
}

type Resolution struct {
	Outcome    Outcome
	Target     protocol.Contact
	Candidates []Candidate
}

// Resolve scores every eligible contact against the query and returns the
// sole best match, the tied best matches, or nothing. Groups and contacts
// that are neither personally known nor verified on the network never match.
func Resolve(query string, list []protocol.Contact) Resolution {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return Resolution{Outcome: OutcomeNoMatch}
	}

	candidates := make([]Candidate, 0, len(list))
	for _, c := range list {
		if !Eligible(c) {
			continue
		}
		if s := Score(needle, c); s > 0 {
			candidates = append(candidates, Candidate{Contact: c, Score: s})
		}
	}
	if len(candidates) == 0 {
		return Resolution{Outcome: OutcomeNoMatch}
	}

	topScore := 0
	for _, cand := range candidates {
		if cand.Score > topScore {
			topScore = cand.Score
		}
	}
	top := candidates[:0:0]
	for _, cand := range candidates {
		if cand.Score == topScore {
			top = append(top, cand)
		}
	}
	sort.Slice(top, func(i, j int) bool { return top[i].Contact.JID < top[j].Contact.JID })

	if len(top) > 1 {
		if len(top) > MaxAmbiguousCandidates {
			top = top[:MaxAmbiguousCandidates]
		}
		return Resolution{Outcome: OutcomeAmbiguous, Candidates: top}
	}
	return Resolution{Outcome: OutcomeResolved, Target: top[0].Contact, Candidates: top}
}

// Eligible reports whether a contact can ever be a name-match target.
func Eligible(c protocol.Contact) bool {
	if c.IsGroup {
		return false
	}
	return c.IsKnown || c.IsOnNetwork
}

// Score counts how many identity fields contain the lowercased needle.
// Multiple field hits compound: a contact matching on both display name and
// push name outranks one matching on a single field.
func Score(needle string, c protocol.Contact) int {
	score := 0
	for _, field := range []string{
		c.DisplayName,
		c.PushName,
		c.ShortName,
		c.Number,
		protocol.JIDUser(c.JID),
	} {
		if field == "" {
			continue
		}
		if strings.Contains(strings.ToLower(field), needle) {
			score++
		}
	}
	return score
}

// Filter returns the eligible contacts that score above zero for the query,
// each with its score, sorted by descending score then JID. An empty query
// returns every eligible contact unscored.
func Filter(query string, list []protocol.Contact) []Candidate {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]Candidate, 0, len(list))
	for _, c := range list {
		if !Eligible(c) {
			continue
		}
		if needle == "" {
			out = append(out, Candidate{Contact: c})
			continue
		}
		if s := Score(needle, c); s > 0 {
			out = append(out, Candidate{Contact: c, Score: s})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Contact.JID < out[j].Contact.JID
	})
	return out
}
