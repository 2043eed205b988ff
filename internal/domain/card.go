package domain

import "fmt"

// Kind identifies one of the five card views served by the API.
type Kind string

const (
	KindQueued      Kind = "queued"
	KindOutstanding Kind = "outstanding"
	KindCram        Kind = "cram"
	KindMemorized   Kind = "memorized"
	KindAll         Kind = "all"
)

// Kinds lists every view in display order.
var Kinds = []Kind{KindQueued, KindOutstanding, KindCram, KindMemorized, KindAll}

// Valid reports whether k names a known view.
func (k Kind) Valid() bool {
	switch k {
	case KindQueued, KindOutstanding, KindCram, KindMemorized, KindAll:
		return true
	default:
		return false
	}
}

// Membership returns the queue membership of cards listed under k.
// The "all" view mixes memberships, so it reports MembershipUnknown.
func (k Kind) Membership() Membership {
	switch k {
	case KindQueued:
		return MembershipQueued
	case KindOutstanding:
		return MembershipOutstanding
	case KindCram:
		return MembershipCram
	case KindMemorized:
		return MembershipMemorized
	default:
		return MembershipUnknown
	}
}

// Membership is the single queue a card belongs to on the server.
type Membership int

const (
	MembershipUnknown Membership = iota
	MembershipQueued
	MembershipOutstanding
	MembershipCram
	MembershipMemorized
)

// String returns a human-readable representation of the membership
func (m Membership) String() string {
	switch m {
	case MembershipQueued:
		return "queued"
	case MembershipOutstanding:
		return "outstanding"
	case MembershipCram:
		return "cram"
	case MembershipMemorized:
		return "memorized"
	default:
		return "unknown"
	}
}

// Card is a server-owned flashcard.
type Card struct {
	ID         string     // Server-assigned identifier, never generated locally
	Front      string     // Prompt side (may contain HTML)
	Back       string     // Answer side (may contain HTML)
	Example    string     // Optional usage example
	Categories []string   // Category identifiers the card is filed under
	Membership Membership // Queue the card was listed in, if known
}

// Grade is the recall quality reported for a review, from 0 (blackout)
// to 5 (perfect recall).
type Grade int

const (
	MinGrade Grade = 0
	MaxGrade Grade = 5
)

// Valid reports whether g lies within the accepted range.
func (g Grade) Valid() bool {
	return g >= MinGrade && g <= MaxGrade
}

// Validate returns ErrInvalidGrade when g is out of range.
func (g Grade) Validate() error {
	if !g.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidGrade, int(g))
	}
	return nil
}

// Page is one server-fetched slice of a view.
type Page struct {
	Index       int    // Zero-based page index
	Items       []Card // Cards in server order
	TotalCount  int    // Total items in the view at fetch time
	HasNext     bool   // Server reported a following page
	HasPrevious bool   // Server reported a preceding page
}
