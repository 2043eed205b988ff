package cards

import "github.com/mmcdole/recall/internal/domain"

// ListResponse is the paginated list envelope returned by every card view
type ListResponse struct {
	Count    int       `json:"count"`
	Next     *string   `json:"next"`
	Previous *string   `json:"previous"`
	Results  []CardDTO `json:"results"`
}

// CardDTO is a card resource as served by the API
type CardDTO struct {
	ID         string   `json:"id"`
	Front      string   `json:"front"`
	Back       string   `json:"back"`
	Example    string   `json:"example,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Type       string   `json:"type,omitempty"` // Queue name, only set by some views
}

// gradeRequest is the body of memorize, grade and cram review writes
type gradeRequest struct {
	Grade int `json:"grade"`
}

// forgetRequest is the body of the forget write
type forgetRequest struct {
	Forget bool `json:"forget"`
}

// MapCard converts an API card to a domain card.
// fallback is used when the resource does not name its queue.
func MapCard(d CardDTO, fallback domain.Membership) domain.Card {
	membership := membershipFromType(d.Type)
	if membership == domain.MembershipUnknown {
		membership = fallback
	}
	return domain.Card{
		ID:         d.ID,
		Front:      d.Front,
		Back:       d.Back,
		Example:    d.Example,
		Categories: d.Categories,
		Membership: membership,
	}
}

// MapCards converts a list of API cards, stamping the listing view's membership
func MapCards(dtos []CardDTO, kind domain.Kind) []domain.Card {
	out := make([]domain.Card, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, MapCard(d, kind.Membership()))
	}
	return out
}

// MapPage converts a list envelope into a domain page
func MapPage(resp ListResponse, kind domain.Kind, pageIndex int) domain.Page {
	return domain.Page{
		Index:       pageIndex,
		Items:       MapCards(resp.Results, kind),
		TotalCount:  resp.Count,
		HasNext:     resp.Next != nil && *resp.Next != "",
		HasPrevious: resp.Previous != nil && *resp.Previous != "",
	}
}

func membershipFromType(t string) domain.Membership {
	switch t {
	case "queued":
		return domain.MembershipQueued
	case "scheduled", "outstanding":
		return domain.MembershipOutstanding
	case "cram":
		return domain.MembershipCram
	case "memorized":
		return domain.MembershipMemorized
	default:
		return domain.MembershipUnknown
	}
}
