package cards

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/mmcdole/recall/internal/domain"
)

// Client implements domain.PageFetcher and domain.CardWriter on top of a Session
type Client struct {
	session domain.Session
	userID  string
	logger  *slog.Logger
}

// NewClient creates a card API client scoped to userID
func NewClient(session domain.Session, userID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		session: session,
		userID:  userID,
		logger:  logger,
	}
}

// ListPath returns the list route of a view, relative to the API base URL
func (c *Client) ListPath(kind domain.Kind) string {
	if kind == domain.KindAll {
		return fmt.Sprintf("/users/%s/cards/", url.PathEscape(c.userID))
	}
	return fmt.Sprintf("/users/%s/cards/%s/", url.PathEscape(c.userID), kind)
}

// FetchPage loads one page of a view. pageIndex is zero-based; the server's
// page parameter is one-based.
func (c *Client) FetchPage(ctx context.Context, kind domain.Kind, pageIndex int, categories []string) (domain.Page, error) {
	if !kind.Valid() {
		return domain.Page{}, fmt.Errorf("unknown card view %q", kind)
	}
	if pageIndex < 0 {
		return domain.Page{}, fmt.Errorf("invalid page index %d", pageIndex)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(pageIndex+1))
	if param := categoriesParam(categories); param != "" {
		query.Set("categories", param)
	}
	path := c.ListPath(kind) + "?" + query.Encode()

	body, err := c.session.AuthenticatedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.Page{}, err
	}

	var resp ListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Page{}, fmt.Errorf("failed to parse %s page %d: %w", kind, pageIndex, err)
	}

	page := MapPage(resp, kind, pageIndex)
	c.logger.Debug("fetched page", "kind", kind, "index", pageIndex, "items", len(page.Items), "count", page.TotalCount)
	return page, nil
}

// Memorize writes the first grade of a queued card
func (c *Client) Memorize(ctx context.Context, cardID string, grade domain.Grade) (*domain.Card, error) {
	return c.patchGrade(ctx, "queued", cardID, grade)
}

// Grade writes the review grade of an outstanding card
func (c *Client) Grade(ctx context.Context, cardID string, grade domain.Grade) (*domain.Card, error) {
	return c.patchGrade(ctx, "scheduled", cardID, grade)
}

// ReviewCrammed writes the review grade of a crammed card
func (c *Client) ReviewCrammed(ctx context.Context, cardID string, grade domain.Grade) (*domain.Card, error) {
	return c.patchGrade(ctx, "cram", cardID, grade)
}

// Forget returns a memorized card to the review schedule
func (c *Client) Forget(ctx context.Context, cardID string) (*domain.Card, error) {
	return c.patch(ctx, c.cardPath("memorized", cardID), forgetRequest{Forget: true})
}

func (c *Client) patchGrade(ctx context.Context, resource, cardID string, grade domain.Grade) (*domain.Card, error) {
	if err := grade.Validate(); err != nil {
		return nil, err
	}
	return c.patch(ctx, c.cardPath(resource, cardID), gradeRequest{Grade: int(grade)})
}

func (c *Client) patch(ctx context.Context, path string, payload any) (*domain.Card, error) {
	body, err := c.session.AuthenticatedRequest(ctx, http.MethodPatch, path, payload)
	if err != nil {
		return nil, err
	}

	var dto CardDTO
	if len(body) > 0 {
		if err := json.Unmarshal(body, &dto); err != nil {
			return nil, fmt.Errorf("failed to parse card: %w", err)
		}
	}

	// The response names the new queue only when the server includes it
	card := MapCard(dto, domain.MembershipUnknown)
	return &card, nil
}

func (c *Client) cardPath(resource, cardID string) string {
	return fmt.Sprintf("/users/%s/cards/%s/%s", url.PathEscape(c.userID), resource, url.PathEscape(cardID))
}

// categoriesParam joins a selection into the list filter parameter.
// Sorted so equal selections produce equal requests.
func categoriesParam(categories []string) string {
	if len(categories) == 0 {
		return ""
	}
	ids := make([]string, 0, len(categories))
	for _, id := range categories {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
