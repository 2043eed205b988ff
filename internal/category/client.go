package category

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/mmcdole/recall/internal/domain"
)

// Category is one node of the user's category tree
type Category struct {
	Key      string     `json:"key"`
	Title    string     `json:"title"`
	Children []Category `json:"children,omitempty"`
}

// Tree is the categories endpoint payload
type Tree struct {
	Categories []Category `json:"categories"`
	Selected   []string   `json:"selected_categories"`
}

// Flatten returns every node of the tree, depth first
func (t Tree) Flatten() []Category {
	var out []Category
	var walk func(nodes []Category)
	walk = func(nodes []Category) {
		for _, n := range nodes {
			out = append(out, Category{Key: n.Key, Title: n.Title})
			walk(n.Children)
		}
	}
	walk(t.Categories)
	return out
}

type selectedRequest struct {
	Categories []string `json:"categories"`
}

// Client reads the category tree and persists the selection.
// Creating, renaming and deleting categories is left to the server UI.
type Client struct {
	session domain.Session
	userID  string
	logger  *slog.Logger
}

// NewClient creates a category client scoped to userID
func NewClient(session domain.Session, userID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{session: session, userID: userID, logger: logger}
}

// Fetch returns the category tree and the server-side selection
func (c *Client) Fetch(ctx context.Context) (*Tree, error) {
	path := fmt.Sprintf("/users/%s/categories/", url.PathEscape(c.userID))
	body, err := c.session.AuthenticatedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var tree Tree
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse categories: %w", err)
	}
	tree.Selected = normalize(tree.Selected)
	return &tree, nil
}

// SaveSelected stores the selection on the server
func (c *Client) SaveSelected(ctx context.Context, ids []string) error {
	path := fmt.Sprintf("/users/%s/categories/selected/", url.PathEscape(c.userID))
	if _, err := c.session.AuthenticatedRequest(ctx, http.MethodPut, path, selectedRequest{Categories: normalize(ids)}); err != nil {
		c.logger.Error("failed to save category selection", "error", err)
		return err
	}
	return nil
}
