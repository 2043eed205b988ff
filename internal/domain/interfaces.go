package domain

import "context"

// Session is the authenticated request primitive.
// Implementations own the credential; callers never see or build tokens.
type Session interface {
	// AuthenticatedRequest sends body (JSON-encoded when non-nil) to path,
	// relative to the API base URL, and returns the raw response body.
	// Fails with ErrAuthFailed, ErrServerOffline or *ServerError.
	AuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error)
}

// CategoryFilter exposes the selected category identifiers.
type CategoryFilter interface {
	// Selected returns a copy of the current selection
	Selected() []string

	// Subscribe registers fn for selection changes and returns an unsubscribe func
	Subscribe(fn func(selected []string)) (unsubscribe func())
}

// PageFetcher loads one page of a view. Implementations never retry.
type PageFetcher interface {
	FetchPage(ctx context.Context, kind Kind, pageIndex int, categories []string) (Page, error)
}

// CardWriter performs the remote writes behind review actions.
// Each returns the updated card resource.
type CardWriter interface {
	Memorize(ctx context.Context, cardID string, grade Grade) (*Card, error)
	Grade(ctx context.Context, cardID string, grade Grade) (*Card, error)
	ReviewCrammed(ctx context.Context, cardID string, grade Grade) (*Card, error)
	Forget(ctx context.Context, cardID string) (*Card, error)
}

// AuthResult contains the result of a successful authentication
type AuthResult struct {
	Token    string // Access token for API calls
	UserID   string // User identifier, scopes every card route
	Username string // Display username
}

// AuthFlow obtains credentials for a server.
type AuthFlow interface {
	// Run executes the authentication flow and returns credentials.
	// The serverURL parameter is the API base URL.
	Run(ctx context.Context, serverURL string) (*AuthResult, error)
}
