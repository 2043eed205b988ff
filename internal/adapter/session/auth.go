package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/mmcdole/recall/internal/domain"
	"golang.org/x/term"
)

// Credentials is the login endpoint request body
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthFlow implements domain.AuthFlow with username/password token login
type AuthFlow struct {
	logger *slog.Logger
	in     io.Reader
	out    io.Writer

	// readPassword reads a line without echo; swapped out in tests
	readPassword func() (string, error)
}

// NewAuthFlow creates a terminal authentication flow
func NewAuthFlow(logger *slog.Logger) *AuthFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthFlow{
		logger: logger,
		in:     os.Stdin,
		out:    os.Stdout,
		readPassword: func() (string, error) {
			b, err := term.ReadPassword(int(syscall.Stdin))
			return string(b), err
		},
	}
}

// Run prompts for credentials, exchanges them for a token and resolves the user.
func (f *AuthFlow) Run(ctx context.Context, serverURL string) (*domain.AuthResult, error) {
	fmt.Fprintln(f.out)
	fmt.Fprintln(f.out, "Recall Authentication")
	fmt.Fprintln(f.out, "━━━━━━━━━━━━━━━━━━━━━")

	reader := bufio.NewReader(f.in)
	fmt.Fprint(f.out, "Username: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read username: %w", err)
	}
	username = strings.TrimSpace(username)

	// Prompt for password (hidden input)
	fmt.Fprint(f.out, "Password: ")
	password, err := f.readPassword()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(f.out)

	fmt.Fprintln(f.out)
	fmt.Fprintln(f.out, "Authenticating...")

	result, err := f.authenticate(ctx, serverURL, Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(f.out)
	fmt.Fprintf(f.out, "Signed in as %s\n", result.Username)

	return result, nil
}

func (f *AuthFlow) authenticate(ctx context.Context, serverURL string, creds Credentials) (*domain.AuthResult, error) {
	s := New(serverURL, "", f.logger)
	if err := s.Authenticate(ctx, LoginPath, creds); err != nil {
		f.logger.Error("login failed", "error", err, "username", creds.Username)
		// Bad credentials come back as 400 from the token endpoint
		if domain.IsServerError(err) {
			return nil, fmt.Errorf("%w: %w", domain.ErrAuthFailed, err)
		}
		return nil, err
	}

	user, err := s.CurrentUser(ctx)
	if err != nil {
		f.logger.Error("failed to resolve current user", "error", err)
		return nil, err
	}

	username := user.Username
	if username == "" {
		username = creds.Username
	}

	return &domain.AuthResult{
		Token:    s.Token(),
		UserID:   user.ID,
		Username: username,
	}, nil
}

// PromptForServerURL prompts the user to enter the API base URL
func PromptForServerURL(in io.Reader, out io.Writer) (string, error) {
	reader := bufio.NewReader(in)
	fmt.Fprint(out, "Enter the API base URL (e.g., http://localhost:8000/api): ")
	url, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(url), nil
}
