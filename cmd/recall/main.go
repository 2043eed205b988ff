package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mmcdole/recall/internal/adapter"
	"github.com/mmcdole/recall/internal/adapter/session"
	"github.com/mmcdole/recall/internal/cards"
	"github.com/mmcdole/recall/internal/category"
	"github.com/mmcdole/recall/internal/domain"
	"github.com/mmcdole/recall/internal/queue"
	"github.com/mmcdole/recall/internal/refresh"
	"github.com/mmcdole/recall/internal/registry"
)

// Version is set at build time via -ldflags
var Version = "dev"

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                    \r"

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type options struct {
	login      bool
	logout     bool
	list       string
	page       int
	more       bool
	search     string
	review     string
	watch      bool
	categories string
}

func main() {
	var showVersion bool
	var opts options
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&opts.login, "login", false, "sign in again and store a new token")
	flag.BoolVar(&opts.logout, "logout", false, "forget the stored token")
	flag.StringVar(&opts.list, "list", "", "list a queue: queued, outstanding, cram, memorized or all")
	flag.IntVar(&opts.page, "page", 1, "page to show with -list")
	flag.BoolVar(&opts.more, "more", false, "with -list, show every page up to -page")
	flag.StringVar(&opts.search, "search", "", "fuzzy-search the loaded cards of every queue")
	flag.StringVar(&opts.review, "review", "", "review a deck: outstanding, cram or queued")
	flag.BoolVar(&opts.watch, "watch", false, "keep running and report when due cards change")
	flag.StringVar(&opts.categories, "categories", "", "comma-separated category ids to filter by")
	flag.Parse()

	if showVersion {
		fmt.Printf("recall %s\n", Version)
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, logFile, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	} else {
		defer logFile.Close()
	}
	slog.SetDefault(logger)

	logger.Info("starting recall", "version", Version)

	if opts.logout {
		if err := adapter.ClearServerConfig(); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	}

	if !cfg.IsConfigured() || opts.login {
		return runSetupFlow(cfg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess := session.New(cfg.Server.URL, cfg.Server.Token, logger)
	client := cards.NewClient(sess, cfg.Server.UserID, logger)
	selection := loadSelection(ctx, opts, category.NewClient(sess, cfg.Server.UserID, logger), logger)

	reg := registry.New(client, client, selection,
		registry.WithLogger(logger),
		registry.WithCacheOptions(
			queue.WithPageSize(cfg.Cards.PageSize),
			queue.WithMaxPages(cfg.Cards.MaxPages),
			queue.WithFetchTimeout(cfg.Cards.FetchTimeout),
		),
	)
	defer reg.Close()

	if err := loadWithSpinner(ctx, reg); err != nil {
		return err
	}
	if reg.AuthFailed() {
		return fmt.Errorf("%w: run recall -login to sign in again", domain.ErrAuthFailed)
	}

	switch {
	case opts.list != "":
		return listQueue(ctx, reg, opts.list, opts.page, opts.more)
	case opts.search != "":
		return searchCards(reg, opts.search)
	case opts.review != "":
		return reviewDeck(ctx, reg, opts.review, os.Stdin)
	case opts.watch:
		return watch(ctx, reg, cfg.Refresh.Interval, logger)
	default:
		printSummary(reg)
		return nil
	}
}

// loadSelection seeds the category filter from the flag, or from the server
// when the flag is absent. Failures leave the filter empty.
func loadSelection(ctx context.Context, opts options, client *category.Client, logger *slog.Logger) *category.Selection {
	if opts.categories != "" {
		ids := category.ParseIDs(opts.categories)
		if err := client.SaveSelected(ctx, ids); err != nil {
			logger.Warn("category selection not saved on server", "error", err)
		}
		return category.NewSelection(ids...)
	}

	tree, err := client.Fetch(ctx)
	if err != nil {
		logger.Warn("failed to load category selection", "error", err)
		return category.NewSelection()
	}
	return category.NewSelection(tree.Selected...)
}

// loadWithSpinner mounts every queue while animating a spinner
func loadWithSpinner(ctx context.Context, reg *registry.Registry) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	reg.Load()
	done := make(chan error, 1)
	go func() { done <- reg.Wait(ctx) }()

	frame := 0
	fmt.Printf("\r%s Loading cards...", spinnerFrames[frame])

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			fmt.Print(clearSpinnerLine)
			if err != nil {
				return fmt.Errorf("loading cards: %w", err)
			}
			return nil
		case <-ticker.C:
			frame++
			fmt.Printf("\r%s Loading cards...", spinnerFrames[frame%len(spinnerFrames)])
		}
	}
}

// runSetupFlow handles the initial setup when not configured
func runSetupFlow(cfg *adapter.Config, logger *slog.Logger) error {
	fmt.Println()
	fmt.Println("Welcome to Recall!")
	fmt.Println()

	// An empty answer keeps the configured URL
	serverURL := cfg.Server.URL
	for {
		input, err := session.PromptForServerURL(os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
		if input != "" {
			serverURL = input
		}
		if serverURL == "" {
			fmt.Println("Server URL cannot be empty. Please try again.")
			continue
		}
		break
	}
	cfg.Server.URL = serverURL
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := session.NewAuthFlow(logger).Run(ctx, serverURL)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	cfg.Server.Token = result.Token
	cfg.Server.UserID = result.UserID
	cfg.Server.Username = result.Username

	if err := adapter.SaveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ Configuration saved!")
	fmt.Println()
	fmt.Println("Run recall again to see your queues.")
	return nil
}

// watch reports due-card changes until interrupted
func watch(ctx context.Context, reg *registry.Registry, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		return errors.New("refresh.interval must be positive to watch")
	}

	r := refresh.New(reg.Outstanding(), interval, logger)
	if err := r.Start(); err != nil {
		return err
	}
	defer r.Stop()

	last := reg.Outstanding().Snapshot().Count
	fmt.Printf("Watching due cards every %s (Ctrl+C to stop). %d due now.\n", interval, last)

	changes := make(chan domain.QueueSnapshot, 1)
	unsubscribe := reg.Outstanding().Subscribe(func(s domain.QueueSnapshot) {
		offerLatest(changes, s)
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case s := <-changes:
			if s.IsLoading {
				continue
			}
			if s.Err != nil {
				fmt.Printf("%s  refresh failed: %v\n", time.Now().Format("15:04"), s.Err)
				continue
			}
			if s.Count == last {
				continue
			}
			fmt.Printf("%s  %d due (was %d)\n", time.Now().Format("15:04"), s.Count, last)
			last = s.Count
		}
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// offerLatest puts s in the one-slot channel ch, replacing an unread value
func offerLatest(ch chan domain.QueueSnapshot, s domain.QueueSnapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
