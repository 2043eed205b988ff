package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mmcdole/recall/internal/domain"
	"github.com/mmcdole/recall/internal/queue"
	"github.com/mmcdole/recall/internal/registry"
	"github.com/mmcdole/recall/internal/search"
)

// printSummary prints the learning progress and the first page of each deck
func printSummary(reg *registry.Registry) {
	p := reg.Progress()
	fmt.Printf("Learning progress: %d scheduled, %d cram, %d queued\n", p.Scheduled, p.Cram, p.Queued)
	fmt.Println()

	for _, deck := range reg.Decks() {
		snap := deck.Queue.Snapshot()
		fmt.Printf("%s (%d)\n", deck.Title, snap.Count)
		printPage(snap, 5)
		fmt.Println()
	}
	fmt.Printf("All cards: %d, memorized: %d\n", reg.All().Snapshot().Count, reg.Memorized().Snapshot().Count)
}

// printPage prints up to limit cards of a snapshot (0 = all)
func printPage(snap domain.QueueSnapshot, limit int) {
	switch {
	case snap.Err != nil:
		fmt.Printf("  failed to load: %v\n", snap.Err)
		return
	case snap.Empty():
		fmt.Println("  No cards")
		return
	}

	for i, c := range snap.CurrentPage {
		if limit > 0 && i >= limit {
			fmt.Printf("  ... %d more\n", len(snap.CurrentPage)-limit)
			break
		}
		fmt.Printf("  %s\n", c.ListText())
	}
}

// parseKind resolves a view name, suggesting the closest one on a typo
func parseKind(name string) (domain.Kind, error) {
	kind := domain.Kind(strings.ToLower(strings.TrimSpace(name)))
	if kind.Valid() {
		return kind, nil
	}

	names := make([]string, len(domain.Kinds))
	for i, k := range domain.Kinds {
		names[i] = string(k)
	}
	if s := search.Suggest(name, names, 3); len(s) > 0 {
		return "", fmt.Errorf("unknown queue %q, did you mean %q?", name, s[0])
	}
	return "", fmt.Errorf("unknown queue %q, expected one of %s", name, strings.Join(names, ", "))
}

// listQueue walks a queue to page (1-based) and prints it
func listQueue(ctx context.Context, reg *registry.Registry, name string, page int, more bool) error {
	kind, err := parseKind(name)
	if err != nil {
		return err
	}
	if page < 1 {
		return fmt.Errorf("page must be at least 1, got %d", page)
	}

	c := reg.Queue(kind)
	snap, err := walkTo(ctx, c, page-1, more)
	if err != nil {
		return err
	}

	fmt.Printf("%s: page %d, %d cards total\n", kind, snap.ActiveIndex+1, snap.Count)
	if snap.ActiveIndex+1 < page {
		fmt.Printf("(queue ends at page %d)\n", snap.ActiveIndex+1)
	}
	printPage(snap, 0)
	return nil
}

// walkTo advances c until index is active, the last page is reached or a fetch fails
func walkTo(ctx context.Context, c *queue.Cache, index int, accumulate bool) (domain.QueueSnapshot, error) {
	snap := c.Snapshot()
	for snap.ActiveIndex < index && !snap.IsLast {
		if accumulate {
			c.LoadMore()
		} else {
			c.NextPage()
		}
		if err := c.Wait(ctx); err != nil {
			return snap, err
		}
		next := c.Snapshot()
		if next.Err != nil {
			return next, fmt.Errorf("loading page %d: %w", next.ActiveIndex+2, next.Err)
		}
		snap = next
	}
	return snap, nil
}

// searchCards fuzzy-filters the cards loaded in every queue
func searchCards(reg *registry.Registry, query string) error {
	views := make([]search.Snapshotter, 0, len(domain.Kinds))
	for _, kind := range domain.Kinds {
		views = append(views, reg.Queue(kind))
	}

	svc := search.NewService(views, nil)
	if results := svc.FilterLoaded(query); len(results) > 0 {
		for _, r := range results {
			fmt.Printf("  [%s] %s\n", r.Kind, r.Title)
		}
		return nil
	}

	// Fall back to matching answers as well as prompts
	ranked := svc.RankLoaded(query)
	if len(ranked) == 0 {
		fmt.Printf("No loaded cards match %q\n", query)
		return nil
	}
	for _, c := range ranked {
		fmt.Printf("  %s  (%s)\n", c.ListText(), c.Membership)
	}
	return nil
}

// parseGrade reads a 0..5 grade
func parseGrade(s string) (domain.Grade, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidGrade, s)
	}
	g := domain.Grade(n)
	return g, g.Validate()
}

// reviewDeck runs an interactive review of a deck until it is empty or the user quits
func reviewDeck(ctx context.Context, reg *registry.Registry, name string, in io.Reader) error {
	kind, err := parseKind(name)
	if err != nil {
		return err
	}
	deck, ok := reg.Deck(kind)
	if !ok {
		return fmt.Errorf("%s cannot be reviewed", kind)
	}

	reader := bufio.NewReader(in)
	fmt.Printf("%s: Enter shows the answer, grade 0-5 records it, q quits.\n", deck.Title)

	for {
		if err := deck.Queue.Wait(ctx); err != nil {
			return err
		}
		snap := deck.Queue.Snapshot()
		if snap.Err != nil {
			return snap.Err
		}
		if len(snap.CurrentPage) == 0 {
			fmt.Println("Nothing left to review.")
			return nil
		}

		card := snap.CurrentPage[0]
		fmt.Println()
		fmt.Println(domain.StripHTML(card.Front))
		if line, err := readLine(reader); err != nil || line == "q" {
			return nil
		}
		fmt.Println(domain.StripHTML(card.Back))
		if card.Example != "" {
			fmt.Printf("  e.g. %s\n", domain.StripHTML(card.Example))
		}

		for {
			fmt.Print("Grade (0-5): ")
			line, err := readLine(reader)
			if err != nil || line == "q" {
				return nil
			}
			grade, err := parseGrade(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if _, err := deck.Review(ctx, card, grade); err != nil {
				return fmt.Errorf("saving grade: %w", err)
			}
			break
		}
	}
}
