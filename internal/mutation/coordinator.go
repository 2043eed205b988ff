package mutation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmcdole/recall/internal/domain"
)

// Action is a review write that moves a card between queues
type Action int

const (
	ActionMemorize Action = iota
	ActionGrade
	ActionReviewCrammed
	ActionForget
)

// String returns a human-readable representation of the action
func (a Action) String() string {
	switch a {
	case ActionMemorize:
		return "memorize"
	case ActionGrade:
		return "grade"
	case ActionReviewCrammed:
		return "reviewCrammed"
	case ActionForget:
		return "forget"
	default:
		return "unknown"
	}
}

// Source returns the queue a card must be in for the action to apply
func (a Action) Source() domain.Membership {
	switch a {
	case ActionMemorize:
		return domain.MembershipQueued
	case ActionGrade:
		return domain.MembershipOutstanding
	case ActionReviewCrammed:
		return domain.MembershipCram
	case ActionForget:
		return domain.MembershipMemorized
	default:
		return domain.MembershipUnknown
	}
}

// Invalidates lists the views reset after a successful action. The server
// decides where a card lands, so every view it could leave or enter is reset.
func (a Action) Invalidates() []domain.Kind {
	switch a {
	case ActionMemorize:
		return []domain.Kind{domain.KindQueued, domain.KindOutstanding, domain.KindMemorized, domain.KindAll}
	case ActionGrade:
		return []domain.Kind{domain.KindOutstanding, domain.KindMemorized, domain.KindAll}
	case ActionReviewCrammed:
		return []domain.Kind{domain.KindCram}
	case ActionForget:
		return []domain.Kind{domain.KindMemorized, domain.KindOutstanding, domain.KindAll}
	default:
		return nil
	}
}

// Resetter is a cache that can be sent back to its first page
type Resetter interface {
	GoToFirst()
}

// Coordinator performs review writes and reconciles the affected caches.
// Caches are only reset after the server acknowledges a write; a failed
// write leaves every cache untouched.
type Coordinator struct {
	writer domain.CardWriter
	caches map[domain.Kind]Resetter
	logger *slog.Logger
}

// NewCoordinator creates a coordinator resetting caches after writes
func NewCoordinator(writer domain.CardWriter, caches map[domain.Kind]Resetter, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{writer: writer, caches: caches, logger: logger}
}

// Memorize grades a queued card for the first time
func (c *Coordinator) Memorize(ctx context.Context, card domain.Card, grade domain.Grade) (*domain.Card, error) {
	return c.apply(ctx, ActionMemorize, card, grade, func() (*domain.Card, error) {
		return c.writer.Memorize(ctx, card.ID, grade)
	})
}

// Grade records a review of an outstanding card
func (c *Coordinator) Grade(ctx context.Context, card domain.Card, grade domain.Grade) (*domain.Card, error) {
	return c.apply(ctx, ActionGrade, card, grade, func() (*domain.Card, error) {
		return c.writer.Grade(ctx, card.ID, grade)
	})
}

// ReviewCrammed records a review of a crammed card
func (c *Coordinator) ReviewCrammed(ctx context.Context, card domain.Card, grade domain.Grade) (*domain.Card, error) {
	return c.apply(ctx, ActionReviewCrammed, card, grade, func() (*domain.Card, error) {
		return c.writer.ReviewCrammed(ctx, card.ID, grade)
	})
}

// Forget sends a memorized card back to the review schedule
func (c *Coordinator) Forget(ctx context.Context, card domain.Card) (*domain.Card, error) {
	if err := c.checkSource(ActionForget, card); err != nil {
		return nil, err
	}
	updated, err := c.writer.Forget(ctx, card.ID)
	if err != nil {
		c.logger.Error("card write failed", "error", err, "action", ActionForget, "card", card.ID)
		return nil, err
	}
	c.invalidate(ActionForget, card.ID)
	return updated, nil
}

func (c *Coordinator) apply(ctx context.Context, action Action, card domain.Card, grade domain.Grade, write func() (*domain.Card, error)) (*domain.Card, error) {
	if err := grade.Validate(); err != nil {
		return nil, err
	}
	if err := c.checkSource(action, card); err != nil {
		return nil, err
	}

	updated, err := write()
	if err != nil {
		c.logger.Error("card write failed", "error", err, "action", action, "card", card.ID, "grade", int(grade))
		return nil, err
	}

	c.invalidate(action, card.ID)
	return updated, nil
}

// checkSource rejects cards listed in a different queue. Cards of unknown
// membership pass; the server is the judge.
func (c *Coordinator) checkSource(action Action, card domain.Card) error {
	if card.ID == "" {
		return fmt.Errorf("%s: card has no identifier", action)
	}
	if card.Membership == domain.MembershipUnknown || card.Membership == action.Source() {
		return nil
	}
	return fmt.Errorf("%w: %s needs a %s card, got %s", domain.ErrWrongQueue, action, action.Source(), card.Membership)
}

func (c *Coordinator) invalidate(action Action, cardID string) {
	kinds := action.Invalidates()
	for _, kind := range kinds {
		if cache, ok := c.caches[kind]; ok && cache != nil {
			cache.GoToFirst()
		}
	}
	c.logger.Info("card updated", "action", action, "card", cardID, "invalidated", kinds)
}
