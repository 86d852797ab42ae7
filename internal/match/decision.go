package match

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Valecer/market-sub000/internal"
)

type ItemStore interface {
	GetItem(ctx context.Context, id int64) (internal.Item, error)
	LinkItem(ctx context.Context, itemID, productID int64, status internal.MatchStatus, score *float64) error
	MarkPotential(ctx context.Context, itemID int64, score float64) error
	UnlinkItem(ctx context.Context, itemID int64) error
	CreateDraftProduct(ctx context.Context, name string) (internal.Product, error)
}

type ReviewQueue interface {
	Create(ctx context.Context, itemID int64, candidates []internal.MatchCandidate) (internal.ReviewEntry, error)
	Approve(ctx context.Context, entryID int64) (internal.ReviewEntry, error)
	Reject(ctx context.Context, entryID int64) (internal.ReviewEntry, error)
}

// Engine turns a MatchResult into persisted state: auto links, pending
// review entries, or audit events for rejected and unmatched items.
type Engine struct {
	store           ItemStore
	reviews         ReviewQueue
	reviewThreshold float64
	log             zerolog.Logger
}

func NewEngine(store ItemStore, reviews ReviewQueue, reviewThreshold float64, log zerolog.Logger) *Engine {
	return &Engine{store: store, reviews: reviews, reviewThreshold: reviewThreshold, log: log}
}

func (e *Engine) Apply(ctx context.Context, item internal.Item, result internal.MatchResult) (internal.Decision, error) {
	// Re-processing a verified item is a no-op skip, not a re-match.
	if item.MatchStatus == internal.MatchVerified {
		e.log.Debug().Int64("item_id", item.ID).Msg("item already verified, skipping")
		return internal.DecisionNoMatch, nil
	}

	if len(result.Candidates) == 0 {
		e.log.Info().
			Int64("item_id", item.ID).
			Str("item_name", item.Name).
			Msg("no match candidates found")
		return internal.DecisionNoMatch, nil
	}

	best := result.Candidates[0]
	switch result.Status {
	case internal.MatchAuto:
		if err := e.store.LinkItem(ctx, item.ID, best.ProductID, internal.MatchAuto, &best.Score); err != nil {
			return internal.DecisionError, fmt.Errorf("link item %d: %w", item.ID, err)
		}
		e.log.Info().
			Int64("item_id", item.ID).
			Int64("product_id", best.ProductID).
			Float64("score", best.Score).
			Msg("auto matched")
		return internal.DecisionAuto, nil

	case internal.MatchPotential:
		if _, err := e.reviews.Create(ctx, item.ID, result.Candidates); err != nil {
			return internal.DecisionError, fmt.Errorf("create review entry for item %d: %w", item.ID, err)
		}
		if err := e.store.MarkPotential(ctx, item.ID, best.Score); err != nil {
			return internal.DecisionError, fmt.Errorf("mark item %d potential: %w", item.ID, err)
		}
		return internal.DecisionReview, nil

	default:
		// Below the review threshold: no link, but the decision is recorded
		// rather than silently skipped.
		e.log.Warn().
			Int64("item_id", item.ID).
			Str("item_name", item.Name).
			Float64("score", best.Score).
			Float64("review_threshold", e.reviewThreshold).
			Msg("best candidate rejected: low confidence")
		return internal.DecisionRejected, nil
	}
}

// Link force-links an item to a product, independent of scoring.
func (e *Engine) Link(ctx context.Context, itemID, productID int64) error {
	return e.store.LinkItem(ctx, itemID, productID, internal.MatchVerified, nil)
}

// Unlink clears the product link and resets the item to unmatched.
func (e *Engine) Unlink(ctx context.Context, itemID int64) error {
	return e.store.UnlinkItem(ctx, itemID)
}

// ApproveMatch promotes a pending review entry: the entry becomes approved
// and the item is verified against the chosen product. A zero productID
// picks the entry's best candidate.
func (e *Engine) ApproveMatch(ctx context.Context, entryID, productID int64) error {
	entry, err := e.reviews.Approve(ctx, entryID)
	if err != nil {
		return err
	}
	if productID == 0 {
		if len(entry.Candidates) == 0 {
			return fmt.Errorf("review entry %d has no candidates", entryID)
		}
		productID = entry.Candidates[0].ProductID
	}
	return e.store.LinkItem(ctx, entry.ItemID, productID, internal.MatchVerified, nil)
}

// RejectMatch marks the entry rejected and still produces a usable outcome:
// a new draft product is created and the item verified against it, so
// rejected items are never left dangling.
func (e *Engine) RejectMatch(ctx context.Context, entryID int64) error {
	entry, err := e.reviews.Reject(ctx, entryID)
	if err != nil {
		return err
	}
	item, err := e.store.GetItem(ctx, entry.ItemID)
	if err != nil {
		return err
	}
	product, err := e.store.CreateDraftProduct(ctx, item.Name)
	if err != nil {
		return fmt.Errorf("create draft product for item %d: %w", item.ID, err)
	}
	return e.store.LinkItem(ctx, item.ID, product.ID, internal.MatchVerified, nil)
}
