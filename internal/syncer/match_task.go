package syncer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/Valecer/market-sub000/internal"
	"github.com/Valecer/market-sub000/internal/catalog"
	"github.com/Valecer/market-sub000/internal/errs"
	"github.com/Valecer/market-sub000/internal/match"
	"github.com/Valecer/market-sub000/internal/queue"
	"github.com/Valecer/market-sub000/internal/review"
	"github.com/Valecer/market-sub000/internal/storage"
	"github.com/Valecer/market-sub000/internal/util"
)

// Reranker is the optional semantic second pass over fuzzy candidates.
type Reranker interface {
	Rerank(ctx context.Context, itemName string, candidates []internal.MatchCandidate) ([]internal.MatchCandidate, error)
}

// MatchTaskHandler processes one "match:supplier" task: claim a batch of
// unmatched items, match each against the active catalog and persist the
// decisions, all inside a single transaction.
type MatchTaskHandler struct {
	store      *storage.Store
	matcher    *match.Matcher
	classifier match.Classifier
	reranker   Reranker
	reviewTTL  time.Duration
	claimBatch int
	log        zerolog.Logger
}

func NewMatchTaskHandler(store *storage.Store, matcher *match.Matcher, classifier match.Classifier, reranker Reranker, ttl time.Duration, claimBatch int, log zerolog.Logger) *MatchTaskHandler {
	return &MatchTaskHandler{
		store:      store,
		matcher:    matcher,
		classifier: classifier,
		reranker:   reranker,
		reviewTTL:  ttl,
		claimBatch: claimBatch,
		log:        log,
	}
}

func (h *MatchTaskHandler) Handle(ctx context.Context, task internal.Task) error {
	var payload queue.MatchSupplierPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return errs.Validation("bad payload for task %s: %v", task.TaskID, err)
	}
	if payload.SupplierID <= 0 {
		return errs.Validation("task %s: supplier id must be positive, got %d", task.TaskID, payload.SupplierID)
	}

	supplier, err := h.store.GetSupplier(ctx, payload.SupplierID)
	if err != nil {
		return errs.Infra(err, "load supplier %d", payload.SupplierID)
	}

	products, err := h.store.ListActiveProducts(ctx)
	if err != nil {
		return errs.Infra(err, "load active products")
	}
	keyByCategory, err := h.store.CategoryKeyByID(ctx)
	if err != nil {
		return errs.Infra(err, "load category keys")
	}
	idx := catalog.BuildIndex(products)

	var processed, skipped int
	var tally map[internal.Decision]int

	err = h.store.WithTx(ctx, func(tx *storage.Store) error {
		items, err := tx.ClaimUnmatchedBatch(ctx, payload.SupplierID, h.claimBatch)
		if err != nil {
			return errs.Infra(err, "claim items for supplier %d", payload.SupplierID)
		}

		reviews := review.NewQueue(tx, h.reviewTTL, h.log)
		engine := match.NewEngine(tx, reviews, h.matcher.ReviewThreshold(), h.log)
		tally = map[internal.Decision]int{}

		for _, item := range items {
			if item.Name == "" {
				skipped++
				h.log.Warn().Int64("item_id", item.ID).Msg("item with empty name skipped")
				continue
			}

			result, exact := exactNameMatch(idx, item)
			if !exact {
				result = h.matcher.FindMatchesWithBlocking(
					item.Name, item.ID, products, h.classifier, supplier.CategoryHint, keyByCategory)
				result = h.rerank(ctx, item, result)
			}

			decision, err := engine.Apply(ctx, item, result)
			if err != nil {
				// A write failure poisons the transaction; roll everything
				// back and let the retry engine re-run the task. Unwritten
				// items are still unmatched and will be claimed again.
				return err
			}
			tally[decision]++
			processed++
		}
		return nil
	})
	if err != nil {
		if errs.KindOf(err) == errs.KindValidation {
			return err
		}
		return errs.Infra(err, "match batch for supplier %d", payload.SupplierID)
	}

	h.log.Info().
		Int64("supplier_id", payload.SupplierID).
		Str("supplier", supplier.Code).
		Int("processed", processed).
		Int("skipped", skipped).
		Int("auto", tally[internal.DecisionAuto]).
		Int("review", tally[internal.DecisionReview]).
		Int("rejected", tally[internal.DecisionRejected]).
		Int("no_match", tally[internal.DecisionNoMatch]).
		Msg("supplier batch matched")
	return nil
}

// exactNameMatch short-circuits the fuzzy pipeline when the normalized item
// name hits a catalog product exactly. Ambiguous hits (several products with
// the same normalized name) are left to the fuzzy path.
func exactNameMatch(idx *catalog.Index, item internal.Item) (internal.MatchResult, bool) {
	hits := idx.ByName[util.Normalize(item.Name)]
	if len(hits) != 1 {
		return internal.MatchResult{}, false
	}
	p := hits[0]
	score := 100.0
	best := internal.MatchCandidate{ProductID: p.ID, ProductName: p.Name, Score: score, CategoryID: p.CategoryID}
	return internal.MatchResult{
		ItemID:     item.ID,
		Status:     internal.MatchAuto,
		Best:       &best,
		Candidates: []internal.MatchCandidate{best},
		Score:      &score,
	}, true
}

// rerank runs the semantic pass on borderline results only. Any reranker
// failure keeps the fuzzy result.
func (h *MatchTaskHandler) rerank(ctx context.Context, item internal.Item, result internal.MatchResult) internal.MatchResult {
	if h.reranker == nil || result.Status != internal.MatchPotential || len(result.Candidates) == 0 {
		return result
	}
	rescored, err := h.reranker.Rerank(ctx, item.Name, result.Candidates)
	if err != nil {
		h.log.Warn().Err(err).Int64("item_id", item.ID).Msg("semantic rerank failed, keeping fuzzy scores")
		return result
	}
	return h.matcher.FromCandidates(item.ID, rescored)
}
