// Package semantic rescores fuzzy match candidates with an LLM. It is an
// optional second pass: every failure path falls back to the fuzzy scores.
package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/Valecer/market-sub000/internal"
)

const systemPrompt = `You compare a supplier price-list item against candidate catalog products.
For each candidate return how confident you are (0-100) that it is the same physical product.
Respond with a JSON array only: [{"productId": <id>, "score": <0-100>}].`

type rankedCandidate struct {
	ProductID int64   `json:"productId"`
	Score     float64 `json:"score"`
}

type Reranker struct {
	client  *openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	limiter *RateLimiter
	log     zerolog.Logger
}

func NewReranker(apiKey, model string, requestsPerSecond int, log zerolog.Logger) *Reranker {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "semantic-rerank",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return &Reranker{
		client:  openai.NewClient(apiKey),
		model:   model,
		breaker: breaker,
		limiter: NewRateLimiter(requestsPerSecond),
		log:     log,
	}
}

// Rerank asks the model to rescore candidates against the item name.
// Candidates the model does not mention keep their fuzzy score.
func (r *Reranker) Rerank(ctx context.Context, itemName string, candidates []internal.MatchCandidate) ([]internal.MatchCandidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	r.limiter.WaitTurn()

	payload, err := json.Marshal(struct {
		Item       string                    `json:"item"`
		Candidates []internal.MatchCandidate `json:"candidates"`
	}{Item: itemName, Candidates: candidates})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	raw, err := r.breaker.Execute(func() (interface{}, error) {
		resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       r.model,
			Temperature: 0,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: string(payload)},
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("empty completion")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return nil, fmt.Errorf("rerank completion: %w", err)
	}

	ranked, err := parseRanking(raw.(string))
	if err != nil {
		return nil, err
	}

	scores := make(map[int64]float64, len(ranked))
	for _, rc := range ranked {
		if rc.Score < 0 {
			rc.Score = 0
		}
		if rc.Score > 100 {
			rc.Score = 100
		}
		scores[rc.ProductID] = rc.Score
	}

	out := make([]internal.MatchCandidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		if score, ok := scores[out[i].ProductID]; ok {
			out[i].Score = score
		}
	}
	return out, nil
}

func parseRanking(content string) ([]rankedCandidate, error) {
	content = strings.TrimSpace(content)
	// Models occasionally wrap the array in a markdown fence.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var ranked []rankedCandidate
	if err := json.Unmarshal([]byte(content), &ranked); err != nil {
		return nil, fmt.Errorf("parse rerank response: %w", err)
	}
	return ranked, nil
}
