package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"dwelligence/internal/geo"
	"dwelligence/internal/model"
	"dwelligence/internal/utils"

	"github.com/phuslu/log"
)

const (
	// MissingCommuteSeconds stands in for an unknown commute so such
	// candidates sort after every candidate with a known one.
	MissingCommuteSeconds = 999999
	// NeutralReason is attached when no model-written reason is available.
	NeutralReason = "Matched your search criteria"
)

const rankSystemPrompt = `You are a real estate search assistant. You rank housing candidates for a user and answer with a JSON array only.`

const rankPromptTemplate = `Rank these properties from best to worst match for the user's query.

User query: %q
%s

Properties:
%s

Ranking criteria:
1. Match to query requirements (bedrooms, price, amenities)
2. Commute time (if a workplace is set and the user cares about commute)
3. Price (prefer better value)

Return ONLY a JSON array of property ids in ranked order with a brief reason for each:
[{"id": 1, "reason": "Best transit access and within budget"}, {"id": 5, "reason": "Shorter commute, slightly over budget"}]`

type rankInput struct {
	ID                  int64   `json:"id"`
	Price               float64 `json:"price"`
	Bedrooms            int     `json:"bedrooms"`
	Bathrooms           float64 `json:"bathrooms"`
	Address             string  `json:"address"`
	CommuteDuration     *int    `json:"commuteDuration"`
	CommuteDurationText *string `json:"commuteDurationText"`
}

type rankPick struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// Ranker orders candidates, by model judgement when a completer is set
// and by a weighted score otherwise.
type Ranker struct {
	weightTime    float64
	weightPrice   float64
	maxCandidates int
	completer     Completer
}

// NewRanker creates a new ranker with specified weights
func NewRanker(weightTime, weightPrice float64, maxCandidates int, completer Completer) *Ranker {
	if maxCandidates <= 0 {
		maxCandidates = 50
	}
	return &Ranker{
		weightTime:    weightTime,
		weightPrice:   weightPrice,
		maxCandidates: maxCandidates,
		completer:     completer,
	}
}

// Score is the deterministic key; lower is better. Without a destination
// price alone decides.
func (r *Ranker) Score(c *model.RankedCandidate, hasDestination bool) float64 {
	if !hasDestination {
		return c.Price
	}
	secs := MissingCommuteSeconds
	if c.Commute != nil && c.Commute.OK() {
		secs = c.Commute.Duration
	}
	return r.weightTime*float64(secs)/60 + r.weightPrice*c.Price
}

// SortByScore scores cands in place and orders them by score then id.
func (r *Ranker) SortByScore(cands []model.RankedCandidate, hasDestination bool) {
	for i := range cands {
		cands[i].Score = r.Score(&cands[i], hasDestination)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score < cands[j].Score
		}
		return cands[i].ID < cands[j].ID
	})
}

// Rank returns at most limit candidates and the method that ordered them.
// The model only ever sees the best maxCandidates by score, and its output
// can reorder and drop candidates but never add one.
func (r *Ranker) Rank(ctx context.Context, cands []model.RankedCandidate, query string, destination *geo.Point, limit int) ([]model.RankedCandidate, string) {
	ordered := make([]model.RankedCandidate, len(cands))
	copy(ordered, cands)
	r.SortByScore(ordered, destination != nil)

	if r.completer == nil || len(ordered) == 0 {
		return fallbackOrder(ordered, limit), model.RankedByScore
	}

	pool := ordered[:min(len(ordered), r.maxCandidates)]
	picks, err := r.askModel(ctx, pool, query, destination)
	if err != nil {
		log.Warn().Err(err).Int("candidates", len(pool)).Msg("model ranking failed, using score order")
		return fallbackOrder(ordered, limit), model.RankedByScore
	}

	projected := project(pool, picks, limit)
	if len(projected) == 0 {
		log.Warn().Int("picks", len(picks)).Msg("model ranking matched no candidates, using score order")
		return fallbackOrder(ordered, limit), model.RankedByScore
	}
	return projected, model.RankedByAI
}

func (r *Ranker) askModel(ctx context.Context, pool []model.RankedCandidate, query string, destination *geo.Point) ([]rankPick, error) {
	inputs := make([]rankInput, len(pool))
	for i, c := range pool {
		inputs[i] = rankInput{
			ID:        c.ID,
			Price:     c.Price,
			Bedrooms:  c.Bedrooms,
			Bathrooms: c.Bathrooms,
			Address:   c.Address,
		}
		if c.Commute != nil && c.Commute.OK() {
			d, text := c.Commute.Duration, c.Commute.DurationText
			inputs[i].CommuteDuration, inputs[i].CommuteDurationText = &d, &text
		}
	}
	list, err := utils.CompactJSON(inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode candidates: %w", err)
	}

	workplace := "No workplace set"
	if destination != nil {
		workplace = "Workplace location: " + destination.String()
	}

	raw, err := r.completer.Complete(ctx, rankSystemPrompt, fmt.Sprintf(rankPromptTemplate, query, workplace, list))
	if err != nil {
		return nil, upstreamError("ranking", err)
	}

	extracted, err := utils.ExtractJSON(raw)
	if err != nil {
		return nil, &ParseError{Content: raw, Err: err}
	}
	var picks []rankPick
	if err := json.Unmarshal([]byte(extracted), &picks); err != nil {
		return nil, &ParseError{Content: raw, Err: err}
	}
	return picks, nil
}

// project keeps the model's order over ids present in pool, ignoring
// unknown ids and repeats.
func project(pool []model.RankedCandidate, picks []rankPick, limit int) []model.RankedCandidate {
	byID := make(map[int64]int, len(pool))
	for i := range pool {
		byID[pool[i].ID] = i
	}

	seen := make(map[int64]bool, len(picks))
	out := make([]model.RankedCandidate, 0, len(picks))
	for _, p := range picks {
		idx, ok := byID[p.ID]
		if !ok || seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		c := pool[idx]
		c.Reason = strings.TrimSpace(p.Reason)
		if c.Reason == "" {
			c.Reason = NeutralReason
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func fallbackOrder(ordered []model.RankedCandidate, limit int) []model.RankedCandidate {
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	for i := range ordered {
		ordered[i].Reason = NeutralReason
	}
	return ordered
}
