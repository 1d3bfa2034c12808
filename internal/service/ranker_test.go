package service

import (
	"context"
	"errors"
	"testing"

	"dwelligence/internal/geo"
	"dwelligence/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(id int64, price float64, commuteSecs int) model.RankedCandidate {
	c := model.RankedCandidate{Listing: model.Listing{ID: id, Price: price}}
	if commuteSecs > 0 {
		c.Commute = &model.CommuteResult{PropertyID: id, Duration: commuteSecs}
	}
	return c
}

func ids(cands []model.RankedCandidate) []int64 {
	out := make([]int64, len(cands))
	for i, c := range cands {
		out[i] = c.ID
	}
	return out
}

var testWorkplace = &geo.Point{Lat: 49.28, Lng: -123.12}

func TestRanker_Score(t *testing.T) {
	r := NewRanker(0.5, 0.5, 50, nil)

	c := candidate(1, 2000, 1200)
	assert.InDelta(t, 0.5*20+0.5*2000, r.Score(&c, true), 1e-9)
	assert.Equal(t, 2000.0, r.Score(&c, false))

	missing := candidate(2, 2000, 0)
	assert.InDelta(t, 0.5*float64(MissingCommuteSeconds)/60+1000, r.Score(&missing, true), 1e-9)

	failed := candidate(3, 2000, 0)
	failed.Commute = &model.CommuteResult{PropertyID: 3, Error: model.CommuteUnavailable, Status: "ZERO_RESULTS"}
	assert.Equal(t, r.Score(&missing, true), r.Score(&failed, true))
}

func TestRanker_SortByScoreDeterministic(t *testing.T) {
	r := NewRanker(0.5, 0.5, 50, nil)
	cands := []model.RankedCandidate{
		candidate(4, 1500, 0),
		candidate(3, 1500, 600),
		candidate(1, 1500, 600),
		candidate(2, 1480, 1800),
	}

	r.SortByScore(cands, true)
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(cands))

	again := []model.RankedCandidate{cands[3], cands[1], cands[2], cands[0]}
	r.SortByScore(again, true)
	assert.Equal(t, ids(cands), ids(again))

	r.SortByScore(cands, false)
	assert.Equal(t, []int64{2, 1, 3, 4}, ids(cands))
}

func TestRanker_RankWithoutCompleter(t *testing.T) {
	r := NewRanker(0.5, 0.5, 50, nil)
	cands := []model.RankedCandidate{candidate(2, 3000, 0), candidate(1, 1000, 0), candidate(3, 2000, 0)}

	out, method := r.Rank(context.Background(), cands, "anything", nil, 2)
	assert.Equal(t, model.RankedByScore, method)
	assert.Equal(t, []int64{1, 3}, ids(out))
	for _, c := range out {
		assert.Equal(t, NeutralReason, c.Reason)
	}
	assert.Equal(t, int64(2), cands[0].ID, "input must not be reordered")
}

func TestRanker_RankProjection(t *testing.T) {
	c := &fakeCompleter{responses: []string{
		"```json\n" + `[{"id":3,"reason":"closest to work"},{"id":99,"reason":"invented"},{"id":3,"reason":"again"},{"id":1,"reason":""}]` + "\n```",
	}}
	r := NewRanker(0.5, 0.5, 50, c)
	cands := []model.RankedCandidate{candidate(1, 1000, 900), candidate(2, 1100, 900), candidate(3, 1200, 300)}

	out, method := r.Rank(context.Background(), cands, "quiet place", testWorkplace, 10)
	require.Equal(t, model.RankedByAI, method)
	assert.Equal(t, []int64{3, 1}, ids(out))
	assert.Equal(t, "closest to work", out[0].Reason)
	assert.Equal(t, NeutralReason, out[1].Reason)
	assert.Contains(t, c.prompts[0], "Workplace location")
}

func TestRanker_RankCapsCandidates(t *testing.T) {
	c := &fakeCompleter{responses: []string{`[{"id":5},{"id":1}]`}}
	r := NewRanker(0.5, 0.5, 2, c)
	cands := []model.RankedCandidate{
		candidate(5, 5000, 0), candidate(1, 1000, 0), candidate(2, 2000, 0),
	}

	out, method := r.Rank(context.Background(), cands, "q", nil, 10)
	assert.Equal(t, model.RankedByAI, method)
	// 5 is outside the best two by score so the model never saw it.
	assert.Equal(t, []int64{1}, ids(out))
	assert.Contains(t, c.prompts[0], `"id":1,`)
	assert.NotContains(t, c.prompts[0], `"id":5,`)
}

func TestRanker_RankFallback(t *testing.T) {
	cands := []model.RankedCandidate{candidate(2, 2000, 0), candidate(1, 1000, 0)}

	tests := []struct {
		name      string
		completer *fakeCompleter
	}{
		{"provider error", &fakeCompleter{err: errors.New("timeout")}},
		{"unparseable", &fakeCompleter{responses: []string{"I think number 2 is best"}}},
		{"no known ids", &fakeCompleter{responses: []string{`[{"id":42,"reason":"x"}]`}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRanker(0.5, 0.5, 50, tt.completer)
			out, method := r.Rank(context.Background(), cands, "q", nil, 5)
			assert.Equal(t, model.RankedByScore, method)
			assert.Equal(t, []int64{1, 2}, ids(out))
			assert.Equal(t, NeutralReason, out[0].Reason)
		})
	}
}
