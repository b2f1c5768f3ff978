package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmtriage/internal/models"
)

func newTestPipeline(t *testing.T, ids ...string) *StatusPipeline {
	t.Helper()
	p, err := NewStatusPipeline([]string{"new", "inProgress", "resolved"})
	require.NoError(t, err)
	for _, id := range ids {
		require.NoError(t, p.Insert(id, "new"))
	}
	return p
}

func TestNewStatusPipeline_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		states []string
	}{
		{name: "too few", states: []string{"new"}},
		{name: "blank state", states: []string{"new", " "}},
		{name: "duplicate", states: []string{"new", "new"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewStatusPipeline(tc.states)
			var vErr *ValidationError
			assert.True(t, errors.As(err, &vErr))
		})
	}
}

func TestStatusPipeline_InitialAndSecond(t *testing.T) {
	p := newTestPipeline(t)

	assert.Equal(t, "new", p.Initial())
	assert.Equal(t, "inProgress", p.Second())
	assert.Equal(t, 2, p.IndexOf("resolved"))
	assert.Equal(t, -1, p.IndexOf("sold"))
}

func TestStatusPipeline_MoveAcrossBuckets(t *testing.T) {
	p := newTestPipeline(t, "a", "b", "c")
	require.NoError(t, p.Insert("d", "inProgress"))

	// Setup: a goes to the front of inProgress
	moved, err := p.Move("a", "inProgress", 0)

	// Verify
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []string{"b", "c"}, p.Bucket("new"))
	assert.Equal(t, []string{"a", "d"}, p.Bucket("inProgress"))

	state, index, ok := p.Position("a")
	assert.True(t, ok)
	assert.Equal(t, "inProgress", state)
	assert.Equal(t, 0, index)
}

func TestStatusPipeline_MoveAppendIndexGoesToTail(t *testing.T) {
	p := newTestPipeline(t, "a", "b")
	require.NoError(t, p.Insert("x", "resolved"))

	_, err := p.Move("a", "resolved", models.AppendIndex)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "a"}, p.Bucket("resolved"))

	_, err = p.Move("b", "resolved", 99)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "a", "b"}, p.Bucket("resolved"))
}

func TestStatusPipeline_ReorderWithinBucket(t *testing.T) {
	p := newTestPipeline(t, "a", "b", "c")

	moved, err := p.Move("a", "new", 2)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []string{"b", "c", "a"}, p.Bucket("new"))

	moved, err = p.Move("a", "new", 0)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []string{"a", "b", "c"}, p.Bucket("new"))
}

func TestStatusPipeline_MoveOntoSamePositionIsNoOp(t *testing.T) {
	p := newTestPipeline(t, "a", "b")

	moved, err := p.Move("b", "new", models.AppendIndex)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = p.Move("a", "new", 0)
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, []string{"a", "b"}, p.Bucket("new"))
}

func TestStatusPipeline_MoveErrors(t *testing.T) {
	p := newTestPipeline(t, "a")

	_, err := p.Move("a", "sold", 0)
	var stateErr *InvalidStateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, "sold", stateErr.State)
	assert.Equal(t, []string{"new", "inProgress", "resolved"}, stateErr.Allowed)

	_, err = p.Move("missing", "new", 0)
	var nfErr *NotFoundError
	assert.True(t, errors.As(err, &nfErr))
}

func TestStatusPipeline_EveryMessageInExactlyOneBucket(t *testing.T) {
	p := newTestPipeline(t, "a", "b", "c", "d")
	moves := []struct {
		id, target string
		index      int
	}{
		{"a", "inProgress", 0},
		{"b", "resolved", models.AppendIndex},
		{"c", "inProgress", 0},
		{"a", "new", 1},
		{"d", "resolved", 0},
		{"c", "inProgress", 5},
	}
	for _, m := range moves {
		_, err := p.Move(m.id, m.target, m.index)
		require.NoError(t, err)
	}

	seen := map[string]int{}
	for _, state := range p.States() {
		for _, id := range p.Bucket(state) {
			seen[id]++
		}
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1, "d": 1}, seen)
	assert.Len(t, p.Ordered(), 4)
	assert.Equal(t, map[string]int{"new": 1, "inProgress": 1, "resolved": 2}, p.BucketSizes())
}

func TestStatusPipeline_InsertDuplicate(t *testing.T) {
	p := newTestPipeline(t, "a")

	err := p.Insert("a", "resolved")
	var cErr *ConflictError
	assert.True(t, errors.As(err, &cErr))
}

func TestPipelineFor(t *testing.T) {
	p, err := PipelineFor("Admin", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "inProgress", "waiting", "resolved"}, p.States())

	p, err = PipelineFor("support", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPipelineStates(), p.States())

	p, err = PipelineFor("brand", []string{"open", "closed"})
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "closed"}, p.States())
}
