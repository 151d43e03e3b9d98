package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSharedRunState_Assigned(t *testing.T) {
	s := NewSharedRunState(7)
	assert.False(t, s.Assigned())
	s.RunID = 42
	assert.True(t, s.Assigned())
}

func TestMergeCaseIDs_EmptyBaselineTakesCallerSet(t *testing.T) {
	s := NewSharedRunState(7)
	s.MergeCaseIDs([]int64{3, 1, 2, 1})
	assert.Equal(t, []int64{1, 2, 3}, s.CaseIDs)
}

func TestMergeCaseIDs_Union(t *testing.T) {
	s := NewSharedRunState(7)
	s.MergeCaseIDs([]int64{1, 2})
	s.MergeCaseIDs([]int64{2, 3, 4})
	assert.Equal(t, []int64{1, 2, 3, 4}, s.CaseIDs)
}

func TestMergeCaseIDs_MergingNothingKeepsSet(t *testing.T) {
	s := NewSharedRunState(7)
	s.MergeCaseIDs([]int64{5, 6})
	s.MergeCaseIDs(nil)
	assert.Equal(t, []int64{5, 6}, s.CaseIDs)
}
