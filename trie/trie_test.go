package trie_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-evhcore/trie"
)

func TestLiteralMatch(t *testing.T) {
	m, err := trie.New([]trie.Pattern{
		{ID: 1, Value: "cat", CaseSensitive: true},
	}, trie.Config{})
	require.NoError(t, err)

	matches := make([]trie.Match, 4)
	n, err := m.Scan([]byte("a cat sat"), matches)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, trie.Match{PatternID: 1, Start: 2, End: 5}, matches[0])
}

func TestCaseInsensitiveMatch(t *testing.T) {
	m, err := trie.New([]trie.Pattern{
		{ID: 1, Value: "cat", CaseSensitive: false},
	}, trie.Config{})
	require.NoError(t, err)

	matches := make([]trie.Match, 4)
	n, err := m.Scan([]byte("a CAT sat"), matches)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 2, matches[0].Start)
	require.Equal(t, 5, matches[0].End)
}

func TestCaseSensitivePatternDoesNotMatchDifferentCase(t *testing.T) {
	m, err := trie.New([]trie.Pattern{
		{ID: 1, Value: "cat", CaseSensitive: true},
	}, trie.Config{})
	require.NoError(t, err)

	matches := make([]trie.Match, 4)
	n, err := m.Scan([]byte("a CAT sat"), matches)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestSingleWildcard(t *testing.T) {
	m, err := trie.New([]trie.Pattern{
		{ID: 1, Value: "c.t", CaseSensitive: true},
	}, trie.Config{})
	require.NoError(t, err)

	matches := make([]trie.Match, 4)
	n, err := m.Scan([]byte("cat cot c_t"), matches)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestMultiWildcardWithinBudget(t *testing.T) {
	m, err := trie.New([]trie.Pattern{
		{ID: 1, Value: "a.*z", CaseSensitive: true},
	}, trie.Config{MaxWildCardLength: 5})
	require.NoError(t, err)

	matches := make([]trie.Match, 4)
	n, err := m.Scan([]byte("a123z"), matches)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, trie.Match{PatternID: 1, Start: 0, End: 5}, matches[0])
}

func TestMultiWildcardExceedingBudgetDoesNotMatch(t *testing.T) {
	m, err := trie.New([]trie.Pattern{
		{ID: 1, Value: "a.*z", CaseSensitive: true},
	}, trie.Config{MaxWildCardLength: 2})
	require.NoError(t, err)

	matches := make([]trie.Match, 4)
	n, err := m.Scan([]byte("a12345z"), matches)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestAnchorRestrictsMatchToStart(t *testing.T) {
	m, err := trie.New([]trie.Pattern{
		{ID: 1, Value: "cat", CaseSensitive: true, Anchored: true},
	}, trie.Config{})
	require.NoError(t, err)

	matches := make([]trie.Match, 4)
	n, err := m.Scan([]byte("a cat"), matches)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	n, err = m.Scan([]byte("cat sat"), matches)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 0, matches[0].Start)
}

func TestTerminateHaltsFurtherScanning(t *testing.T) {
	m, err := trie.New([]trie.Pattern{
		{ID: 1, Value: "stop", CaseSensitive: true, Terminate: true},
		{ID: 2, Value: "go", CaseSensitive: true},
	}, trie.Config{})
	require.NoError(t, err)

	matches := make([]trie.Match, 8)
	n, err := m.Scan([]byte("go go stop go go"), matches)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 1, matches[n-1].PatternID)
}

func TestTerminationLengthBoundsScan(t *testing.T) {
	m, err := trie.New([]trie.Pattern{
		{ID: 1, Value: "go", CaseSensitive: true},
	}, trie.Config{TerminationLength: 3})
	require.NoError(t, err)

	matches := make([]trie.Match, 8)
	n, err := m.Scan([]byte("go go go"), matches)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestMatchBufferTruncatesResults(t *testing.T) {
	m, err := trie.New([]trie.Pattern{
		{ID: 1, Value: "go", CaseSensitive: true},
	}, trie.Config{})
	require.NoError(t, err)

	matches := make([]trie.Match, 1)
	n, err := m.Scan([]byte("go go go"), matches)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSharedPrefixPatterns(t *testing.T) {
	m, err := trie.New([]trie.Pattern{
		{ID: 1, Value: "cat", CaseSensitive: true},
		{ID: 2, Value: "car", CaseSensitive: true},
	}, trie.Config{})
	require.NoError(t, err)

	matches := make([]trie.Match, 4)
	n, err := m.Scan([]byte("cat car"), matches)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestNewRejectsDuplicateID(t *testing.T) {
	_, err := trie.New([]trie.Pattern{
		{ID: 1, Value: "a"},
		{ID: 1, Value: "b"},
	}, trie.Config{})
	require.Error(t, err)
}

func TestNewRejectsEmptyPattern(t *testing.T) {
	_, err := trie.New([]trie.Pattern{{ID: 1, Value: ""}}, trie.Config{})
	require.Error(t, err)
}

func TestNewRejectsWildManyWithoutBudget(t *testing.T) {
	_, err := trie.New([]trie.Pattern{{ID: 1, Value: "a.*b"}}, trie.Config{})
	require.Error(t, err)
}
