package wordpiece

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeLongestPrefixThenContinuations(t *testing.T) {
	v, err := NewVocabulary([]string{"a", "##bcdef", "ab", "##c", "##d", "##e", "##f"})
	require.NoError(t, err)

	require.Equal(t, []int{2, 3, 4, 5, 6}, v.Encode("abcdef"))
}

func TestEncodeUnresolvableWordIsNegativeOne(t *testing.T) {
	v, err := NewVocabulary([]string{"a", "abd"})
	require.NoError(t, err)

	require.Equal(t, []int{-1}, v.Encode("abc"))
}

func TestEncodeNoPrefixMatchAtAll(t *testing.T) {
	v, err := NewVocabulary([]string{"a", "##bcdef", "ab", "##c", "##d", "##e", "##f"})
	require.NoError(t, err)

	require.Equal(t, []int{-1}, v.Encode("xyz"))
}

func TestEncodeSplitsOnWhitespaceAndPunctuation(t *testing.T) {
	v, err := NewVocabulary([]string{"a", "##bcdef", "ab", "##c", "##d", "##e", "##f"})
	require.NoError(t, err)

	ids := v.Encode("abcdef, abcdef")
	require.Equal(t, []int{2, 3, 4, 5, 6, -1, 2, 3, 4, 5, 6}, ids)
}

func TestNewVocabularyRejectsEmpty(t *testing.T) {
	_, err := NewVocabulary(nil)
	require.ErrorIs(t, err, ErrEmptyVocabulary)
}

func TestEntryRoundTrip(t *testing.T) {
	v, err := NewVocabulary([]string{"a", "##bcdef", "ab"})
	require.NoError(t, err)

	e, ok := v.Entry(2)
	require.True(t, ok)
	require.Equal(t, "ab", e)

	_, ok = v.Entry(99)
	require.False(t, ok)
}

func TestPrefixMatcherLongestPrefix(t *testing.T) {
	m := NewPrefixMatcher(map[string]int{"a": 1, "ab": 2, "abc": 3})

	length, id, ok := m.LongestPrefix("abcdef")
	require.True(t, ok)
	require.Equal(t, 3, length)
	require.Equal(t, 3, id)

	_, _, ok = m.LongestPrefix("xyz")
	require.False(t, ok)
}
