package ctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, p Provider) []Pair {
	t.Helper()
	var pairs []Pair
	pair, err := p.First()
	for err == nil {
		pairs = append(pairs, pair)
		pair, err = p.Next()
	}
	require.ErrorIs(t, err, ErrExhausted)
	return pairs
}

func TestStringProvider_TokenizesInOrder(t *testing.T) {
	p := NewStringProvider("a.0.b=1;c=2")
	assert.Equal(t, []Pair{
		{Name: "a.0.b", Value: "1"},
		{Name: "c", Value: "2"},
	}, drain(t, p))
}

func TestStringProvider_EmptyBuffer(t *testing.T) {
	for _, buf := range []string{"", ";", ";;;"} {
		p := NewStringProvider(buf)
		_, err := p.First()
		assert.ErrorIs(t, err, ErrExhausted, "buffer %q", buf)
	}
}

func TestStringProvider_SkipsEmptyEntries(t *testing.T) {
	p := NewStringProvider(";a=1;;b=2;")
	assert.Equal(t, []Pair{
		{Name: "a", Value: "1"},
		{Name: "b", Value: "2"},
	}, drain(t, p))
}

func TestStringProvider_MissingValue(t *testing.T) {
	for _, buf := range []string{"a.b", "a=", "=1"} {
		p := NewStringProvider(buf)
		_, err := p.First()
		assert.ErrorIs(t, err, ErrProviderFormat, "buffer %q", buf)
	}
}

func TestStringProvider_ExtraneousValue(t *testing.T) {
	p := NewStringProvider("a=b=c")
	_, err := p.First()
	assert.ErrorIs(t, err, ErrProviderFormat)
}

func TestStringProvider_FirstRestarts(t *testing.T) {
	p := NewStringProvider("a=1;b=2")

	pair, err := p.First()
	require.NoError(t, err)
	assert.Equal(t, Pair{Name: "a", Value: "1"}, pair)

	_, err = p.Next()
	require.NoError(t, err)

	// First rewinds the cursor even mid-iteration.
	pair, err = p.First()
	require.NoError(t, err)
	assert.Equal(t, Pair{Name: "a", Value: "1"}, pair)
}

func TestStringProvider_NoWhitespaceNormalization(t *testing.T) {
	p := NewStringProvider(" a =1")
	pair, err := p.First()
	require.NoError(t, err)
	assert.Equal(t, " a ", pair.Name)
}
