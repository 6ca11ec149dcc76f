package utils

import (
	// Go Internal Packages
	"testing"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitCSV(" a:9092, ,b:9092,"))
	assert.Empty(t, SplitCSV(""))
}

func TestParseLimit(t *testing.T) {
	n, err := ParseLimit("", 50, 200)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	n, err = ParseLimit("500", 50, 200)
	require.NoError(t, err)
	assert.Equal(t, 200, n)

	_, err = ParseLimit("-1", 50, 200)
	assert.Error(t, err)
	_, err = ParseLimit("ten", 50, 200)
	assert.Error(t, err)
}
