package main

import (
	"bytes"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pricing "github.com/wyfcoding/optionescrow/internal/pricing/domain"
)

func TestQuoteCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"quote", "--spot", "100000000", "--strike", "100000000"})
	require.NoError(t, rootCmd.Execute())

	var q pricing.Quote
	require.NoError(t, jsoniter.Unmarshal(out.Bytes(), &q))
	assert.Equal(t, uint64(10_709_144), q.Premium)
	assert.Equal(t, pricing.FormulaDiscounted, q.Formula)
}
