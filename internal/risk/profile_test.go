package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClassifierClasses(t *testing.T) {
	c := DefaultClassifier()
	cases := map[string]string{
		"EURJPY":  "jpy_pair",
		"GBPJPY":  "jpy_pair",
		"XAUUSD":  "metal",
		"BTCUSD":  "crypto",
		"AAPL.US": "cfd_equity",
		"GBPUSD":  "fx",
		"EURUSD":  "fx",
	}
	for symbol, class := range cases {
		profile, ok := c.Resolve(symbol)
		require.True(t, ok, "symbol %s", symbol)
		assert.Equal(t, class, profile.Class, "symbol %s", symbol)
	}
}

func TestClassifierManyToOne(t *testing.T) {
	c := DefaultClassifier()
	a, _ := c.Resolve("EURJPY")
	b, _ := c.Resolve("CHFJPY")
	assert.Equal(t, a, b, "all JPY-quoted pairs share one profile")
}

func TestClassifierCaseInsensitive(t *testing.T) {
	c := DefaultClassifier()
	profile, ok := c.Resolve("eurjpy")
	require.True(t, ok)
	assert.Equal(t, "jpy_pair", profile.Class)
}

func TestCustomClassifierWithoutCatchAll(t *testing.T) {
	c := NewClassifier(
		[]Profile{{Class: "jpy_pair", USDPerPipPerUnit: 100}},
		[][]string{{"JPY"}},
	)
	_, ok := c.Resolve("GBPUSD")
	assert.False(t, ok, "no catch-all rule, unknown symbols must not resolve")

	profile, ok := c.Resolve("EURJPY")
	require.True(t, ok)
	assert.Equal(t, "jpy_pair", profile.Class)
}
