package task

import (
	"testing"

	"bhds/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestSymbolFilterInclude(t *testing.T) {
	f := NewSymbolFilter(config.FilterConfig{Include: []string{"BTCUSDT", "ethusdt"}})
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"},
		f.Apply([]string{"BTCUSDT", "ETHUSDT", "XRPUSDT"}))
}

func TestSymbolFilterExclude(t *testing.T) {
	f := NewSymbolFilter(config.FilterConfig{Exclude: []string{"ETHUSDT"}})
	assert.True(t, f.Allows("BTCUSDT"))
	assert.False(t, f.Allows("ETHUSDT"))
	assert.False(t, f.Allows("ethusdt"))
}

func TestSymbolFilterPatterns(t *testing.T) {
	f := NewSymbolFilter(config.FilterConfig{Patterns: []string{"*USDT"}})
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"},
		f.Apply([]string{"BTCUSDT", "ETHUSDT", "BTCBUSD"}))
}

func TestSymbolFilterCombined(t *testing.T) {
	f := NewSymbolFilter(config.FilterConfig{
		Patterns: []string{"*USDT"},
		Exclude:  []string{"DOGEUSDT"},
	})
	assert.Equal(t, []string{"BTCUSDT"},
		f.Apply([]string{"BTCUSDT", "DOGEUSDT", "BTCBUSD"}))
}

func TestSymbolFilterEmptyPassesEverything(t *testing.T) {
	f := NewSymbolFilter(config.FilterConfig{})
	in := []string{"BTCUSDT", "ETHUSDT"}
	assert.Equal(t, in, f.Apply(in))
}
