package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityKey(t *testing.T) {
	t.Run("daily klines", func(t *testing.T) {
		id := Identity{
			TradeType: TradeSpot,
			Frequency: FreqDaily,
			DataType:  DataKlines,
			Symbol:    "BTCUSDT",
			Interval:  "1m",
			Date:      "2021-01-01",
		}
		key, err := id.Key()
		require.NoError(t, err)
		assert.Equal(t, "data/spot/daily/klines/BTCUSDT/1m/BTCUSDT-1m-2021-01-01.zip", key)
	})

	t.Run("monthly funding rate", func(t *testing.T) {
		id := Identity{
			TradeType: TradeUMFutures,
			Frequency: FreqMonthly,
			DataType:  DataFundingRate,
			Symbol:    "ETHUSDT",
			Date:      "2021-03",
		}
		key, err := id.Key()
		require.NoError(t, err)
		assert.Equal(t, "data/futures/um/monthly/fundingRate/ETHUSDT/ETHUSDT-fundingRate-2021-03.zip", key)
	})

	t.Run("daily agg trades", func(t *testing.T) {
		id := Identity{
			TradeType: TradeCMFutures,
			Frequency: FreqDaily,
			DataType:  DataAggTrades,
			Symbol:    "BTCUSD_PERP",
			Date:      "2022-06-15",
		}
		key, err := id.Key()
		require.NoError(t, err)
		assert.Equal(t, "data/futures/cm/daily/aggTrades/BTCUSD_PERP/BTCUSD_PERP-aggTrades-2022-06-15.zip", key)
	})
}

func TestIdentityKeyInvalid(t *testing.T) {
	cases := []struct {
		name string
		id   Identity
	}{
		{"klines without interval", Identity{TradeType: TradeSpot, Frequency: FreqDaily, DataType: DataKlines, Symbol: "BTCUSDT", Date: "2021-01-01"}},
		{"spot funding rate", Identity{TradeType: TradeSpot, Frequency: FreqMonthly, DataType: DataFundingRate, Symbol: "BTCUSDT", Date: "2021-01"}},
		{"daily funding rate", Identity{TradeType: TradeUMFutures, Frequency: FreqDaily, DataType: DataFundingRate, Symbol: "BTCUSDT", Date: "2021-01-01"}},
		{"funding rate with interval", Identity{TradeType: TradeUMFutures, Frequency: FreqMonthly, DataType: DataFundingRate, Symbol: "BTCUSDT", Interval: "1m", Date: "2021-01"}},
		{"missing symbol", Identity{TradeType: TradeSpot, Frequency: FreqDaily, DataType: DataKlines, Interval: "1m", Date: "2021-01-01"}},
		{"monthly date for daily data", Identity{TradeType: TradeSpot, Frequency: FreqDaily, DataType: DataKlines, Symbol: "BTCUSDT", Interval: "1m", Date: "2021-01"}},
		{"garbage date", Identity{TradeType: TradeSpot, Frequency: FreqDaily, DataType: DataKlines, Symbol: "BTCUSDT", Interval: "1m", Date: "yesterday"}},
		{"unknown trade type", Identity{TradeType: "margin", Frequency: FreqDaily, DataType: DataKlines, Symbol: "BTCUSDT", Interval: "1m", Date: "2021-01-01"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.id.Key()
			assert.ErrorIs(t, err, ErrInvalidSelection)
		})
	}
}

func TestSelectionDateFromFileName(t *testing.T) {
	klines := Selection{TradeType: TradeSpot, Frequency: FreqDaily, DataType: DataKlines, Interval: "1m"}
	assert.Equal(t, "2021-01-01", klines.DateFromFileName("BTCUSDT", "BTCUSDT-1m-2021-01-01.zip"))
	assert.Equal(t, "", klines.DateFromFileName("BTCUSDT", "ETHUSDT-1m-2021-01-01.zip"))
	assert.Equal(t, "", klines.DateFromFileName("BTCUSDT", "BTCUSDT-5m-2021-01-01.zip"))

	funding := Selection{TradeType: TradeUMFutures, Frequency: FreqMonthly, DataType: DataFundingRate}
	assert.Equal(t, "2021-03", funding.DateFromFileName("ETHUSDT", "ETHUSDT-fundingRate-2021-03.zip"))
}

func TestSelectionPrefixes(t *testing.T) {
	sel := Selection{TradeType: TradeSpot, Frequency: FreqDaily, DataType: DataKlines, Interval: "1h"}
	assert.Equal(t, "data/spot/daily/klines/", sel.Prefix())
	assert.Equal(t, "data/spot/daily/klines/BTCUSDT/1h/", sel.SymbolPrefix("BTCUSDT"))

	agg := Selection{TradeType: TradeSpot, Frequency: FreqMonthly, DataType: DataAggTrades}
	assert.Equal(t, "data/spot/monthly/aggTrades/BTCUSDT/", agg.SymbolPrefix("BTCUSDT"))
}
