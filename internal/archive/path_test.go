package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathBuilderBuild(t *testing.T) {
	b := NewPathBuilder("", "/data/aws_data")
	item, err := b.Build(Identity{
		TradeType: TradeSpot,
		Frequency: FreqDaily,
		DataType:  DataKlines,
		Symbol:    "BTCUSDT",
		Interval:  "1m",
		Date:      "2021-01-01",
	})
	require.NoError(t, err)

	key := "data/spot/daily/klines/BTCUSDT/1m/BTCUSDT-1m-2021-01-01.zip"
	assert.Equal(t, key, item.Key)
	assert.Equal(t, DownloadBaseURL+"/"+key, item.DataURL)
	assert.Equal(t, DownloadBaseURL+"/"+key+".CHECKSUM", item.ChecksumURL)
	assert.Equal(t, filepath.Join("/data/aws_data", filepath.FromSlash(key)), item.DataPath)
	assert.Equal(t, item.DataPath+".CHECKSUM", item.ChecksumPath)
}

func TestPathBuilderInvalidIdentity(t *testing.T) {
	b := NewPathBuilder("", "/data/aws_data")
	_, err := b.Build(Identity{TradeType: TradeSpot, Frequency: FreqDaily, DataType: DataKlines, Symbol: "BTCUSDT", Date: "2021-01-01"})
	assert.ErrorIs(t, err, ErrInvalidSelection)
}

func TestPathBuilderItemForKeyRoundTrip(t *testing.T) {
	b := NewPathBuilder("https://mirror.example.com/", "/data/aws_data")
	built, err := b.Build(Identity{
		TradeType: TradeUMFutures,
		Frequency: FreqMonthly,
		DataType:  DataFundingRate,
		Symbol:    "ETHUSDT",
		Date:      "2021-03",
	})
	require.NoError(t, err)

	// A ledger key must resolve to exactly the same plan item without any
	// catalog involvement.
	assert.Equal(t, built, b.ItemForKey(built.Key))
	assert.Equal(t, "https://mirror.example.com/"+built.Key, built.DataURL)
}
