package archive

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidSelection marks a trade-type/frequency/data-type combination the
// archive does not publish. It aborts a run before any I/O happens.
var ErrInvalidSelection = errors.New("invalid archive selection")

type TradeType string

const (
	TradeSpot      TradeType = "spot"
	TradeUMFutures TradeType = "futures/um"
	TradeCMFutures TradeType = "futures/cm"
)

func ParseTradeType(s string) (TradeType, error) {
	switch TradeType(strings.TrimSpace(s)) {
	case TradeSpot:
		return TradeSpot, nil
	case TradeUMFutures:
		return TradeUMFutures, nil
	case TradeCMFutures:
		return TradeCMFutures, nil
	}
	return "", fmt.Errorf("%w: unknown trade_type %q", ErrInvalidSelection, s)
}

type DataFrequency string

const (
	FreqDaily   DataFrequency = "daily"
	FreqMonthly DataFrequency = "monthly"
)

func ParseDataFrequency(s string) (DataFrequency, error) {
	switch DataFrequency(strings.TrimSpace(s)) {
	case FreqDaily:
		return FreqDaily, nil
	case FreqMonthly:
		return FreqMonthly, nil
	}
	return "", fmt.Errorf("%w: unknown data_freq %q", ErrInvalidSelection, s)
}

type DataType string

const (
	DataKlines      DataType = "klines"
	DataFundingRate DataType = "fundingRate"
	DataAggTrades   DataType = "aggTrades"
)

func ParseDataType(s string) (DataType, error) {
	switch DataType(strings.TrimSpace(s)) {
	case DataKlines:
		return DataKlines, nil
	case DataFundingRate:
		return DataFundingRate, nil
	case DataAggTrades:
		return DataAggTrades, nil
	}
	return "", fmt.Errorf("%w: unknown data_type %q", ErrInvalidSelection, s)
}

const (
	dateLayoutDaily   = "2006-01-02"
	dateLayoutMonthly = "2006-01"
)

// Selection names one archive corner (trade type, frequency, data type and,
// for klines, the interval) independent of symbol and date.
type Selection struct {
	TradeType TradeType
	Frequency DataFrequency
	DataType  DataType
	Interval  string
}

func (s Selection) Validate() error {
	if _, err := ParseTradeType(string(s.TradeType)); err != nil {
		return err
	}
	if _, err := ParseDataFrequency(string(s.Frequency)); err != nil {
		return err
	}
	if _, err := ParseDataType(string(s.DataType)); err != nil {
		return err
	}
	switch s.DataType {
	case DataKlines:
		if strings.TrimSpace(s.Interval) == "" {
			return fmt.Errorf("%w: klines require a time_interval", ErrInvalidSelection)
		}
	case DataFundingRate:
		if s.Interval != "" {
			return fmt.Errorf("%w: fundingRate has no time_interval", ErrInvalidSelection)
		}
		if s.TradeType == TradeSpot {
			return fmt.Errorf("%w: spot has no fundingRate data", ErrInvalidSelection)
		}
		if s.Frequency != FreqMonthly {
			return fmt.Errorf("%w: fundingRate is published monthly only", ErrInvalidSelection)
		}
	case DataAggTrades:
		if s.Interval != "" {
			return fmt.Errorf("%w: aggTrades has no time_interval", ErrInvalidSelection)
		}
	}
	return nil
}

// Prefix is the listing prefix under which per-symbol directories live,
// e.g. "data/spot/daily/klines/". Always ends with a slash.
func (s Selection) Prefix() string {
	return fmt.Sprintf("data/%s/%s/%s/", s.TradeType, s.Frequency, s.DataType)
}

// SymbolPrefix is the listing prefix holding the data files of one symbol.
// Klines carry an extra interval segment.
func (s Selection) SymbolPrefix(symbol string) string {
	if s.DataType == DataKlines {
		return s.Prefix() + symbol + "/" + s.Interval + "/"
	}
	return s.Prefix() + symbol + "/"
}

// Identity fills in symbol and date to name one concrete archive file.
func (s Selection) Identity(symbol, date string) Identity {
	return Identity{
		TradeType: s.TradeType,
		Frequency: s.Frequency,
		DataType:  s.DataType,
		Symbol:    symbol,
		Interval:  s.Interval,
		Date:      date,
	}
}

// Identity uniquely names one archive entry. Its Key doubles as the failure
// ledger key and as the path relative to both the download prefix and the
// local data root, so ledger entries stay resolvable without re-listing.
type Identity struct {
	TradeType TradeType
	Frequency DataFrequency
	DataType  DataType
	Symbol    string
	Interval  string
	Date      string
}

func (id Identity) selection() Selection {
	return Selection{TradeType: id.TradeType, Frequency: id.Frequency, DataType: id.DataType, Interval: id.Interval}
}

func (id Identity) validate() error {
	if err := id.selection().Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(id.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidSelection)
	}
	layout := dateLayoutDaily
	if id.Frequency == FreqMonthly {
		layout = dateLayoutMonthly
	}
	if _, err := time.Parse(layout, id.Date); err != nil {
		return fmt.Errorf("%w: bad date %q for %s data", ErrInvalidSelection, id.Date, id.Frequency)
	}
	return nil
}

// FileName is the data archive's base name, e.g. "BTCUSDT-1m-2021-01-01.zip".
func (id Identity) FileName() string {
	if id.DataType == DataKlines {
		return fmt.Sprintf("%s-%s-%s.zip", id.Symbol, id.Interval, id.Date)
	}
	return fmt.Sprintf("%s-%s-%s.zip", id.Symbol, id.DataType, id.Date)
}

// Key returns the stable string form of the identity: the data file's
// path relative to the archive root.
func (id Identity) Key() (string, error) {
	if err := id.validate(); err != nil {
		return "", err
	}
	return id.selection().SymbolPrefix(id.Symbol) + id.FileName(), nil
}

// DateFromFileName extracts the date portion of a listed data file name,
// or "" if the name does not belong to this selection.
func (s Selection) DateFromFileName(symbol, name string) string {
	name = strings.TrimSuffix(name, ".zip")
	var prefix string
	if s.DataType == DataKlines {
		prefix = symbol + "-" + s.Interval + "-"
	} else {
		prefix = symbol + "-" + string(s.DataType) + "-"
	}
	if !strings.HasPrefix(name, prefix) {
		return ""
	}
	return strings.TrimPrefix(name, prefix)
}
