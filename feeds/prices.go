package feeds

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CSV BARS - One file per ticker: <dir>/<TICKER>.csv
// ═══════════════════════════════════════════════════════════════════════════════
//
// Columns: time,open,high,low,close,volume
// time is RFC3339 or unix seconds. A header row is optional.
//
// ═══════════════════════════════════════════════════════════════════════════════

// lookback for GetPriceAtTime when only a single timestamp is known
const priceLookback = 7 * 24 * time.Hour

// CSVPriceSource loads each ticker file once and serves slices of it
type CSVPriceSource struct {
	dir string

	mu    sync.RWMutex
	files map[string][]types.Bar
}

// NewCSVPriceSource creates a source reading bar files from dir
func NewCSVPriceSource(dir string) *CSVPriceSource {
	return &CSVPriceSource{
		dir:   dir,
		files: make(map[string][]types.Bar),
	}
}

// LoadPriceData returns bars within [start, end]
func (s *CSVPriceSource) LoadPriceData(ctx context.Context, ticker string, start, end time.Time) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars, err := s.load(ticker)
	if err != nil {
		return nil, err
	}
	out := sliceBars(bars, start, end)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s between %s and %s", ErrNoData, ticker, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return out, nil
}

// GetPriceAtTime returns the close of the latest bar at or before t
func (s *CSVPriceSource) GetPriceAtTime(ctx context.Context, ticker string, t time.Time) (decimal.Decimal, error) {
	return priceAt(ctx, s, ticker, t)
}

func (s *CSVPriceSource) load(ticker string) ([]types.Bar, error) {
	ticker = strings.ToUpper(ticker)

	s.mu.RLock()
	bars, ok := s.files[ticker]
	s.mu.RUnlock()
	if ok {
		return bars, nil
	}

	path := filepath.Join(s.dir, ticker+".csv")
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no bar file for %s", ErrNoData, ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("open bars %s: %w", path, err)
	}
	defer f.Close()

	bars, err = ReadBarsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse bars %s: %w", path, err)
	}

	s.mu.Lock()
	s.files[ticker] = bars
	s.mu.Unlock()

	log.Debug().Str("ticker", ticker).Int("bars", len(bars)).Msg("Bar file loaded")
	return bars, nil
}

// ReadBarsCSV parses bars from r and returns them sorted by time
func ReadBarsCSV(r io.Reader) ([]types.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var bars []types.Bar
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row++

		if len(rec) < 6 {
			return nil, fmt.Errorf("row %d: want 6 columns, got %d", row, len(rec))
		}

		ts, err := parseBarTime(rec[0])
		if err != nil {
			if row == 1 {
				continue // header
			}
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		bar, err := parseBar(ts, rec[1:6])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		bars = append(bars, bar)
	}
	sortBars(bars)
	return bars, nil
}

func parseBar(ts time.Time, cols []string) (types.Bar, error) {
	var px [4]decimal.Decimal
	for i := 0; i < 4; i++ {
		v, err := decimal.NewFromString(strings.TrimSpace(cols[i]))
		if err != nil {
			return types.Bar{}, fmt.Errorf("price column %d: %w", i+2, err)
		}
		px[i] = v
	}
	vol, err := strconv.ParseFloat(strings.TrimSpace(cols[4]), 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("volume: %w", err)
	}
	return types.Bar{
		Time:   ts,
		Open:   px[0],
		High:   px[1],
		Low:    px[2],
		Close:  px[3],
		Volume: int64(vol),
	}, nil
}

func parseBarTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// MemoryPriceSource serves bars held in memory, keyed by ticker
type MemoryPriceSource struct {
	Bars map[string][]types.Bar
}

// NewMemoryPriceSource sorts and stores the given bars
func NewMemoryPriceSource(bars map[string][]types.Bar) *MemoryPriceSource {
	m := &MemoryPriceSource{Bars: make(map[string][]types.Bar, len(bars))}
	for t, bs := range bars {
		cp := append([]types.Bar(nil), bs...)
		sortBars(cp)
		m.Bars[t] = cp
	}
	return m
}

// LoadPriceData returns bars within [start, end]
func (m *MemoryPriceSource) LoadPriceData(ctx context.Context, ticker string, start, end time.Time) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := sliceBars(m.Bars[ticker], start, end)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}
	return out, nil
}

// GetPriceAtTime returns the close of the latest bar at or before t
func (m *MemoryPriceSource) GetPriceAtTime(ctx context.Context, ticker string, t time.Time) (decimal.Decimal, error) {
	return priceAt(ctx, m, ticker, t)
}

func priceAt(ctx context.Context, src PriceSource, ticker string, t time.Time) (decimal.Decimal, error) {
	bars, err := src.LoadPriceData(ctx, ticker, t.Add(-priceLookback), t)
	if err != nil {
		return decimal.Zero, err
	}
	bar, ok := BarAtOrBefore(bars, t)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s at %s", ErrNoData, ticker, t.Format(time.RFC3339))
	}
	return bar.Close, nil
}
