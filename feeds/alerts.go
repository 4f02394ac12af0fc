package feeds

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

const maxAlertLine = 1 << 20

// JSONLAlertSource reads alerts from a newline-delimited JSON log, one
// AlertRecord per line. Malformed lines are skipped with a warning.
type JSONLAlertSource struct {
	path string
}

// NewJSONLAlertSource creates a source over the log at path
func NewJSONLAlertSource(path string) *JSONLAlertSource {
	return &JSONLAlertSource{path: path}
}

// LoadAlerts returns alerts stamped within [start, end], oldest first
func (s *JSONLAlertSource) LoadAlerts(ctx context.Context, start, end time.Time) ([]types.AlertRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open alert log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxAlertLine)

	var alerts []types.AlertRecord
	lineNo, skipped := 0, 0
	for scanner.Scan() {
		lineNo++
		if lineNo%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var a types.AlertRecord
		if err := json.Unmarshal([]byte(line), &a); err != nil {
			skipped++
			log.Warn().Err(err).Str("path", s.path).Int("line", lineNo).Msg("Skipping malformed alert")
			continue
		}
		a.Ticker = strings.ToUpper(strings.TrimSpace(a.Ticker))
		if a.Timestamp.Before(start) || a.Timestamp.After(end) {
			continue
		}
		alerts = append(alerts, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read alert log: %w", err)
	}

	sortAlerts(alerts)
	log.Debug().
		Str("path", s.path).
		Int("alerts", len(alerts)).
		Int("skipped", skipped).
		Msg("Alert log loaded")
	return alerts, nil
}

// MemoryAlertSource serves a fixed alert list
type MemoryAlertSource struct {
	Alerts []types.AlertRecord
}

// LoadAlerts returns a sorted copy of the alerts within [start, end]
func (m *MemoryAlertSource) LoadAlerts(ctx context.Context, start, end time.Time) ([]types.AlertRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []types.AlertRecord
	for _, a := range m.Alerts {
		if a.Timestamp.Before(start) || a.Timestamp.After(end) {
			continue
		}
		out = append(out, a)
	}
	sortAlerts(out)
	return out, nil
}

func sortAlerts(alerts []types.AlertRecord) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Timestamp.Before(alerts[j].Timestamp)
	})
}
