package strategy

import (
	"fmt"
	"strings"

	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

// Allows applies the entry policy to an alert. The returned reason is empty
// when the alert passes.
func (p Params) Allows(a types.AlertRecord) (bool, string) {
	if a.Score < p.MinScore {
		return false, fmt.Sprintf("score %.3f below min %.3f", a.Score, p.MinScore)
	}
	if p.MinSentiment != nil && a.Sentiment < *p.MinSentiment {
		return false, fmt.Sprintf("sentiment %.3f below min %.3f", a.Sentiment, *p.MinSentiment)
	}
	if len(p.RequiredCatalysts) > 0 && !hasCatalyst(a, p.RequiredCatalysts) {
		return false, "no required catalyst keyword"
	}
	return true, ""
}

// hasCatalyst matches required keywords against the alert keywords and its
// catalyst classification, ignoring case
func hasCatalyst(a types.AlertRecord, required []string) bool {
	have := make(map[string]struct{}, len(a.Keywords)+1)
	for _, kw := range a.Keywords {
		have[strings.ToLower(strings.TrimSpace(kw))] = struct{}{}
	}
	if a.CatalystType != "" {
		have[strings.ToLower(strings.TrimSpace(a.CatalystType))] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[strings.ToLower(strings.TrimSpace(r))]; ok {
			return true
		}
	}
	return false
}
