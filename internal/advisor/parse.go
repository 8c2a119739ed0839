package advisor

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Alias1177/SignalBot/models"
)

// ErrUnparseable is returned when a reply carries no recognizable verdict.
var ErrUnparseable = errors.New("unparseable advisor reply")

type structuredReply struct {
	Verdict    string   `json:"verdict"`
	Entry      *float64 `json:"entry"`
	StopLoss   *float64 `json:"sl"`
	TakeProfit *float64 `json:"tp"`
	Reason     string   `json:"reason"`
}

// ParseStructured reads the JSON reply contract:
//
//	{"verdict": "YES", "entry": 1.1, "sl": 1.09, "tp": 1.12, "reason": "..."}
//
// Markdown code fences and text around the object are ignored.
func ParseStructured(raw string) (Response, error) {
	body := stripFences(raw)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return Response{Raw: raw}, fmt.Errorf("%w: no JSON object", ErrUnparseable)
	}

	var reply structuredReply
	if err := json.Unmarshal([]byte(body[start:end+1]), &reply); err != nil {
		return Response{Raw: raw}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	verdict, ok := normalizeVerdict(reply.Verdict)
	if !ok {
		return Response{Raw: raw}, fmt.Errorf("%w: verdict %q", ErrUnparseable, reply.Verdict)
	}

	resp := Response{Verdict: verdict, Raw: raw}
	levels := &models.Levels{Entry: reply.Entry, StopLoss: reply.StopLoss, TakeProfit: reply.TakeProfit}
	if !levels.Empty() {
		resp.Levels = levels
	}
	return resp, nil
}

var (
	legacyVerdictRe = regexp.MustCompile(`(?i)\b(yes|no)\b`)
	legacyEntryRe   = regexp.MustCompile(`(?i)\bentry\s*(?:price)?\s*[:=]\s*\$?(-?\d+(?:\.\d+)?)`)
	legacySLRe      = regexp.MustCompile(`(?i)\b(?:sl|stop[\s_-]?loss)\s*[:=]\s*\$?(-?\d+(?:\.\d+)?)`)
	legacyTPRe      = regexp.MustCompile(`(?i)\b(?:tp|take[\s_-]?profit)\s*[:=]\s*\$?(-?\d+(?:\.\d+)?)`)
)

// ParseLegacy reads free text: the first standalone YES or NO is the verdict and lines
// such as "Entry: 1.1", "SL: 1.09" or "Take profit = 1.12" provide levels.
func ParseLegacy(raw string) (Response, error) {
	m := legacyVerdictRe.FindStringSubmatch(raw)
	if m == nil {
		return Response{Raw: raw}, fmt.Errorf("%w: no verdict", ErrUnparseable)
	}
	verdict, _ := normalizeVerdict(m[1])

	levels := &models.Levels{
		Entry:      findLevel(legacyEntryRe, raw),
		StopLoss:   findLevel(legacySLRe, raw),
		TakeProfit: findLevel(legacyTPRe, raw),
	}

	resp := Response{Verdict: verdict, Raw: raw}
	if !levels.Empty() {
		resp.Levels = levels
	}
	return resp, nil
}

// Parse tries the structured contract first and falls back to free text.
func Parse(raw string) (Response, error) {
	if resp, err := ParseStructured(raw); err == nil {
		return resp, nil
	}
	return ParseLegacy(raw)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func normalizeVerdict(s string) (models.Verdict, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES":
		return models.Yes, true
	case "NO":
		return models.No, true
	}
	return "", false
}

func findLevel(re *regexp.Regexp, s string) *float64 {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}
