package session

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// HintExtractor is the narrow interface for pulling a provider session id out
// of free-form provider output. Implementations are best-effort and may
// misfire on providers whose output format is not JSON-structured; swap the
// extractor per provider without touching orchestration logic.
type HintExtractor func(text string) (string, bool)

var sessionIDKeys = []string{"session_id", "sessionId", "conversation_id", "conversationId", "thread_id"}

var uuidPattern = regexp.MustCompile(
	`(?i)session[ _-]?id[^0-9a-f]{0,4}([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})`,
)

// ExtractSessionHint is the default HintExtractor. It first looks for a
// well-known key in any JSON line of the output, then falls back to matching
// a "session id: <uuid>" phrase in plain text.
func ExtractSessionHint(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if !gjson.Valid(line) {
			continue
		}
		for _, key := range sessionIDKeys {
			if v := gjson.Get(line, key); v.Exists() && v.String() != "" {
				return v.String(), true
			}
			// common envelope: {"result": {...}}
			if v := gjson.Get(line, "result."+key); v.Exists() && v.String() != "" {
				return v.String(), true
			}
		}
	}

	if m := uuidPattern.FindStringSubmatch(text); len(m) == 2 {
		return m[1], true
	}
	return "", false
}
