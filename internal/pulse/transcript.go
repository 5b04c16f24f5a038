package pulse

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"

	"jaybrain/internal/logging"
)

// Transcript shaping limits.
const (
	TurnTruncateAt = 800
	DefaultLastN   = 5
	OpeningTurns   = 3
	DefaultWindow  = 2
)

// Turn is one conversational turn extracted from a transcript.
type Turn struct {
	Role string `json:"role"` // user | assistant
	Text string `json:"text"`
}

// ContextOpts selects the slice of a transcript to return.
type ContextOpts struct {
	LastN   int    // final-N mode (default)
	Snippet string // snippet-window mode when non-empty
	Window  int    // turns either side of the snippet match
}

// ContextResult is the get_session_context payload.
type ContextResult struct {
	Status     string `json:"status"` // ok | snippet_not_found
	SessionID  string `json:"session_id"`
	TotalTurns int    `json:"total_turns"`
	Opening    []Turn `json:"opening,omitempty"`
	Turns      []Turn `json:"turns"`
	MatchIndex int    `json:"match_index,omitempty"`
}

// SessionContext loads a session's transcript and returns either the final N
// turns (plus the session opening) or a window around the first turn
// containing a snippet.
func (r *Reader) SessionContext(ctx context.Context, idOrPrefix string, opts ContextOpts) (*ContextResult, error) {
	timer := logging.StartTimer(logging.CategoryPulse, "SessionContext")
	defer timer.Stop()

	path, sessionID, err := r.findTranscript(idOrPrefix)
	if err != nil {
		return nil, err
	}

	turns, err := ParseTranscript(ctx, path)
	if err != nil {
		return nil, err
	}
	for i := range turns {
		turns[i].Text = truncateRunes(turns[i].Text, TurnTruncateAt)
	}

	result := &ContextResult{Status: "ok", SessionID: sessionID, TotalTurns: len(turns)}

	if opts.Snippet != "" {
		window := opts.Window
		if window <= 0 {
			window = DefaultWindow
		}
		needle := strings.ToLower(opts.Snippet)
		for i, turn := range turns {
			if strings.Contains(strings.ToLower(turn.Text), needle) {
				lo := i - window
				if lo < 0 {
					lo = 0
				}
				hi := i + window + 1
				if hi > len(turns) {
					hi = len(turns)
				}
				result.Turns = turns[lo:hi]
				result.MatchIndex = i
				return result, nil
			}
		}
		// Snippet not found: degrade to last-N with an explicit status.
		result.Status = "snippet_not_found"
	}

	lastN := opts.LastN
	if lastN <= 0 {
		lastN = DefaultLastN
	}
	if len(turns) > lastN {
		result.Turns = turns[len(turns)-lastN:]
		opening := OpeningTurns
		if opening > len(turns)-lastN {
			opening = len(turns) - lastN
		}
		result.Opening = turns[:opening]
	} else {
		result.Turns = turns
	}
	return result, nil
}

// truncateRunes caps a string at max runes, never splitting a multi-byte
// character.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// ParseTranscript extracts text turns from a host JSONL transcript. Turns
// are returned untruncated; display paths apply their own caps.
func ParseTranscript(ctx context.Context, path string) ([]Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// transcriptLine is the subset of the host's line shape we care about.
	type transcriptLine struct {
		Type      string `json:"type"`
		RequestID string `json:"requestId"`
		Message   struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	}

	var turns []Turn
	// Streamed assistant messages repeat a requestId; only the last text for
	// each id survives, at its final position.
	lastForRequest := make(map[string]int)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var tl transcriptLine
		if err := json.Unmarshal([]byte(line), &tl); err != nil {
			logging.PulseDebug("Skipping unparseable transcript line: %v", err)
			continue
		}

		switch tl.Type {
		case "progress", "file-history-snapshot":
			continue
		}

		text := extractText(tl.Message.Role, tl.Message.Content)
		if text == "" {
			continue
		}

		turn := Turn{Role: tl.Message.Role, Text: text}
		if tl.Message.Role == "assistant" && tl.RequestID != "" {
			if idx, seen := lastForRequest[tl.RequestID]; seen {
				// Drop the earlier partial and append the newer text at the end.
				turns = append(turns[:idx], turns[idx+1:]...)
				for id, i := range lastForRequest {
					if i > idx {
						lastForRequest[id] = i - 1
					}
				}
			}
			lastForRequest[tl.RequestID] = len(turns)
		}
		turns = append(turns, turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return turns, nil
}

// extractText pulls displayable text from a message content field. User
// content may be a bare string or a block list; assistant content is a block
// list where only {type: "text"} blocks qualify (thinking and tool_use
// alone do not make a text turn).
func extractText(role string, content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(content, &asString); err == nil {
		if role == "user" && strings.TrimSpace(asString) != "" {
			return strings.TrimSpace(asString)
		}
		return ""
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &blocks); err != nil {
		return ""
	}

	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
			parts = append(parts, strings.TrimSpace(b.Text))
		}
	}
	return strings.Join(parts, "\n")
}
