package routing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/goatherd/core"
	"github.com/hupe1980/goatherd/logging"
)

// ReasonFallback is the decision reason when no candidate cleared the
// minimum confidence threshold and the default agent was used.
const ReasonFallback = "fallback"

// Options holds the tunable scoring parameters. The weights are heuristic
// and validated by property tests rather than fixed by contract; they must
// sum (including ContinuityBonus) to at most 1 so scores stay within [0,1].
type Options struct {
	// LexicalWeight scales token overlap between the message and the
	// agent's skills, name and description.
	LexicalWeight float64

	// OrgFitWeight scales organizational fit: delegating agents (managers)
	// for multi-step or ambiguous asks, non-delegating agents (individual
	// contributors) for narrowly scoped asks.
	OrgFitWeight float64

	// ContinuityBonus is added to the previously active / default agent to
	// reduce churn between turns.
	ContinuityBonus float64

	// MinConfidence is the score below which routing falls back to the
	// default agent.
	MinConfidence float64

	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Service scores candidate agents and picks a routing target.
type Service struct {
	opts Options
}

// NewService creates a routing Service with optional overrides.
func NewService(optFns ...func(o *Options)) *Service {
	opts := Options{
		LexicalWeight:   0.6,
		OrgFitWeight:    0.3,
		ContinuityBonus: 0.1,
		MinConfidence:   0.25,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{opts: opts}
}

// Route picks the target agent for a message, entering at the default agent.
func (s *Service) Route(message string, roster *core.Roster, defaultAgentID string) core.RoutingDecision {
	return s.RouteFrom("", message, roster, defaultAgentID)
}

// RouteFrom picks the target agent for a message entering at the requested
// agent. An unknown or non-receiving requested agent degrades to the default
// entry agent rather than erroring.
func (s *Service) RouteFrom(requestedAgentID, message string, roster *core.Roster, defaultAgentID string) core.RoutingDecision {
	entry := defaultAgentID
	if a, ok := roster.Get(requestedAgentID); ok && a.CanReceive {
		entry = a.AgentID
	}

	candidates := s.score(message, roster, entry)

	decision := core.RoutingDecision{
		EntryAgentID: entry,
		Candidates:   candidates,
	}

	if len(candidates) == 0 || candidates[0].Score < s.opts.MinConfidence {
		decision.TargetAgentID = defaultAgentID
		decision.Confidence = s.opts.MinConfidence
		decision.Reason = ReasonFallback
		decision.RewrittenMessage = message
		s.opts.Logger.Debug("routing fallback", "entry_agent_id", entry, "default_agent_id", defaultAgentID)
		return decision
	}

	top := candidates[0]
	decision.TargetAgentID = top.AgentID
	decision.Confidence = clamp01(top.Score)
	decision.Reason = top.Reason
	decision.RewrittenMessage = rewrite(message, top)

	s.opts.Logger.Debug("routing decided",
		"entry_agent_id", entry,
		"target_agent_id", top.AgentID,
		"confidence", decision.Confidence,
	)
	return decision
}

// score produces the scored candidate list, highest first. Ties break on the
// lexicographically smaller agent id for determinism.
func (s *Service) score(message string, roster *core.Roster, activeAgentID string) []core.RoutingCandidate {
	tokens := tokenize(message)
	multiStep := looksMultiStep(message)

	var candidates []core.RoutingCandidate
	for _, a := range roster.Agents() {
		if !a.CanReceive {
			continue
		}

		lex := lexicalOverlap(tokens, a)
		fit := orgFit(a, multiStep)

		score := s.opts.LexicalWeight*lex + s.opts.OrgFitWeight*fit
		reasons := []string{}
		if lex > 0 {
			reasons = append(reasons, fmt.Sprintf("skill match %.2f", lex))
		}
		if fit >= 1 {
			if multiStep {
				reasons = append(reasons, "manager preferred for multi-step ask")
			} else {
				reasons = append(reasons, "individual contributor preferred for scoped ask")
			}
		}
		if a.AgentID == activeAgentID {
			score += s.opts.ContinuityBonus
			reasons = append(reasons, "continuity with active agent")
		}
		reason := strings.Join(reasons, "; ")
		if reason == "" {
			reason = "no signal"
		}

		candidates = append(candidates, core.RoutingCandidate{
			AgentID:   a.AgentID,
			AgentName: a.Name,
			Score:     clamp01(score),
			Reason:    reason,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].AgentID < candidates[j].AgentID
		}
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// rewrite annotates the message with routing context. The original message is
// always preserved verbatim as a substring.
func rewrite(message string, top core.RoutingCandidate) string {
	return fmt.Sprintf("%s\n\n[routed to %s: %s]", message, top.AgentName, top.Reason)
}

// lexicalOverlap returns the fraction of message tokens found in the agent's
// skills, name and description, in [0,1].
func lexicalOverlap(tokens []string, a core.AgentDescriptor) float64 {
	if len(tokens) == 0 {
		return 0
	}
	vocab := make(map[string]bool)
	for _, skill := range a.Skills {
		for _, t := range tokenize(skill) {
			vocab[t] = true
		}
	}
	for _, t := range tokenize(a.Name + " " + a.Description) {
		vocab[t] = true
	}

	matched := 0
	for _, t := range tokens {
		if vocab[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

// orgFit scores how well the agent's role matches the detected intent.
// Managers (CanDelegate) fit multi-step asks; individual contributors fit
// narrowly scoped ones. A mismatch still contributes a small baseline so
// lexical evidence can dominate.
func orgFit(a core.AgentDescriptor, multiStep bool) float64 {
	if multiStep == a.CanDelegate {
		return 1
	}
	return 0.3
}

var coordinationWords = map[string]bool{
	"plan": true, "coordinate": true, "organize": true, "organise": true,
	"project": true, "roadmap": true, "oversee": true, "manage": true,
	"delegate": true, "team": true, "everything": true,
}

// looksMultiStep reports whether a message reads like a multi-step or
// ambiguous ask rather than a narrowly scoped one.
func looksMultiStep(message string) bool {
	lower := strings.ToLower(message)
	for w := range coordinationWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	sentences := strings.Count(message, ".") + strings.Count(message, "?") + strings.Count(message, "!")
	conjunctions := strings.Count(lower, " and then ") + strings.Count(lower, " after that ")
	return sentences > 2 || conjunctions > 0
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "can": true, "you": true, "please": true,
	"about": true, "into": true, "have": true, "will": true, "are": true,
	"what": true, "how": true, "when": true, "need": true, "want": true,
}

// tokenize lowercases and splits on non-letter/digit runes, dropping short
// tokens and stop words.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
