package searchstate

import (
	"context"

	"github.com/mohammed-shakir/mapsearch/internal/params"
)

// TestStateChange compares what the history says (prior) with the current
// state. When they differ it writes the canonical query to history, updates
// the title and returns true. Reordered or default-valued keys do not count
// as a change.
func (s *State) TestStateChange(ctx context.Context, prior params.Attributes) bool {
	raw, _ := s.table.Encode(prior)
	return s.testStateChange(ctx, raw, prior)
}

func (s *State) testStateChange(ctx context.Context, raw string, prior params.Attributes) bool {
	s.mu.Lock()
	canonical, _ := s.table.Encode(s.attrs)
	same := raw == canonical || sameState(s.table, prior, s.attrs)
	s.title = s.titleFn(s.attrs)
	s.mu.Unlock()

	if same {
		return false
	}
	if err := s.history.WriteCanonicalQuery(ctx, canonical); err != nil {
		s.logger.Warn("history write failed", "err", err)
		return false
	}
	s.logger.Debug("history updated", "query", canonical)
	return true
}

// syncHistory brings history in line with the state after a search.
func (s *State) syncHistory(ctx context.Context) {
	raw, err := s.history.ReadCurrentQuery(ctx)
	if err != nil {
		s.logger.Warn("history read failed", "err", err)
		raw = ""
	}
	s.testStateChange(ctx, raw, s.table.Typed(s.table.Decode(raw)))
}
