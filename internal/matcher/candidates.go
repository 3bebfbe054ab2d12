package matcher

import (
	"encoding/hex"
	"sort"

	"github.com/zeebo/xxh3"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

// CandidateSet is the deduplicated union of the pairs every rule produced.
type CandidateSet struct {
	pairs   map[domain.Pair]map[domain.Reason]struct{}
	dropped []domain.CanonicalizationError
}

func NewCandidateSet() *CandidateSet {
	return &CandidateSet{
		pairs: make(map[domain.Pair]map[domain.Reason]struct{}),
	}
}

func (s *CandidateSet) Add(p domain.Pair, reason domain.Reason) {
	reasons, ok := s.pairs[p]
	if !ok {
		reasons = make(map[domain.Reason]struct{}, 1)
		s.pairs[p] = reasons
	}
	if reason != "" {
		reasons[reason] = struct{}{}
	}
}

func (s *CandidateSet) Drop(err domain.CanonicalizationError) {
	for _, d := range s.dropped {
		if d == err {
			return
		}
	}
	s.dropped = append(s.dropped, err)
}

// Union merges o into s. The result does not depend on merge order.
func (s *CandidateSet) Union(o *CandidateSet) {
	for p, reasons := range o.pairs {
		s.Add(p, "")
		for r := range reasons {
			s.pairs[p][r] = struct{}{}
		}
	}
	for _, d := range o.dropped {
		s.Drop(d)
	}
}

func (s *CandidateSet) Contains(p domain.Pair) bool {
	_, ok := s.pairs[p]
	return ok
}

// Reasons returns the rules that produced p, sorted by name.
func (s *CandidateSet) Reasons(p domain.Pair) []domain.Reason {
	reasons := make([]domain.Reason, 0, len(s.pairs[p]))
	for r := range s.pairs[p] {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}

func (s *CandidateSet) Len() int {
	return len(s.pairs)
}

// Pairs returns every pair in canonical order.
func (s *CandidateSet) Pairs() []domain.Pair {
	pairs := make([]domain.Pair, 0, len(s.pairs))
	for p := range s.pairs {
		pairs = append(pairs, p)
	}
	domain.SortPairs(pairs)
	return pairs
}

func (s *CandidateSet) Dropped() []domain.CanonicalizationError {
	return s.dropped
}

// Digest fingerprints the pair set. Equal sets yield equal digests.
func (s *CandidateSet) Digest() string {
	h := xxh3.New()
	for _, p := range s.Pairs() {
		lower, higher := p.Lower(), p.Higher()
		_, _ = h.Write(lower[:])
		_, _ = h.Write(higher[:])
	}
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:])
}
