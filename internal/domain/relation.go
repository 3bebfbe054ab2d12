package domain

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Pair is the canonical identity of a duplicate relation.
// The lower id always sorts before the higher id by byte order, so a pair
// built from (a, b) equals the pair built from (b, a). Use NewPair.
type Pair struct {
	lower  UnitID
	higher UnitID
}

func NewPair(a, b UnitID) (Pair, error) {
	if a == uuid.Nil || b == uuid.Nil {
		return Pair{}, CanonicalizationError{A: a.String(), B: b.String(), Reason: "nil unit id"}
	}
	if a == b {
		return Pair{}, CanonicalizationError{A: a.String(), B: b.String(), Reason: "unit paired with itself"}
	}
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return Pair{lower: a, higher: b}, nil
}

// ParsePair builds a pair from two textual ids.
func ParsePair(a, b string) (Pair, error) {
	ua, err := uuid.Parse(a)
	if err != nil {
		return Pair{}, CanonicalizationError{A: a, B: b, Reason: "malformed unit id " + a}
	}
	ub, err := uuid.Parse(b)
	if err != nil {
		return Pair{}, CanonicalizationError{A: a, B: b, Reason: "malformed unit id " + b}
	}
	return NewPair(ua, ub)
}

func (p Pair) Lower() UnitID  { return p.lower }
func (p Pair) Higher() UnitID { return p.higher }

func (p Pair) Contains(id UnitID) bool {
	return p.lower == id || p.higher == id
}

func (p Pair) String() string {
	return p.lower.String() + ":" + p.higher.String()
}

func ComparePairs(a, b Pair) int {
	if c := bytes.Compare(a.lower[:], b.lower[:]); c != 0 {
		return c
	}
	return bytes.Compare(a.higher[:], b.higher[:])
}

func SortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		return ComparePairs(pairs[i], pairs[j]) < 0
	})
}

// DuplicateRelation is a persisted candidate pair with its review status.
type DuplicateRelation struct {
	Pair      Pair
	Status    RelationStatus
	Reasons   []Reason
	CreatedAt time.Time
	UpdatedAt time.Time
}
