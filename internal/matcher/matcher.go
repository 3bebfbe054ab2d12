package matcher

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

var tracer = otel.Tracer("matcher")

// Input is a consistent snapshot for one matching pass.
// Triggers are the units under evaluation. Corpus holds the units they may
// pair with and may overlap Triggers. Only pairs with at least one trigger
// member are emitted.
type Input struct {
	Triggers []domain.UnitAttributes
	Corpus   []domain.UnitAttributes
	Filter   FileNumberFilter
}

type Matcher struct {
	rules    []Rule
	eligible map[string]struct{}
	logger   *slog.Logger
}

// NewMatcher builds a matcher for rules. A nil category list makes every
// unit eligible.
func NewMatcher(rules []Rule, eligibleCategories []string, logger *slog.Logger) *Matcher {
	var eligible map[string]struct{}
	if eligibleCategories != nil {
		eligible = make(map[string]struct{}, len(eligibleCategories))
		for _, c := range eligibleCategories {
			eligible[c] = struct{}{}
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		rules:    rules,
		eligible: eligible,
		logger:   logger.With(slog.String("module", "matcher")),
	}
}

func (m *Matcher) Eligible(u domain.UnitAttributes) bool {
	if m.eligible == nil {
		return true
	}
	_, ok := m.eligible[u.DocumentCategory]
	return ok
}

type member struct {
	unit    domain.UnitAttributes
	trigger bool
}

// Match evaluates every rule against the snapshot and returns the union of
// their pairs. Rules run concurrently and share no state.
func (m *Matcher) Match(ctx context.Context, in Input) (*CandidateSet, error) {
	ctx, span := tracer.Start(ctx, "Matcher.Match")
	defer span.End()

	members := m.members(in)
	span.SetAttributes(attribute.Int("members", len(members)))

	results := make([]*CandidateSet, len(m.rules))
	g, gctx := errgroup.WithContext(ctx)
	for i, rule := range m.rules {
		g.Go(func() error {
			set, err := m.apply(gctx, rule, members, in.Filter)
			if err != nil {
				return err
			}
			results[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	union := NewCandidateSet()
	for _, set := range results {
		union.Union(set)
	}
	for _, dropped := range union.Dropped() {
		m.logger.WarnContext(ctx, "dropped candidate pair",
			slog.String("a", dropped.A),
			slog.String("b", dropped.B),
			slog.String("reason", dropped.Reason),
		)
	}
	span.SetAttributes(attribute.Int("pairs", union.Len()), attribute.Int("dropped", len(union.Dropped())))
	return union, nil
}

// members merges triggers and corpus into one eligible list keyed by id.
func (m *Matcher) members(in Input) []member {
	index := make(map[domain.UnitID]int)
	members := make([]member, 0, len(in.Triggers)+len(in.Corpus))
	add := func(u domain.UnitAttributes, trigger bool) {
		if !m.Eligible(u) {
			return
		}
		// units without an id are kept apart so that their pairs surface as
		// canonicalization errors
		if u.ID == uuid.Nil {
			members = append(members, member{unit: u, trigger: trigger})
			return
		}
		if i, ok := index[u.ID]; ok {
			members[i].trigger = members[i].trigger || trigger
			return
		}
		index[u.ID] = len(members)
		members = append(members, member{unit: u, trigger: trigger})
	}
	for _, u := range in.Triggers {
		add(u, true)
	}
	for _, u := range in.Corpus {
		add(u, false)
	}
	return members
}

func (m *Matcher) apply(ctx context.Context, rule Rule, members []member, filter FileNumberFilter) (*CandidateSet, error) {
	buckets := make(map[string][]int)
	for i, mb := range members {
		seen := make(map[string]struct{})
		for _, k := range rule.Keys(mb.unit, filter) {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			buckets[k] = append(buckets[k], i)
		}
	}

	set := NewCandidateSet()
	for _, bucket := range buckets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < len(bucket); x++ {
			for y := x + 1; y < len(bucket); y++ {
				a, b := members[bucket[x]], members[bucket[y]]
				if !a.trigger && !b.trigger {
					continue
				}
				p, err := domain.NewPair(a.unit.ID, b.unit.ID)
				if err != nil {
					var cerr domain.CanonicalizationError
					if errors.As(err, &cerr) {
						set.Drop(cerr)
						continue
					}
					return nil, err
				}
				set.Add(p, rule.Reason())
			}
		}
	}
	return set, nil
}
