package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

const pendingGenerationKey = "dupcheck:pending:generation"

// PendingCache keeps per-unit relation lookups in memcached. Entries are keyed
// by a generation counter, so bumping the counter drops every entry at once.
type PendingCache struct {
	mc     *memcache.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewPendingCache(mc *memcache.Client, ttl time.Duration, logger *slog.Logger) *PendingCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingCache{mc: mc, ttl: ttl, logger: logger.With(slog.String("module", "pending-cache"))}
}

type cachedRelation struct {
	LowerID   uuid.UUID `json:"l"`
	HigherID  uuid.UUID `json:"h"`
	Status    string    `json:"s"`
	Reasons   []string  `json:"r,omitempty"`
	CreatedAt time.Time `json:"c"`
	UpdatedAt time.Time `json:"u"`
}

func (c *PendingCache) generation() (uint64, error) {
	item, err := c.mc.Get(pendingGenerationKey)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(item.Value), 10, 64)
}

func (c *PendingCache) key(id domain.UnitID) (string, error) {
	gen, err := c.generation()
	if err != nil {
		return "", err
	}
	return "dupcheck:pending:" + strconv.FormatUint(gen, 10) + ":" + id.String(), nil
}

func (c *PendingCache) Get(ctx context.Context, id domain.UnitID) ([]domain.DuplicateRelation, bool) {
	key, err := c.key(id)
	if err != nil {
		c.logger.DebugContext(ctx, "pending cache unavailable", slog.String("error", err.Error()))
		return nil, false
	}
	item, err := c.mc.Get(key)
	if err != nil {
		return nil, false
	}

	var cached []cachedRelation
	if err := json.Unmarshal(item.Value, &cached); err != nil {
		return nil, false
	}
	relations := make([]domain.DuplicateRelation, 0, len(cached))
	for _, cr := range cached {
		pair, err := domain.NewPair(cr.LowerID, cr.HigherID)
		if err != nil {
			return nil, false
		}
		reasons := make([]domain.Reason, 0, len(cr.Reasons))
		for _, r := range cr.Reasons {
			reasons = append(reasons, domain.Reason(r))
		}
		relations = append(relations, domain.DuplicateRelation{
			Pair:      pair,
			Status:    domain.RelationStatus(cr.Status),
			Reasons:   reasons,
			CreatedAt: cr.CreatedAt,
			UpdatedAt: cr.UpdatedAt,
		})
	}
	return relations, true
}

func (c *PendingCache) Set(ctx context.Context, id domain.UnitID, relations []domain.DuplicateRelation) {
	key, err := c.key(id)
	if err != nil {
		return
	}
	cached := make([]cachedRelation, 0, len(relations))
	for _, rel := range relations {
		reasons := make([]string, 0, len(rel.Reasons))
		for _, r := range rel.Reasons {
			reasons = append(reasons, string(r))
		}
		cached = append(cached, cachedRelation{
			LowerID:   rel.Pair.Lower(),
			HigherID:  rel.Pair.Higher(),
			Status:    string(rel.Status),
			Reasons:   reasons,
			CreatedAt: rel.CreatedAt,
			UpdatedAt: rel.UpdatedAt,
		})
	}
	value, err := json.Marshal(cached)
	if err != nil {
		return
	}
	err = c.mc.Set(&memcache.Item{Key: key, Value: value, Expiration: int32(c.ttl.Seconds())})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to cache pending relations", slog.String("error", err.Error()))
	}
}

// Invalidate bumps the generation counter.
func (c *PendingCache) Invalidate(ctx context.Context) error {
	_, err := c.mc.Increment(pendingGenerationKey, 1)
	if errors.Is(err, memcache.ErrCacheMiss) {
		err = c.mc.Add(&memcache.Item{Key: pendingGenerationKey, Value: []byte("1")})
		if errors.Is(err, memcache.ErrNotStored) {
			_, err = c.mc.Increment(pendingGenerationKey, 1)
		}
	}
	return err
}
