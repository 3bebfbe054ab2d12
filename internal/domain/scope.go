package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type ScopeKind string

const (
	ScopeFull    ScopeKind = "full"
	ScopeChanged ScopeKind = "changed"
	ScopeUnits   ScopeKind = "units"
)

// Scope selects the units a cycle evaluates.
// A changed scope is resolved into a units scope before matching.
type Scope struct {
	Kind    ScopeKind
	UnitIDs []UnitID
	Since   time.Time
}

func FullScope() Scope {
	return Scope{Kind: ScopeFull}
}

func UnitsScope(ids ...UnitID) Scope {
	return Scope{Kind: ScopeUnits, UnitIDs: ids}
}

func ChangedScope() Scope {
	return Scope{Kind: ScopeChanged}
}

func (s Scope) IsFull() bool {
	return s.Kind == ScopeFull
}

func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeFull, ScopeChanged:
		return nil
	case ScopeUnits:
		if len(s.UnitIDs) == 0 {
			return errors.Wrap(ErrInvalidScope, "units scope without unit ids")
		}
		for _, id := range s.UnitIDs {
			if id == uuid.Nil {
				return errors.Wrap(ErrInvalidScope, "units scope contains nil id")
			}
		}
		return nil
	default:
		return errors.Wrapf(ErrInvalidScope, "unknown scope kind %q", s.Kind)
	}
}

// ParseScope builds a scope from its wire form.
func ParseScope(kind string, ids []string) (Scope, error) {
	scope := Scope{Kind: ScopeKind(kind)}
	if scope.Kind == "" {
		scope.Kind = ScopeChanged
	}
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Scope{}, errors.Wrapf(ErrInvalidScope, "malformed unit id %q", raw)
		}
		scope.UnitIDs = append(scope.UnitIDs, id)
	}
	if len(scope.UnitIDs) > 0 && scope.Kind != ScopeUnits {
		return Scope{}, errors.Wrap(ErrInvalidScope, "unit ids are only accepted for the units scope")
	}
	return scope, scope.Validate()
}
