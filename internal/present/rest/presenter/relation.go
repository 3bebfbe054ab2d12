package presenter

import (
	"github.com/totegamma/caselaw-dupcheck"
	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

func Relation(rel domain.DuplicateRelation) dupcheck.Relation {
	reasons := make([]string, 0, len(rel.Reasons))
	for _, r := range rel.Reasons {
		reasons = append(reasons, string(r))
	}
	return dupcheck.Relation{
		LowerID:   rel.Pair.Lower().String(),
		HigherID:  rel.Pair.Higher().String(),
		Status:    dupcheck.RelationStatus(rel.Status),
		Reasons:   reasons,
		CreatedAt: rel.CreatedAt,
		UpdatedAt: rel.UpdatedAt,
	}
}
