package matcher

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

func TestFileNumberFilter(t *testing.T) {
	filter := NewFileNumberFilter(map[string]int64{
		"rare":   1,
		"edge":   50,
		"common": 51,
	}, 50)

	assert.True(t, filter.Allows("RARE"))
	assert.True(t, filter.Allows("edge"))
	assert.False(t, filter.Allows("common"))
	assert.False(t, filter.Allows("unknown"))
	assert.Equal(t, 2, filter.Len())
	assert.Equal(t, 1, filter.Rejected())

	values := filter.Values()
	sort.Strings(values)
	assert.Equal(t, []string{"edge", "rare"}, values)
}

func TestCountFileNumbersFoldsCase(t *testing.T) {
	u1 := domain.UnitAttributes{FileNumbers: []string{"AB 1/20", "cd"}}
	u2 := domain.UnitAttributes{FileNumbers: []string{"ab 1/20", ""}}

	counts := CountFileNumbers([]domain.UnitAttributes{u1, u2})
	assert.Equal(t, map[string]int64{"ab 1/20": 2, "cd": 1}, counts)
	assert.ElementsMatch(t, []string{"ab 1/20", "cd"}, FileNumbersOf([]domain.UnitAttributes{u1, u2}))
}

func TestCountFileNumbersCountsUnitsOnce(t *testing.T) {
	u1 := domain.UnitAttributes{FileNumbers: []string{"X 1/20", "x 1/20", "other"}}
	u2 := domain.UnitAttributes{FileNumbers: []string{"X 1/20"}}

	counts := CountFileNumbers([]domain.UnitAttributes{u1, u2})
	assert.Equal(t, int64(2), counts["x 1/20"])
	assert.Equal(t, int64(1), counts["other"])
}

func TestRulesFor(t *testing.T) {
	rules, err := RulesFor([]domain.Reason{domain.ReasonECLI})
	assert.NoError(t, err)
	assert.Len(t, rules, 1)
	assert.Equal(t, domain.ReasonECLI, rules[0].Reason())

	_, err = RulesFor([]domain.Reason{"soundex"})
	assert.Error(t, err)
}
