package matcher

import (
	"strings"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

// Fold normalizes an attribute value for case-insensitive comparison.
func Fold(s string) string {
	return strings.ToLower(s)
}

// CountFileNumbers counts, per folded value, how many distinct units carry it
// as an own or deviating file number.
func CountFileNumbers(units []domain.UnitAttributes) map[string]int64 {
	counts := make(map[string]int64)
	for _, u := range units {
		seen := make(map[string]struct{}, len(u.FileNumbers))
		for _, fn := range u.FileNumbers {
			if fn == "" {
				continue
			}
			f := Fold(fn)
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			counts[f]++
		}
	}
	return counts
}

// FileNumbersOf returns the distinct folded file numbers of units.
func FileNumbersOf(units []domain.UnitAttributes) []string {
	return distinctFolded(units, func(u domain.UnitAttributes) []string { return u.FileNumbers })
}

// ECLIsOf returns the distinct folded ECLIs of units.
func ECLIsOf(units []domain.UnitAttributes) []string {
	return distinctFolded(units, func(u domain.UnitAttributes) []string { return u.ECLIs })
}

func distinctFolded(units []domain.UnitAttributes, values func(domain.UnitAttributes) []string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0)
	for _, u := range units {
		for _, v := range values(u) {
			if v == "" {
				continue
			}
			f := Fold(v)
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			result = append(result, f)
		}
	}
	return result
}

// FileNumberFilter keeps the file numbers whose corpus frequency does not
// exceed the threshold. Values that were never counted are rejected.
type FileNumberFilter struct {
	threshold int
	allowed   map[string]struct{}
	rejected  int
}

func NewFileNumberFilter(frequencies map[string]int64, threshold int) FileNumberFilter {
	f := FileNumberFilter{
		threshold: threshold,
		allowed:   make(map[string]struct{}, len(frequencies)),
	}
	for value, count := range frequencies {
		if count <= int64(threshold) {
			f.allowed[Fold(value)] = struct{}{}
		} else {
			f.rejected++
		}
	}
	return f
}

func (f FileNumberFilter) Allows(fileNumber string) bool {
	_, ok := f.allowed[Fold(fileNumber)]
	return ok
}

// Values returns the retained file numbers in folded form.
func (f FileNumberFilter) Values() []string {
	values := make([]string, 0, len(f.allowed))
	for v := range f.allowed {
		values = append(values, v)
	}
	return values
}

func (f FileNumberFilter) Len() int       { return len(f.allowed) }
func (f FileNumberFilter) Rejected() int  { return f.rejected }
func (f FileNumberFilter) Threshold() int { return f.threshold }
