package extract

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// columnKind is the inferred type of a CSV column.
type columnKind int

const (
	kindInteger columnKind = iota
	kindFloat
	kindText
)

func (k columnKind) String() string {
	switch k {
	case kindInteger:
		return "integer"
	case kindFloat:
		return "float"
	default:
		return "text"
	}
}

// inferKind classifies a column by its non-empty values. A column with no
// non-empty values is text.
func inferKind(values []string) columnKind {
	kind := kindInteger
	seen := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen = true
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			kind = kindFloat
			continue
		}
		return kindText
	}
	if !seen {
		return kindText
	}
	return kind
}

// describe produces a one-line descriptive summary for a column:
// count/mean/std/min/quartiles/max for numeric columns, distinct-value
// summaries for text columns.
func describe(values []string, kind columnKind) string {
	if kind == kindText {
		return describeText(values)
	}
	return describeNumeric(values)
}

func describeNumeric(values []string) string {
	var nums []float64
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return "count=0"
	}

	sort.Float64s(nums)
	mean := 0.0
	for _, n := range nums {
		mean += n
	}
	mean /= float64(len(nums))

	std := 0.0
	if len(nums) > 1 {
		for _, n := range nums {
			std += (n - mean) * (n - mean)
		}
		std = math.Sqrt(std / float64(len(nums)-1))
	}

	return fmt.Sprintf("count=%d mean=%s std=%s min=%s 25%%=%s 50%%=%s 75%%=%s max=%s",
		len(nums),
		formatNum(mean),
		formatNum(std),
		formatNum(nums[0]),
		formatNum(quantile(nums, 0.25)),
		formatNum(quantile(nums, 0.50)),
		formatNum(quantile(nums, 0.75)),
		formatNum(nums[len(nums)-1]),
	)
}

func describeText(values []string) string {
	counts := make(map[string]int)
	total := 0
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		counts[v]++
		total++
	}
	if total == 0 {
		return "count=0"
	}

	top := ""
	freq := 0
	for v, c := range counts {
		if c > freq || (c == freq && v < top) {
			top = v
			freq = c
		}
	}
	return fmt.Sprintf("count=%d unique=%d top=%q freq=%d", total, len(counts), top, freq)
}

// quantile computes the q-th quantile of a sorted slice using linear
// interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func formatNum(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
