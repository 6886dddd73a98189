package recognize

import (
	"strings"
	"unicode"
)

// ErrorRate is the word-level edit distance between an expected and a
// recognized transcript.
type ErrorRate struct {
	WER           float64 // edits per reference word; 0 is a perfect transcript
	Substitutions int
	Insertions    int
	Deletions     int
	RefWords      int
}

// Edits returns the total number of word edits.
func (e ErrorRate) Edits() int {
	return e.Substitutions + e.Insertions + e.Deletions
}

// editCell is one cell of the alignment table, carrying the edit mix of the
// cheapest path into it.
type editCell struct {
	subs, ins, dels int
}

func (c editCell) cost() int { return c.subs + c.ins + c.dels }

// WordErrorRate aligns hypothesis against reference after lowercasing and
// stripping punctuation. An empty reference yields a zero ErrorRate.
func WordErrorRate(reference, hypothesis string) ErrorRate {
	ref := words(reference)
	hyp := words(hypothesis)
	if len(ref) == 0 {
		return ErrorRate{}
	}

	// Two rows suffice: row i depends only on row i-1.
	prev := make([]editCell, len(hyp)+1)
	cur := make([]editCell, len(hyp)+1)
	for j := range prev {
		prev[j] = editCell{ins: j}
	}
	for i := 1; i <= len(ref); i++ {
		cur[0] = editCell{dels: i}
		for j := 1; j <= len(hyp); j++ {
			if ref[i-1] == hyp[j-1] {
				cur[j] = prev[j-1]
				continue
			}
			best := prev[j-1]
			best.subs++
			if del := prev[j]; del.cost()+1 < best.cost() {
				best = del
				best.dels++
			}
			if ins := cur[j-1]; ins.cost()+1 < best.cost() {
				best = ins
				best.ins++
			}
			cur[j] = best
		}
		prev, cur = cur, prev
	}

	last := prev[len(hyp)]
	return ErrorRate{
		WER:           float64(last.cost()) / float64(len(ref)),
		Substitutions: last.subs,
		Insertions:    last.ins,
		Deletions:     last.dels,
		RefWords:      len(ref),
	}
}

func words(s string) []string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Fields(s)
}
