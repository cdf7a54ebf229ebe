// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package parents finds candidate parents of a query from a template.
package parents

import (
	"context"
	"fmt"
	"sort"

	"github.com/shenwei356/chimscan/chimscan/index"
	"github.com/shenwei356/chimscan/chimscan/seqs"
)

// Options contains the options of candidate searching.
type Options struct {
	NumWanted     int // hits retained per search of each fragment
	MatchScore    int
	MismatchScore int
	SwitchPenalty int // score of switching from one parent to another, <= 0

	MinSimilarity float64 // percentage
	MinCoverage   float64 // percentage
}

// DefaultOptions is the default Options.
var DefaultOptions = Options{
	NumWanted:     15,
	MatchScore:    5,
	MismatchScore: -4,
	SwitchPenalty: -27,
	MinSimilarity: 90,
	MinCoverage:   70,
}

// CheckOptions checks the options.
func CheckOptions(opt *Options) error {
	if opt.NumWanted < 1 {
		return fmt.Errorf("invalid number of wanted hits: %d, should be positive", opt.NumWanted)
	}
	if opt.MatchScore <= 0 {
		return fmt.Errorf("invalid match score: %d, should be positive", opt.MatchScore)
	}
	if opt.MismatchScore >= 0 {
		return fmt.Errorf("invalid mismatch score: %d, should be negative", opt.MismatchScore)
	}
	if opt.SwitchPenalty > 0 {
		return fmt.Errorf("invalid switch penalty: %d, should not be positive", opt.SwitchPenalty)
	}
	if opt.MinSimilarity < 0 || opt.MinSimilarity > 100 {
		return fmt.Errorf("invalid minimum similarity: %f, valid range: [0, 100]", opt.MinSimilarity)
	}
	if opt.MinCoverage < 0 || opt.MinCoverage > 100 {
		return fmt.Errorf("invalid minimum coverage: %f, valid range: [0, 100]", opt.MinCoverage)
	}
	return nil
}

// Candidate is a segment of the query explained by one parent.
type Candidate struct {
	Name    string
	Aligned []byte // the whole parent, in the column frame of the query

	RegionStart int // 0-based, inclusive
	RegionEnd   int // 0-based, inclusive

	Identity float64 // percentage of identical bases in the region
	Coverage float64 // percentage of query bases in the region covered by parent bases

	Order int // discovery order
}

// Length returns the length of the region.
func (c *Candidate) Length() int { return c.RegionEnd - c.RegionStart + 1 }

// Score blends identity and coverage.
func (c *Candidate) Score() float64 { return c.Identity * c.Coverage / 100 }

// Weight is the product of the region length and the score.
func (c *Candidate) Weight() float64 { return float64(c.Length()) * c.Score() }

// Sequence returns the parent as a Sequence.
func (c *Candidate) Sequence() *seqs.Sequence {
	return &seqs.Sequence{Name: c.Name, Aligned: c.Aligned}
}

// Finder searches candidate parents of queries in a template.
// It's stateless and safe for concurrent use.
type Finder struct {
	opt Options
}

// NewFinder creates a Finder.
func NewFinder(opt *Options) (*Finder, error) {
	if err := CheckOptions(opt); err != nil {
		return nil, err
	}
	return &Finder{opt: *opt}, nil
}

// Hits searches the left and right fragments of the query and
// returns the indexes of hit sequences in discovery order, left hits first.
func (f *Finder) Hits(ctx context.Context, query []byte, tpl *index.Template) ([]int, error) {
	u := (&seqs.Sequence{Aligned: query}).Unaligned()
	if len(u) == 0 {
		return nil, nil
	}

	hitsL, err := tpl.Left.Search(ctx, index.LeftFragment(u), f.opt.NumWanted)
	if err != nil {
		return nil, err
	}
	hitsR, err := tpl.Right.Search(ctx, index.RightFragment(u), f.opt.NumWanted)
	if err != nil {
		return nil, err
	}

	idxs := make([]int, 0, len(hitsL)+len(hitsR))
	seen := make(map[int]struct{}, len(hitsL)+len(hitsR))
	for _, hits := range [][]index.Hit{hitsL, hitsR} {
		for _, h := range hits {
			if _, ok := seen[h.Idx]; ok {
				continue
			}
			seen[h.Idx] = struct{}{}
			idxs = append(idxs, h.Idx)
		}
	}
	return idxs, nil
}

// Find returns candidate parents of the query: every segment of the best
// chimeric path of the query through the hit sequences.
// The query must have the alignment length of the template.
// Nothing is returned if the path is not similar enough to the query or
// covers too little of it.
func (f *Finder) Find(ctx context.Context, query []byte, tpl *index.Template) ([]*Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tpl.Len() == 0 {
		return nil, nil
	}
	if n := tpl.Seqs.AlignmentLength(); n != len(query) {
		return nil, fmt.Errorf("%w: the query has %d columns, the template has %d",
			seqs.ErrAlignmentLength, len(query), n)
	}

	idxs, err := f.Hits(ctx, query, tpl)
	if err != nil {
		return nil, err
	}
	if len(idxs) == 0 {
		return nil, nil
	}

	refs := make([]*seqs.Sequence, len(idxs))
	for i, j := range idxs {
		refs[i] = tpl.Seqs.Seqs[j]
	}

	path := f.bestPath(query, refs)

	// the whole path
	matches, covered, bases := pathStats(query, refs, path, 0, len(query)-1)
	if bases == 0 {
		return nil, nil
	}
	if pct(matches, bases) < f.opt.MinSimilarity || pct(covered, bases) < f.opt.MinCoverage {
		return nil, nil
	}

	// segments
	cands := make([]*Candidate, 0, 4)
	var start, order int
	for i := 1; i <= len(path); i++ {
		if i < len(path) && path[i] == path[start] {
			continue
		}

		matches, covered, bases = pathStats(query, refs, path, start, i-1)
		if bases > 0 {
			c := &Candidate{
				Name:        refs[path[start]].Name,
				Aligned:     refs[path[start]].Aligned,
				RegionStart: start,
				RegionEnd:   i - 1,
				Identity:    pct(matches, bases),
				Coverage:    pct(covered, bases),
				Order:       order,
			}
			if c.Identity >= f.opt.MinSimilarity && c.Coverage >= f.opt.MinCoverage {
				cands = append(cands, c)
				order++
			}
		}
		start = i
	}

	return cands, nil
}

// bestPath assigns a parent to every column, maximizing the total score
// of matches and mismatches with a penalty on every switch of parents.
// Ties keep the current parent, or choose the parent found earlier.
func (f *Finder) bestPath(query []byte, refs []*seqs.Sequence) []int {
	L := len(query)
	P := len(refs)
	path := make([]int, L)
	if L == 0 {
		return path
	}

	match, mismatch, penalty := f.opt.MatchScore, f.opt.MismatchScore, f.opt.SwitchPenalty

	score := func(col, p int) int {
		q := query[col]
		if seqs.IsGap(q) {
			return 0
		}
		if refs[p].Aligned[col] == q {
			return match
		}
		return mismatch
	}

	prev := make([]int, P)
	cur := make([]int, P)
	back := make([]int, L*P) // parent of the previous column

	for p := 0; p < P; p++ {
		prev[p] = score(0, p)
		back[p] = p
	}

	var best, from, s int
	for col := 1; col < L; col++ {
		for p := 0; p < P; p++ {
			best, from = prev[p], p
			for o := 0; o < P; o++ {
				if o == p {
					continue
				}
				if s = prev[o] + penalty; s > best {
					best, from = s, o
				}
			}
			cur[p] = best + score(col, p)
			back[col*P+p] = from
		}
		prev, cur = cur, prev
	}

	end := 0
	for p := 1; p < P; p++ {
		if prev[p] > prev[end] {
			end = p
		}
	}

	path[L-1] = end
	for col := L - 1; col > 0; col-- {
		path[col-1] = back[col*P+path[col]]
	}
	return path
}

// pathStats counts, in columns [start, end] where the query has a base,
// identical bases, bases covered by a parent base, and query bases.
func pathStats(query []byte, refs []*seqs.Sequence, path []int, start, end int) (matches, covered, bases int) {
	var q, r byte
	for i := start; i <= end; i++ {
		q = query[i]
		if seqs.IsGap(q) {
			continue
		}
		bases++
		r = refs[path[i]].Aligned[i]
		if seqs.IsGap(r) {
			continue
		}
		covered++
		if r == q {
			matches++
		}
	}
	return
}

func pct(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b) * 100
}

// Dedup keeps, for every parent, the candidate with the highest weight.
// Parents keep the order of their first appearance.
func Dedup(cands []*Candidate) []*Candidate {
	out := make([]*Candidate, 0, len(cands))
	pos := make(map[string]int, len(cands))
	for _, c := range cands {
		i, ok := pos[c.Name]
		if !ok {
			pos[c.Name] = len(out)
			out = append(out, c)
			continue
		}
		if c.Weight() > out[i].Weight() {
			out[i] = c
		}
	}
	return out
}

// Rank keeps the max candidates of the highest weights when there are
// more than max of them. Ties are kept in the input order.
func Rank(cands []*Candidate, max int) []*Candidate {
	out := make([]*Candidate, len(cands))
	copy(out, cands)
	if len(out) <= max {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Weight() > out[j].Weight()
	})
	if max < 0 {
		max = 0
	}
	return out[:max]
}
