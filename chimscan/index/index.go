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

package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/shenwei356/chimscan/chimscan/seqs"
)

// LeftFraction is the fraction of a sequence covered by its left fragment.
const LeftFraction = 0.33

// RightFraction is where the right fragment of a sequence starts.
const RightFraction = 0.66

// LeftFragment returns the first third of the unaligned bases.
func LeftFragment(unaligned []byte) []byte {
	return unaligned[:int(float64(len(unaligned))*LeftFraction)]
}

// RightFragment returns the last third of the unaligned bases.
func RightFragment(unaligned []byte) []byte {
	return unaligned[int(float64(len(unaligned))*RightFraction):]
}

// Hit is a search hit.
type Hit struct {
	Idx   int // index of the sequence in the template
	Name  string
	Score float64
}

// Searcher finds the template sequences most similar to a fragment.
type Searcher interface {
	// Search returns at most n hits, sorted by score in descending order,
	// ties are kept in the template order.
	Search(ctx context.Context, frag []byte, n int) ([]Hit, error)
	// Len returns the number of indexed sequences.
	Len() int
}

// Search modes.
const (
	ModeKmer  = "kmer"
	ModeAlign = "align"
)

// BuildOptions contains options for building the template indexes.
type BuildOptions struct {
	Mode string // kmer or align
	K    int    // k-mer size

	// scores of the alignment mode
	MatchScore    int
	MismatchScore int
	GapOpenScore  int
	GapExtScore   int

	// k-mer index files are saved as <CachePrefix>.left.<k>mer and
	// <CachePrefix>.right.<k>mer. Empty for no caching.
	CachePrefix string
}

// DefaultBuildOptions is the default BuildOptions.
var DefaultBuildOptions = BuildOptions{
	Mode:          ModeKmer,
	K:             7,
	MatchScore:    5,
	MismatchScore: -4,
	GapOpenScore:  -2,
	GapExtScore:   -1,
}

// CheckBuildOptions checks the options.
func CheckBuildOptions(opt *BuildOptions) error {
	switch opt.Mode {
	case ModeKmer:
		if opt.K < 1 || opt.K > 32 {
			return fmt.Errorf("invalid k value: %d, valid range: [1, 32]", opt.K)
		}
	case ModeAlign:
		if opt.MatchScore <= 0 {
			return fmt.Errorf("invalid match score: %d, should be positive", opt.MatchScore)
		}
		if opt.MismatchScore >= 0 {
			return fmt.Errorf("invalid mismatch score: %d, should be negative", opt.MismatchScore)
		}
		if opt.GapOpenScore > 0 || opt.GapExtScore >= 0 {
			return fmt.Errorf("invalid gap scores: %d, %d", opt.GapOpenScore, opt.GapExtScore)
		}
	default:
		return fmt.Errorf("invalid search mode: %s, available: %s, %s", opt.Mode, ModeKmer, ModeAlign)
	}
	return nil
}

// Template is a set of reference sequences with sub-indexes of
// their left and right fragments.
type Template struct {
	Seqs  *seqs.Collection
	Left  Searcher
	Right Searcher

	// status of k-mer index files
	LeftCache, RightCache CacheStatus
}

// Len returns the number of template sequences.
func (t *Template) Len() int {
	if t == nil || t.Seqs == nil {
		return 0
	}
	return t.Seqs.Len()
}

// Build builds the left and right sub-indexes of a template.
func Build(ctx context.Context, coll *seqs.Collection, opt *BuildOptions) (*Template, error) {
	if err := CheckBuildOptions(opt); err != nil {
		return nil, err
	}

	t := &Template{Seqs: coll}

	n := coll.Len()
	names := make([]string, n)
	lefts := make([][]byte, n)
	rights := make([][]byte, n)
	var u []byte
	for i, s := range coll.Seqs {
		if i&255 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		names[i] = s.Name
		u = s.Unaligned()
		lefts[i] = LeftFragment(u)
		rights[i] = RightFragment(u)
	}

	var err error
	switch opt.Mode {
	case ModeKmer:
		if opt.CachePrefix == "" {
			if t.Left, err = NewKmerDB(ctx, opt.K, names, lefts); err != nil {
				return nil, err
			}
			if t.Right, err = NewKmerDB(ctx, opt.K, names, rights); err != nil {
				return nil, err
			}
			return t, nil
		}

		fp := coll.Fingerprint()
		t.Left, t.LeftCache, err = LoadOrBuildKmerDB(ctx,
			KmerDBFile(opt.CachePrefix, "left", opt.K), opt.K, fp, names, lefts)
		if err != nil {
			return nil, err
		}
		t.Right, t.RightCache, err = LoadOrBuildKmerDB(ctx,
			KmerDBFile(opt.CachePrefix, "right", opt.K), opt.K, fp, names, rights)
		if err != nil {
			return nil, err
		}
	case ModeAlign:
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		t.Left = NewAlignDB(opt, names, lefts)
		t.Right = NewAlignDB(opt, names, rights)
	}

	return t, nil
}

// KmerDBFile returns the path of a k-mer index file.
func KmerDBFile(prefix string, side string, k int) string {
	return fmt.Sprintf("%s.%s.%dmer", prefix, side, k)
}

// topHits sorts hits by score in descending order, ties by index,
// and keeps at most n of them.
func topHits(hits []Hit, n int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if n >= 0 && len(hits) > n {
		hits = hits[:n]
	}
	return hits
}
