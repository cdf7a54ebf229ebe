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

// Package slayer locates the breakpoint of a chimeric query between
// pairs of candidate parents with a sliding window and bootstrap support.
package slayer

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/shenwei356/chimscan/chimscan/seqs"
)

// Options contains the options of the breakpoint scanner.
type Options struct {
	WindowSize    int     // window width
	Increment     int     // step of windows
	MinSimilarity float64 // minimum identity of both sides to the parents, percentage
	MinSNPs       int     // minimum number of SNPs on both sides of the breakpoint
	Iterations    int     // bootstrap iterations
	Seed          int64   // seed of the bootstrap random source
}

// DefaultOptions is the default Options.
var DefaultOptions = Options{
	WindowSize:    50,
	Increment:     5,
	MinSimilarity: 90,
	MinSNPs:       10,
	Iterations:    1000,
	Seed:          1,
}

// CheckOptions checks the options.
func CheckOptions(opt *Options) error {
	if opt.WindowSize < 1 {
		return fmt.Errorf("invalid window size: %d, should be positive", opt.WindowSize)
	}
	if opt.Increment < 1 {
		return fmt.Errorf("invalid window increment: %d, should be positive", opt.Increment)
	}
	if opt.MinSimilarity < 0 || opt.MinSimilarity > 100 {
		return fmt.Errorf("invalid minimum similarity: %f, valid range: [0, 100]", opt.MinSimilarity)
	}
	if opt.MinSNPs < 0 {
		return fmt.Errorf("invalid minimum number of SNPs: %d", opt.MinSNPs)
	}
	if opt.Iterations < 1 {
		return fmt.Errorf("invalid bootstrap iterations: %d, should be positive", opt.Iterations)
	}
	return nil
}

// Result is a qualified window of a parent pair.
// Window bounds are 0-based and inclusive, in the coordinates of the input query.
type Result struct {
	ParentA, ParentB string

	// query-left resembling A, query-right resembling B
	DivRatioAB float64
	IdentityAB float64
	BootstrapA float64

	// query-left resembling B, query-right resembling A
	DivRatioBA float64
	IdentityBA float64
	BootstrapB float64

	QLA, QRB, QLB, QRA float64
	QA, QB, AB         float64

	WinLStart, WinLEnd int
	WinRStart, WinREnd int
}

// BootstrapMax returns the larger bootstrap support.
func (r *Result) BootstrapMax() float64 {
	if r.BootstrapA > r.BootstrapB {
		return r.BootstrapA
	}
	return r.BootstrapB
}

// IdentityMax returns the larger identity of the two hypotheses.
func (r *Result) IdentityMax() float64 {
	if r.IdentityAB > r.IdentityBA {
		return r.IdentityAB
	}
	return r.IdentityBA
}

// Scanner scans a query against candidate parents.
// It's stateless and safe for concurrent use.
type Scanner struct {
	opt Options
}

// NewScanner creates a Scanner.
func NewScanner(opt *Options) (*Scanner, error) {
	if err := CheckOptions(opt); err != nil {
		return nil, err
	}
	return &Scanner{opt: *opt}, nil
}

// Scan evaluates every pair of parents and returns all qualified windows,
// sorted by bootstrap support and then identity in descending order.
// Parents must have the same length as the query.
// The result is empty for less than two parents.
func (s *Scanner) Scan(ctx context.Context, query []byte, parents []*seqs.Sequence) ([]*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(parents) < 2 {
		return nil, nil
	}
	for _, p := range parents {
		if len(p.Aligned) != len(query) {
			return nil, fmt.Errorf("%w: parent %s has %d columns, the query has %d",
				seqs.ErrAlignmentLength, p.Name, len(p.Aligned), len(query))
		}
	}

	rng := rand.New(rand.NewSource(s.opt.Seed))

	results := make([]*Result, 0, 8)
	var err error
	for i := 0; i < len(parents)-1; i++ {
		for j := i + 1; j < len(parents); j++ {
			if err = ctx.Err(); err != nil {
				return nil, err
			}
			results, err = s.scanPair(ctx, query, parents[i], parents[j], rng, results)
			if err != nil {
				return nil, err
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].BootstrapMax(), results[j].BootstrapMax()
		if a != b {
			return a > b
		}
		return results[i].IdentityMax() > results[j].IdentityMax()
	})

	return results, nil
}

func (s *Scanner) scanPair(ctx context.Context, query []byte, pa, pb *seqs.Sequence,
	rng *rand.Rand, results []*Result) ([]*Result, error) {

	f, err := seqs.NewGapFilter(query, pa.Aligned, pb.Aligned)
	if err != nil {
		return results, err
	}
	q := f.Apply(query)
	a := f.Apply(pa.Aligned)
	b := f.Apply(pb.Aligned)
	spots := f.SpotMap() // 1-based positions in the input

	L := len(q)
	if L == 0 {
		return results, nil
	}

	var QLA, QRB, QLB, QRA, LAB, RAB float64
	var okLA, okRB, okLB, okRA bool
	var QA, QB, AB, QLA_QRB, QLB_QRA float64
	var lenL, lenR float64
	var candAB, candBA bool
	var snpsL, snpsR []SNP
	var bsA, bsB float64
	fL := float64(L)
	minSim := s.opt.MinSimilarity

	for k, w := range Windows(L, s.opt.WindowSize, s.opt.Increment) {
		if k&63 == 0 {
			if err = ctx.Err(); err != nil {
				return results, err
			}
		}

		bp := w.End

		QLA, okLA = PercentID(q, a, 0, bp)
		QRB, okRB = PercentID(q, b, bp+1, L-1)
		QLB, okLB = PercentID(q, b, 0, bp)
		QRA, okRA = PercentID(q, a, bp+1, L-1)
		if !(okLA && okRB && okLB && okRA) { // no comparable bases
			continue
		}
		LAB, _ = PercentID(a, b, 0, bp)
		RAB, _ = PercentID(a, b, bp+1, L-1)

		lenL = float64(bp + 1)
		lenR = fL - lenL

		QA = (QLA*lenL + QRA*lenR) / fL
		QB = (QLB*lenL + QRB*lenR) / fL
		AB = (LAB*lenL + RAB*lenR) / fL
		if QA == 0 || QB == 0 {
			continue
		}
		QLA_QRB = (QLA*lenL + QRB*lenR) / fL
		QLB_QRA = (QLB*lenL + QRA*lenR) / fL

		candAB = QLA_QRB > QA && QLA_QRB > QB && QLA >= minSim && QRB >= minSim
		candBA = QLB_QRA > QA && QLB_QRA > QB && QLB >= minSim && QRA >= minSim
		if !candAB && !candBA {
			continue
		}

		snpsL = SNPs(q, a, b, 0, bp)
		snpsR = SNPs(q, a, b, bp+1, L-1)
		if len(snpsL) < s.opt.MinSNPs || len(snpsR) < s.opt.MinSNPs {
			continue
		}

		bsA, bsB = Bootstrap(snpsL, snpsR, s.opt.Iterations, rng)

		results = append(results, &Result{
			ParentA:    pa.Name,
			ParentB:    pb.Name,
			DivRatioAB: minFloat(QLA_QRB/QA, QLA_QRB/QB),
			IdentityAB: QLA_QRB,
			BootstrapA: bsA,
			DivRatioBA: minFloat(QLB_QRA/QA, QLB_QRA/QB),
			IdentityBA: QLB_QRA,
			BootstrapB: bsB,

			QLA: QLA, QRB: QRB, QLB: QLB, QRA: QRA,
			QA: QA, QB: QB, AB: AB,

			WinLStart: spots[0] - 1,
			WinLEnd:   spots[bp] - 1,
			WinRStart: spots[bp+1] - 1,
			WinREnd:   spots[L-1] - 1,
		})
	}

	return results, nil
}

// Window is a window of the scan, its last column is the breakpoint.
type Window struct {
	Start, End int // 0-based, inclusive
}

// Windows returns windows of an alignment of the given length.
// The window size is reduced to length/2 if the length is less than 2*size+inc.
// Window starts are 0, inc, 2*inc, ..., and a window is kept only if
// its right side has at least size-1 columns after the breakpoint.
func Windows(length, size, inc int) []Window {
	if length < 2*size+inc {
		size = length / 2
	}
	if size < 1 || inc < 1 {
		return nil
	}

	ws := make([]Window, 0, (length-2*size)/inc+2)
	for bp := size - 1; bp <= length-size && bp < length-1; bp += inc {
		ws = append(ws, Window{Start: bp - size + 1, End: bp})
	}
	return ws
}

// PercentID computes the identity (percentage) of two aligned sequences
// in columns [start, end]. Columns with any non-ACGT non-gap character are ignored.
// Identical bases are divided by the average number of bases in the two
// sequences. ok is false when there are no bases.
func PercentID(x, y []byte, start, end int) (pid float64, ok bool) {
	var identical, countX, countY int
	var bx, by bool
	var cx, cy byte
	for i := start; i <= end; i++ {
		cx, cy = x[i], y[i]
		bx, by = seqs.IsBase(cx), seqs.IsBase(cy)
		if (!bx && !seqs.IsGap(cx)) || (!by && !seqs.IsGap(cy)) {
			continue
		}
		if !bx && !by {
			continue
		}
		if bx {
			countX++
		}
		if by {
			countY++
		}
		if cx == cy {
			identical++
		}
	}

	n := float64(countX+countY) / 2
	if n == 0 {
		return 0, false
	}
	return float64(identical) / n * 100, true
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
