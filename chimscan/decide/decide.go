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

// Package decide flags chimeras from scan results and trims them.
package decide

import (
	"github.com/shenwei356/chimscan/chimscan/seqs"
	"github.com/shenwei356/chimscan/chimscan/slayer"
)

// Thresholds of the chimera decision.
type Thresholds struct {
	MinBootstrap  float64 // percentage
	MinDivergence float64 // divergence ratio
}

// IsChimeric tells if a scan result supports a chimera: one of the
// two hypotheses has enough bootstrap support and divergence ratio.
func (t Thresholds) IsChimeric(r *slayer.Result) bool {
	if r == nil {
		return false
	}
	return (r.BootstrapA >= t.MinBootstrap && r.DivRatioAB >= t.MinDivergence) ||
		(r.BootstrapB >= t.MinBootstrap && r.DivRatioBA >= t.MinDivergence)
}

// Supported tells if one of the hypotheses has enough bootstrap support.
func (t Thresholds) Supported(r *slayer.Result) bool {
	if r == nil {
		return false
	}
	return r.BootstrapA >= t.MinBootstrap || r.BootstrapB >= t.MinBootstrap
}

// Range is a 0-based half-open range of original columns.
type Range struct {
	Start, End int
}

// Mask replaces columns of s in the ranges with the mask character, in place.
// Ranges are clipped to the sequence.
func Mask(s []byte, ranges ...Range) {
	for _, r := range ranges {
		if r.Start < 0 {
			r.Start = 0
		}
		if r.End > len(s) {
			r.End = len(s)
		}
		for i := r.Start; i < r.End; i++ {
			s[i] = seqs.MaskChar
		}
	}
}

// Piece is the best scan result of a query, or one half of it,
// with the spot map from scan coordinates to original columns.
type Piece struct {
	Result *slayer.Result // nil for no results
	Spots  seqs.SpotMap
}

// segment lengths in original coordinates
func (p *Piece) lengths() (left, right int) {
	r := p.Result
	return p.Spots[r.WinLEnd] - p.Spots[r.WinLStart], p.Spots[r.WinREnd] - p.Spots[r.WinRStart]
}

// TrimRanges returns the columns to mask for a chimeric query scanned as a whole:
// the shorter segment is masked and the longer one kept.
func TrimRanges(p *Piece, length int) []Range {
	if p == nil || p.Result == nil {
		return nil
	}
	r := p.Result
	lenL, lenR := p.lengths()
	if lenL > lenR {
		return []Range{{p.Spots[r.WinRStart] - 1, length}}
	}
	return []Range{{0, p.Spots[r.WinLEnd]}}
}

// Trim returns a copy of a chimeric query with the shorter segment masked.
// Trimming an already trimmed sequence changes nothing.
func Trim(aligned []byte, p *Piece) []byte {
	s := make([]byte, len(aligned))
	copy(s, aligned)
	Mask(s, TrimRanges(p, len(s))...)
	return s
}

// Choice is the part of a two-piece query to keep.
type Choice int

const (
	KeepAll   Choice = iota // not chimeric
	KeepLeft                // only the right half is chimeric
	KeepRight               // only the left half is chimeric
	KeepLL                  // left segment of the left half
	KeepLR                  // right segment of the left half
	KeepRL                  // left segment of the right half
	KeepRR                  // right segment of the right half
)

func (c Choice) String() string {
	switch c {
	case KeepAll:
		return "all"
	case KeepLeft:
		return "left"
	case KeepRight:
		return "right"
	case KeepLL:
		return "left-left"
	case KeepLR:
		return "left-right"
	case KeepRL:
		return "right-left"
	case KeepRR:
		return "right-right"
	}
	return "unknown"
}

// Decision is the reconciled decision of a query scanned in two pieces.
type Decision struct {
	Flag          bool
	LeftChimeric  bool
	RightChimeric bool
	Choice        Choice
}

// decision table keyed by (leftChimeric, rightChimeric)
var choiceTable = map[[2]bool]func(left, right *Piece) Choice{
	{false, false}: func(_, _ *Piece) Choice { return KeepAll },
	{true, false}:  func(_, _ *Piece) Choice { return KeepRight },
	{false, true}:  func(_, _ *Piece) Choice { return KeepLeft },
	{true, true}:   longestSegment,
}

// longestSegment chooses the longest of the four segments. Ties are
// resolved in the order of left-left, left-right, right-left, right-right.
func longestSegment(left, right *Piece) Choice {
	ll, lr := left.lengths()
	rl, rr := right.lengths()

	choice, length := KeepLL, ll
	for _, c := range []struct {
		choice Choice
		length int
	}{{KeepLR, lr}, {KeepRL, rl}, {KeepRR, rr}} {
		if c.length > length {
			choice, length = c.choice, c.length
		}
	}
	return choice
}

// Reconcile decides on a query scanned as two halves.
// The query is chimeric if either half is, a half is considered chimeric
// when its best result has enough bootstrap support.
func (t Thresholds) Reconcile(left, right *Piece) Decision {
	var d Decision
	d.Flag = t.IsChimeric(left.Result) || t.IsChimeric(right.Result)
	if d.Flag {
		d.LeftChimeric = t.Supported(left.Result)
		d.RightChimeric = t.Supported(right.Result)
	}
	d.Choice = choiceTable[[2]bool{d.LeftChimeric, d.RightChimeric}](left, right)
	return d
}

// PieceRanges returns the columns to mask for a choice of a two-piece query.
func PieceRanges(choice Choice, left, right *Piece, length int) []Range {
	var L, R *slayer.Result
	if left != nil {
		L = left.Result
	}
	if right != nil {
		R = right.Result
	}

	switch choice {
	case KeepRight:
		return []Range{{0, left.Spots[L.WinREnd]}}
	case KeepLeft:
		return []Range{{right.Spots[R.WinLStart] - 1, length}}
	case KeepLL:
		return []Range{{left.Spots[L.WinRStart] - 1, length}}
	case KeepLR:
		// the mask ends at column spot[WinLEnd] (1-based), the legacy one ended at spot[WinLEnd]-1.
		return []Range{
			{left.Spots[L.WinLStart] - 1, left.Spots[L.WinLEnd]},
			{right.Spots[R.WinLStart] - 1, length},
		}
	case KeepRL:
		return []Range{
			{0, left.Spots[L.WinREnd]},
			{right.Spots[R.WinRStart] - 1, length},
		}
	case KeepRR:
		return []Range{
			{0, left.Spots[L.WinREnd]},
			{right.Spots[R.WinLStart] - 1, right.Spots[R.WinLEnd]},
		}
	}
	return nil
}

// TrimPieces returns a copy of a two-piece query with masked columns of the choice.
func TrimPieces(aligned []byte, choice Choice, left, right *Piece) []byte {
	s := make([]byte, len(aligned))
	copy(s, aligned)
	Mask(s, PieceRanges(choice, left, right, len(s))...)
	return s
}
