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

package align

// Aligner computes Smith-Waterman-Gotoh local alignments with affine gap
// scores in linear memory.
// An Aligner reuses its rows and is not safe for concurrent use.
type Aligner struct {
	Options *AlignOptions

	rowH, rowE, prevH []int
}

// AlignOptions contains all alignment options.
type AlignOptions struct {
	MatchScore    int
	MisMatchScore int

	// a gap of length L scores GapOpenScore + L*GapExtScore.
	GapOpenScore int
	GapExtScore  int
}

// DefaultAlignOptions is the default AlignOptions.
var DefaultAlignOptions = AlignOptions{
	MatchScore:    5,
	MisMatchScore: -4,

	GapOpenScore: -2,
	GapExtScore:  -1,
}

// NewAligner returns an aligner.
func NewAligner(options *AlignOptions) *Aligner {
	return &Aligner{Options: options}
}

func grow[T any](s []T, n int) []T {
	if n <= cap(s) {
		return s[:n]
	}
	return make([]T, n)
}

// LocalResult is the best local alignment of a query and a target.
type LocalResult struct {
	Score int
	QEnd  int // 0-based end position in the query, -1 for no alignment
	TEnd  int // 0-based end position in the target
}

// Local computes the best local alignment score of a (query) and b (target)
// with affine gaps, using linear memory. Cells are scanned row by row,
// the first cell reaching the best score is reported.
func (alg *Aligner) Local(a, b []byte) LocalResult {
	w := len(b) + 1

	alg.rowH = grow(alg.rowH, w)
	alg.prevH = grow(alg.prevH, w)
	alg.rowE = grow(alg.rowE, w)
	H, prevH, E := alg.rowH, alg.prevH, alg.rowE

	match := alg.Options.MatchScore
	mismatch := alg.Options.MisMatchScore
	gapOE := alg.Options.GapOpenScore + alg.Options.GapExtScore // opening a gap of length 1
	gapE := alg.Options.GapExtScore

	const minInf = -1 << 30

	for j := 0; j < w; j++ {
		prevH[j] = 0
		E[j] = minInf
	}

	r := LocalResult{QEnd: -1, TEnd: -1}

	var i, j, s, f, h int
	for i = 1; i <= len(a); i++ {
		H[0] = 0
		f = minInf
		for j = 1; j < w; j++ {
			// gap in the target (vertical move)
			E[j] = maxInt(prevH[j]+gapOE, E[j]+gapE)
			// gap in the query (horizontal move)
			f = maxInt(H[j-1]+gapOE, f+gapE)

			s = mismatch
			if a[i-1] == b[j-1] {
				s = match
			}
			h = prevH[j-1] + s
			if E[j] > h {
				h = E[j]
			}
			if f > h {
				h = f
			}
			if h < 0 {
				h = 0
			}
			H[j] = h

			if h > r.Score {
				r.Score = h
				r.QEnd = i - 1
				r.TEnd = j - 1
			}
		}
		H, prevH = prevH, H
	}
	alg.rowH, alg.prevH = H, prevH

	return r
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
