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

package seqs

// SpotMap maps a filtered column (0-based) to its original column (1-based).
// Values are strictly increasing.
type SpotMap []int

// Filter is a vertical filter, i.e., the list of columns to keep.
type Filter struct {
	keep []int // original columns, 0-based
	n    int   // alignment length before filtering
}

// NewGapFilter returns a filter keeping columns where at least one of
// the sequences has a non-gap character. All sequences must have the same length.
func NewGapFilter(seqs ...[]byte) (*Filter, error) {
	if len(seqs) == 0 {
		return &Filter{}, nil
	}
	n := len(seqs[0])
	for _, s := range seqs[1:] {
		if len(s) != n {
			return nil, ErrAlignmentLength
		}
	}

	keep := make([]int, 0, n)
	for i := 0; i < n; i++ {
		for _, s := range seqs {
			if !IsGap(s[i]) {
				keep = append(keep, i)
				break
			}
		}
	}
	return &Filter{keep: keep, n: n}, nil
}

// Len returns the number of kept columns.
func (f *Filter) Len() int { return len(f.keep) }

// Apply returns the kept columns of s.
func (f *Filter) Apply(s []byte) []byte {
	out := make([]byte, len(f.keep))
	for i, j := range f.keep {
		out[i] = s[j]
	}
	return out
}

// SpotMap returns the 1-based original column of every kept column.
func (f *Filter) SpotMap() SpotMap {
	m := make(SpotMap, len(f.keep))
	for i, j := range f.keep {
		m[i] = j + 1
	}
	return m
}

// Identity returns the spot map of an unfiltered alignment of length n.
func Identity(n int) SpotMap {
	m := make(SpotMap, n)
	for i := range m {
		m[i] = i + 1
	}
	return m
}
