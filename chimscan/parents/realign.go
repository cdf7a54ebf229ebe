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

package parents

import (
	"fmt"
	"sync"

	"github.com/shenwei356/chimscan/chimscan/seqs"
	"github.com/shenwei356/wfa"
)

// CIGAR operations of wfa alignment results, an op is op<<32 | length.
const (
	opM = uint64('M')
	opX = uint64('X')
	opI = uint64('I') // query bases against gaps
	opD = uint64('D') // parent bases against gaps
	opH = uint64('H')
)

// Realigner realigns candidate parents to the query in their regions.
// It's safe for concurrent use.
type Realigner struct {
	poolAligner *sync.Pool
}

// NewRealigner creates a Realigner with the match and mismatch scores.
// Scores are converted to gap-affine penalties: a mismatch costs
// match-mismatch, opening a gap costs the same, and extending it half.
func NewRealigner(match, mismatch int) *Realigner {
	p := uint32(1)
	if match > mismatch {
		p = uint32(match - mismatch)
	}
	penalties := &wfa.Penalties{
		Mismatch: p,
		GapOpen:  p,
		GapExt:   (p + 1) / 2,
	}
	opt := &wfa.Options{GlobalAlignment: true}
	return &Realigner{
		poolAligner: &sync.Pool{New: func() interface{} {
			return wfa.New(penalties, opt)
		}},
	}
}

// Realign globally aligns the query bases in the region of every candidate
// to the parent bases of the same region, and projects the parent onto the
// query columns: parent insertions are dropped and query bases unmatched by
// the parent become gaps. Identity and coverage are recomputed.
// Names and regions are kept, new candidates are returned.
func (r *Realigner) Realign(query []byte, cands []*Candidate) ([]*Candidate, error) {
	algn := r.poolAligner.Get().(*wfa.Aligner)
	defer r.poolAligner.Put(algn)

	out := make([]*Candidate, len(cands))
	var err error
	for i, c := range cands {
		if out[i], err = realign(algn, query, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func realign(algn *wfa.Aligner, query []byte, c *Candidate) (*Candidate, error) {
	s, e := c.RegionStart, c.RegionEnd

	qRegion := query[s : e+1]
	qBases := make([]byte, 0, len(qRegion))
	for _, b := range qRegion {
		if !seqs.IsGap(b) {
			qBases = append(qBases, b)
		}
	}
	pBases := make([]byte, 0, len(qRegion))
	for _, b := range c.Aligned[s : e+1] {
		if !seqs.IsGap(b) {
			pBases = append(pBases, b)
		}
	}

	aligned := make([]byte, len(c.Aligned))
	copy(aligned, c.Aligned)
	nc := *c
	nc.Aligned = aligned

	if len(qBases) == 0 {
		return &nc, nil
	}

	proj, err := project(algn, qBases, pBases)
	if err != nil {
		return nil, fmt.Errorf("parents: realign %s: %s", c.Name, err)
	}

	var j, matches, covered int
	var p byte
	for k, b := range qRegion {
		if seqs.IsGap(b) {
			aligned[s+k] = '-'
			continue
		}
		p = proj[j]
		j++
		aligned[s+k] = p
		if p == '-' {
			continue
		}
		covered++
		if p == b {
			matches++
		}
	}

	nc.Identity = pct(matches, len(qBases))
	nc.Coverage = pct(covered, len(qBases))
	return &nc, nil
}

// project returns the parent base, or a gap, aligned to every query base.
func project(algn *wfa.Aligner, qBases, pBases []byte) ([]byte, error) {
	proj := make([]byte, 0, len(qBases))
	if len(pBases) == 0 {
		for range qBases {
			proj = append(proj, '-')
		}
		return proj, nil
	}

	res, err := algn.Align(qBases, pBases)
	if err != nil {
		return nil, err
	}
	defer wfa.RecycleAlignmentResult(res)

	var j, n int
	for _, op := range res.Ops {
		n = int(op & 4294967295)
		switch op >> 32 {
		case opM, opX:
			if j+n > len(pBases) {
				return nil, fmt.Errorf("alignment longer than the parent")
			}
			proj = append(proj, pBases[j:j+n]...)
			j += n
		case opI:
			for ; n > 0; n-- {
				proj = append(proj, '-')
			}
		case opD, opH:
			j += n
		}
	}
	if len(proj) != len(qBases) {
		return nil, fmt.Errorf("%d query bases aligned, %d expected", len(proj), len(qBases))
	}
	return proj, nil
}
