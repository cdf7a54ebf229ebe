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
	"sync"

	"github.com/shenwei356/chimscan/chimscan/index/align"
)

// AlignDB searches fragments by affine-gap local alignment against
// every indexed sequence. It's safe for concurrent searches.
type AlignDB struct {
	names []string
	frags [][]byte

	poolAligner *sync.Pool
}

// NewAlignDB creates an AlignDB with scores from the options.
func NewAlignDB(opt *BuildOptions, names []string, frags [][]byte) *AlignDB {
	alnOpt := &align.AlignOptions{
		MatchScore:    opt.MatchScore,
		MisMatchScore: opt.MismatchScore,
		GapOpenScore:  opt.GapOpenScore,
		GapExtScore:   opt.GapExtScore,
	}
	return &AlignDB{
		names: names,
		frags: frags,
		poolAligner: &sync.Pool{New: func() interface{} {
			return align.NewAligner(alnOpt)
		}},
	}
}

// Len returns the number of sequences.
func (db *AlignDB) Len() int { return len(db.names) }

// Search returns the sequences with the highest local alignment scores.
// Sequences without any positive local alignment are not reported.
func (db *AlignDB) Search(ctx context.Context, frag []byte, n int) ([]Hit, error) {
	if len(frag) == 0 {
		return nil, ctx.Err()
	}

	alg := db.poolAligner.Get().(*align.Aligner)
	defer db.poolAligner.Put(alg)

	hits := make([]Hit, 0, 8)
	var r align.LocalResult
	for i, s := range db.frags {
		if i&255 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		r = alg.Local(frag, s)
		if r.Score <= 0 {
			continue
		}
		hits = append(hits, Hit{Idx: i, Name: db.names[i], Score: float64(r.Score)})
	}
	return topHits(hits, n), nil
}
