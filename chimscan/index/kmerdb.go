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

	"github.com/shenwei356/kmers"
	"github.com/shenwei356/lexichash/iterator"
	"github.com/twotwotwo/sorts/sortutil"
)

// KmerDB is an inverted index from k-mers to the sequences containing them.
// It's read-only after being built and safe for concurrent searches.
type KmerDB struct {
	k           int
	fingerprint uint64 // of the template the sequences come from

	names []string
	kmers map[uint64][]uint32 // k-mer -> indexes of sequences, ascending
}

// uniqKmers returns the unique k-mers of s on the positive strand.
func uniqKmers(s []byte, k int, buf *[]uint64) ([]uint64, error) {
	*buf = (*buf)[:0]
	if len(s) < k {
		return *buf, nil
	}

	iter, err := iterator.NewKmerIterator(s, k)
	if err != nil {
		return nil, err
	}

	var kmer uint64
	var ok bool
	for {
		kmer, ok, err = iter.NextPositiveKmer()
		if !ok {
			break
		}
		if err != nil { // k-mers with degenerate bases
			continue
		}
		*buf = append(*buf, kmer)
	}

	*buf = dedupSorted(*buf)
	return *buf, nil
}

// dedupSorted sorts codes and removes duplicates in place.
func dedupSorted(codes []uint64) []uint64 {
	if len(codes) < 2 {
		return codes
	}
	sortutil.Uint64s(codes)

	j := 1
	for _, v := range codes[1:] {
		if v != codes[j-1] {
			codes[j] = v
			j++
		}
	}
	return codes[:j]
}

// NewKmerDB builds a k-mer index of the sequences.
func NewKmerDB(ctx context.Context, k int, names []string, frags [][]byte) (*KmerDB, error) {
	if len(names) != len(frags) {
		return nil, fmt.Errorf("index: %d names for %d sequences", len(names), len(frags))
	}

	db := &KmerDB{
		k:     k,
		names: names,
		kmers: make(map[uint64][]uint32, 1024),
	}

	buf := make([]uint64, 0, 1024)
	var codes []uint64
	var err error
	for i, s := range frags {
		if i&255 == 0 {
			if err = ctx.Err(); err != nil {
				return nil, err
			}
		}

		codes, err = uniqKmers(s, k, &buf)
		if err != nil {
			return nil, err
		}
		for _, code := range codes {
			db.kmers[code] = append(db.kmers[code], uint32(i))
		}
	}
	return db, nil
}

// Len returns the number of sequences.
func (db *KmerDB) Len() int { return len(db.names) }

// K returns the k-mer size.
func (db *KmerDB) K() int { return db.k }

// NumKmers returns the number of distinct k-mers.
func (db *KmerDB) NumKmers() int { return len(db.kmers) }

// Search returns the sequences sharing most unique k-mers with frag.
// The score is the percentage of unique k-mers of frag found in the sequence,
// sequences sharing no k-mers are not reported.
func (db *KmerDB) Search(ctx context.Context, frag []byte, n int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]uint64, 0, len(frag))
	codes, err := uniqKmers(frag, db.k, &buf)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, nil
	}

	counts := make([]int, len(db.names))
	for _, code := range codes {
		for _, i := range db.kmers[code] {
			counts[i]++
		}
	}

	hits := make([]Hit, 0, 8)
	total := float64(len(codes))
	for i, c := range counts {
		if c == 0 {
			continue
		}
		hits = append(hits, Hit{Idx: i, Name: db.names[i], Score: float64(c) / total * 100})
	}
	return topHits(hits, n), nil
}

// KmerCount is a k-mer and the number of sequences containing it.
type KmerCount struct {
	Kmer  []byte
	Count int
}

// TopKmers returns at most n k-mers shared by the most sequences,
// k-mers with the same count are sorted in lexicographic order.
func (db *KmerDB) TopKmers(n int) []KmerCount {
	codes := make([]uint64, 0, len(db.kmers))
	for code := range db.kmers {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		a, b := len(db.kmers[codes[i]]), len(db.kmers[codes[j]])
		if a != b {
			return a > b
		}
		return codes[i] < codes[j]
	})
	if n >= 0 && len(codes) > n {
		codes = codes[:n]
	}

	top := make([]KmerCount, len(codes))
	for i, code := range codes {
		top[i] = KmerCount{Kmer: kmers.Decode(code, db.k), Count: len(db.kmers[code])}
	}
	return top
}
