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
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/shenwei356/chimscan/chimscan/seqs"
	"github.com/shenwei356/kmers"
)

func randSeq(r *rand.Rand, n int) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = "ACGT"[r.Intn(4)]
	}
	return s
}

func testCollection(t *testing.T, n, l int, seed int64) *seqs.Collection {
	r := rand.New(rand.NewSource(seed))
	list := make([]*seqs.Sequence, n)
	for i := range list {
		list[i] = seqs.NewSequence(fmt.Sprintf("ref%d", i), randSeq(r, l))
	}
	c, err := seqs.NewCollection(list)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestFragments(t *testing.T) {
	u := []byte("ACGTACGTAC") // 10 bases
	if l := LeftFragment(u); string(l) != "ACG" {
		t.Errorf("unexpected left fragment: %s", l)
	}
	if r := RightFragment(u); string(r) != "GTAC" {
		t.Errorf("unexpected right fragment: %s", r)
	}
}

func TestUniqKmers(t *testing.T) {
	buf := make([]uint64, 0, 8)
	codes, err := uniqKmers([]byte("ACGTACGTA"), 4, &buf)
	if err != nil {
		t.Error(err)
		return
	}
	// ACGT, CGTA, GTAC, TACG
	if len(codes) != 4 {
		t.Errorf("expected 4 unique k-mers, got %d", len(codes))
	}
	for i := 1; i < len(codes); i++ {
		if codes[i] <= codes[i-1] {
			t.Errorf("k-mers should be sorted and unique: %v", codes)
			break
		}
	}

	if codes, _ = uniqKmers([]byte("ACG"), 4, &buf); len(codes) != 0 {
		t.Errorf("a sequence shorter than k has no k-mers")
	}

	if d := dedupSorted([]uint64{3, 1, 3, 2, 1}); len(d) != 3 || d[0] != 1 || d[1] != 2 || d[2] != 3 {
		t.Errorf("unexpected deduplicated list: %v", d)
	}
}

func TestSearch(t *testing.T) {
	c := testCollection(t, 5, 300, 11)
	ctx := context.Background()

	for _, mode := range []string{ModeKmer, ModeAlign} {
		opt := DefaultBuildOptions
		opt.Mode = mode
		tpl, err := Build(ctx, c, &opt)
		if err != nil {
			t.Error(err)
			return
		}
		if tpl.Len() != 5 || tpl.Left.Len() != 5 || tpl.Right.Len() != 5 {
			t.Errorf("%s: unexpected number of indexed sequences", mode)
		}

		u := c.Seqs[2].Unaligned()
		hits, err := tpl.Left.Search(ctx, LeftFragment(u), 3)
		if err != nil {
			t.Error(err)
			return
		}
		if len(hits) == 0 || len(hits) > 3 {
			t.Errorf("%s: unexpected number of hits: %d", mode, len(hits))
			continue
		}
		if hits[0].Idx != 2 || hits[0].Name != "ref2" {
			t.Errorf("%s: the best hit should be ref2, got %+v", mode, hits[0])
		}
		for i := 1; i < len(hits); i++ {
			if hits[i].Score > hits[i-1].Score {
				t.Errorf("%s: hits not sorted: %+v", mode, hits)
			}
		}

		hits, err = tpl.Right.Search(ctx, RightFragment(c.Seqs[4].Unaligned()), 1)
		if err != nil {
			t.Error(err)
			return
		}
		if len(hits) != 1 || hits[0].Idx != 4 {
			t.Errorf("%s: the best hit should be ref4, got %+v", mode, hits)
		}
	}

	db, err := NewKmerDB(ctx, 7, c.Names(), [][]byte{
		[]byte("AAAACCCGGG"), []byte("TTTTTTTTTT"), []byte("ACCCGGGTTT"), []byte(""), []byte("AC"),
	})
	if err != nil {
		t.Error(err)
		return
	}
	top := db.TopKmers(2)
	if len(top) != 2 ||
		string(top[0].Kmer) != "ACCCGGG" || top[0].Count != 2 ||
		string(top[1].Kmer) != "AAAACCC" || top[1].Count != 1 {
		t.Errorf("unexpected top k-mers: %v", top)
	}
	if code, err := kmers.Encode(top[0].Kmer); err != nil || len(db.kmers[code]) != 2 {
		t.Errorf("decoded k-mer should be encoded to the same code: %v", err)
	}
	if n := len(db.TopKmers(-1)); n != db.NumKmers() {
		t.Errorf("all k-mers should be returned: %d != %d", n, db.NumKmers())
	}
	hits, err := db.Search(ctx, []byte("CCCGGGT"), 10)
	if err != nil {
		t.Error(err)
		return
	}
	if len(hits) != 1 || hits[0].Name != "ref2" || hits[0].Score != 100 {
		t.Errorf("unexpected hits: %+v", hits)
	}
}

func TestKmerDBCache(t *testing.T) {
	c := testCollection(t, 6, 200, 3)
	ctx := context.Background()

	dir := t.TempDir()
	opt := DefaultBuildOptions
	opt.CachePrefix = filepath.Join(dir, "db", "refs")

	tpl, err := Build(ctx, c, &opt)
	if err != nil {
		t.Error(err)
		return
	}
	if tpl.LeftCache.Loaded || tpl.LeftCache.Err != nil {
		t.Errorf("the k-mer db should be built and saved: %+v", tpl.LeftCache)
	}
	file := KmerDBFile(opt.CachePrefix, "left", opt.K)
	if _, err = os.Stat(file); err != nil {
		t.Errorf("k-mer db file not created: %s", err)
	}

	tpl2, err := Build(ctx, c, &opt)
	if err != nil {
		t.Error(err)
		return
	}
	if !tpl2.LeftCache.Loaded || !tpl2.RightCache.Loaded {
		t.Errorf("the k-mer db should be loaded: %+v", tpl2.LeftCache)
	}
	frag := LeftFragment(c.Seqs[1].Unaligned())
	h1, _ := tpl.Left.Search(ctx, frag, 6)
	h2, _ := tpl2.Left.Search(ctx, frag, 6)
	if len(h1) != len(h2) {
		t.Errorf("loaded k-mer db returns different hits: %v vs %v", h1, h2)
	} else {
		for i := range h1 {
			if h1[i] != h2[i] {
				t.Errorf("loaded k-mer db returns different hits: %v vs %v", h1, h2)
				break
			}
		}
	}

	// another template
	c2 := c.Subset(func(s *seqs.Sequence) bool { return s.Name != "ref0" })
	tpl3, err := Build(ctx, c2, &opt)
	if err != nil {
		t.Error(err)
		return
	}
	if tpl3.LeftCache.Loaded || !errors.Is(tpl3.LeftCache.Err, ErrTemplateMismatch) {
		t.Errorf("the k-mer db should be rebuilt for another template: %+v", tpl3.LeftCache)
	}
	if tpl3.Left.Len() != 5 {
		t.Errorf("rebuilt k-mer db has %d sequences", tpl3.Left.Len())
	}

	// version mismatch
	data, err := os.ReadFile(file)
	if err != nil {
		t.Error(err)
		return
	}
	data[8] = MainVersion + 1
	if err = os.WriteFile(file, data, 0644); err != nil {
		t.Error(err)
		return
	}
	tpl4, err := Build(ctx, c2, &opt)
	if err != nil {
		t.Error(err)
		return
	}
	if tpl4.LeftCache.Loaded || !errors.Is(tpl4.LeftCache.Err, ErrVersionMismatch) {
		t.Errorf("the k-mer db should be rebuilt after version mismatch: %+v", tpl4.LeftCache)
	}

	// broken file
	data, _ = os.ReadFile(file)
	if err = os.WriteFile(file, data[:len(data)/2], 0644); err != nil {
		t.Error(err)
		return
	}
	tpl5, err := Build(ctx, c2, &opt)
	if err != nil {
		t.Error(err)
		return
	}
	if tpl5.LeftCache.Loaded || !errors.Is(tpl5.LeftCache.Err, ErrBrokenFile) {
		t.Errorf("the k-mer db should be rebuilt for a broken file: %+v", tpl5.LeftCache)
	}

	// corrupted counts, the file was rewritten for c2 above:
	//   24-31: number of sequences
	//   32-35: length of the first name, names of ref1..ref5 take 40 bytes
	//   88-91: number of sequences of the first k-mer
	for _, offset := range []int{24, 32, 88} {
		data, err = os.ReadFile(file)
		if err != nil {
			t.Error(err)
			return
		}
		end := offset + 4
		if offset == 24 {
			end = offset + 8
		}
		for i := offset; i < end; i++ {
			data[i] = 0xff
		}
		if err = os.WriteFile(file, data, 0644); err != nil {
			t.Error(err)
			return
		}

		tpl6, err := Build(ctx, c2, &opt)
		if err != nil {
			t.Errorf("corrupted bytes at %d: %s", offset, err)
			return
		}
		if tpl6.LeftCache.Loaded || !errors.Is(tpl6.LeftCache.Err, ErrBrokenFile) {
			t.Errorf("corrupted bytes at %d: the k-mer db should be rebuilt: %+v", offset, tpl6.LeftCache)
		}
		if tpl6.Left.Len() != 5 {
			t.Errorf("corrupted bytes at %d: rebuilt k-mer db has %d sequences", offset, tpl6.Left.Len())
		}
	}

	// the rebuilt file is valid again
	tpl7, err := Build(ctx, c2, &opt)
	if err != nil {
		t.Error(err)
		return
	}
	if !tpl7.LeftCache.Loaded {
		t.Errorf("the rebuilt k-mer db should be loaded: %+v", tpl7.LeftCache)
	}
}

func TestBuildCanceled(t *testing.T) {
	c := testCollection(t, 3, 100, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opt := DefaultBuildOptions
	if _, err := Build(ctx, c, &opt); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	opt.Mode = "blast"
	if _, err := Build(context.Background(), c, &opt); err == nil {
		t.Errorf("invalid mode should be rejected")
	}
}
