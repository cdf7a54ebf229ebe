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
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/shenwei356/chimscan/chimscan/index"
	"github.com/shenwei356/chimscan/chimscan/seqs"
)

func randSeq(r *rand.Rand, n int) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = "ACGT"[r.Intn(4)]
	}
	return s
}

func complement(c byte) byte {
	switch c {
	case 'A':
		return 'T'
	case 'C':
		return 'G'
	case 'G':
		return 'C'
	}
	return 'A'
}

// P1 and P2 differ at every 10th column, the query is P1[0:250] + P2[250:500].
// Other references are random.
func testTemplate(t *testing.T, mode string) (*index.Template, []byte) {
	r := rand.New(rand.NewSource(42))
	s1 := randSeq(r, 500)
	s2 := make([]byte, 500)
	copy(s2, s1)
	for i := range s2 {
		if (i < 250 && i%10 == 9) || (i >= 250 && i%10 == 0) {
			s2[i] = complement(s1[i])
		}
	}
	list := []*seqs.Sequence{
		{Name: "R0", Aligned: randSeq(r, 500)},
		{Name: "P1", Aligned: s1},
		{Name: "R2", Aligned: randSeq(r, 500)},
		{Name: "P2", Aligned: s2},
	}
	for i := 4; i < 8; i++ {
		list = append(list, &seqs.Sequence{Name: fmt.Sprintf("R%d", i), Aligned: randSeq(r, 500)})
	}
	c, err := seqs.NewCollection(list)
	if err != nil {
		t.Fatal(err)
	}

	opt := index.DefaultBuildOptions
	opt.Mode = mode
	tpl, err := index.Build(context.Background(), c, &opt)
	if err != nil {
		t.Fatal(err)
	}

	q := make([]byte, 500)
	copy(q[:250], s1[:250])
	copy(q[250:], s2[250:])
	return tpl, q
}

func TestFind(t *testing.T) {
	for _, mode := range []string{index.ModeKmer, index.ModeAlign} {
		tpl, q := testTemplate(t, mode)
		f, err := NewFinder(&DefaultOptions)
		if err != nil {
			t.Error(err)
			return
		}
		ctx := context.Background()

		cands, err := f.Find(ctx, q, tpl)
		if err != nil {
			t.Error(err)
			return
		}
		if len(cands) != 2 {
			t.Errorf("%s: expected 2 candidates, got %d", mode, len(cands))
			continue
		}
		if cands[0].Name != "P1" || cands[0].RegionStart != 0 || cands[0].RegionEnd != 249 {
			t.Errorf("%s: unexpected first candidate: %s %d-%d", mode, cands[0].Name, cands[0].RegionStart, cands[0].RegionEnd)
		}
		if cands[1].Name != "P2" || cands[1].RegionStart != 250 || cands[1].RegionEnd != 499 {
			t.Errorf("%s: unexpected second candidate: %s %d-%d", mode, cands[1].Name, cands[1].RegionStart, cands[1].RegionEnd)
		}
		for _, c := range cands {
			if c.Identity != 100 || c.Coverage != 100 || c.Score() != 100 {
				t.Errorf("%s: unexpected identity/coverage of %s: %f, %f", mode, c.Name, c.Identity, c.Coverage)
			}
		}

		// a query identical to a reference
		p1, _ := tpl.Seqs.Get("P1")
		cands, err = f.Find(ctx, p1.Aligned, tpl)
		if err != nil {
			t.Error(err)
			return
		}
		if len(cands) != 1 || cands[0].Name != "P1" || cands[0].Length() != 500 {
			t.Errorf("%s: a query identical to P1 should have P1 as the only candidate", mode)
		}

		// an unrelated query
		cands, err = f.Find(ctx, randSeq(rand.New(rand.NewSource(1000)), 500), tpl)
		if err != nil {
			t.Error(err)
			return
		}
		if len(cands) != 0 {
			t.Errorf("%s: an unrelated query should have no candidates, got %d", mode, len(cands))
		}

		if _, err = f.Find(ctx, q[:10], tpl); !errors.Is(err, seqs.ErrAlignmentLength) {
			t.Errorf("%s: expected ErrAlignmentLength, got %v", mode, err)
		}
	}
}

func TestDedupRank(t *testing.T) {
	cands := []*Candidate{
		{Name: "a", RegionStart: 0, RegionEnd: 99, Identity: 100, Coverage: 100, Order: 0},  // 10000
		{Name: "b", RegionStart: 100, RegionEnd: 149, Identity: 90, Coverage: 100, Order: 1}, // 4500
		{Name: "a", RegionStart: 150, RegionEnd: 399, Identity: 100, Coverage: 90, Order: 2}, // 22500
		{Name: "c", RegionStart: 400, RegionEnd: 449, Identity: 90, Coverage: 100, Order: 3}, // 4500
		{Name: "d", RegionStart: 450, RegionEnd: 499, Identity: 92, Coverage: 100, Order: 4}, // 4600
	}

	d := Dedup(cands)
	if len(d) != 4 {
		t.Errorf("expected 4 parents, got %d", len(d))
		return
	}
	if d[0].Name != "a" || d[0].Order != 2 {
		t.Errorf("the heaviest candidate of a should be kept in the position of a: %+v", d[0])
	}
	d2 := Dedup(d)
	if len(d2) != len(d) {
		t.Errorf("dedup should be idempotent")
	}
	for i := range d {
		if d[i] != d2[i] {
			t.Errorf("dedup should be idempotent")
		}
	}

	var prev map[string]bool
	for max := 0; max <= 5; max++ {
		r := Rank(d, max)
		if len(r) > max {
			t.Errorf("rank returns %d candidates, more than %d", len(r), max)
		}
		kept := make(map[string]bool, len(r))
		for _, c := range r {
			kept[c.Name] = true
		}
		for name := range prev {
			if !kept[name] {
				t.Errorf("raising the limit to %d removes %s", max, name)
			}
		}
		prev = kept
	}

	r := Rank(d, 2)
	if r[0].Name != "a" || r[1].Name != "d" {
		t.Errorf("unexpected ranking: %s, %s", r[0].Name, r[1].Name)
	}
	r = Rank(d, 3)
	if r[2].Name != "b" { // b and c tie, b comes first
		t.Errorf("ties should be broken by discovery order: %s", r[2].Name)
	}
}

func TestRealign(t *testing.T) {
	query := []byte("AC-GTACGTA")
	// the parent has a shifted gap and an insertion, relative to the query
	c := &Candidate{
		Name:        "p",
		Aligned:     []byte("ACG-TACGTA"),
		RegionStart: 0,
		RegionEnd:   9,
		Identity:    50,
		Coverage:    100,
	}
	ra := NewRealigner(5, -4)
	out, err := ra.Realign(query, []*Candidate{c})
	if err != nil {
		t.Error(err)
		return
	}
	if len(out) != 1 {
		t.Errorf("unexpected number of candidates: %d", len(out))
		return
	}
	n := out[0]
	if string(n.Aligned) != "AC-GTACGTA" {
		t.Errorf("unexpected projected parent: %s", n.Aligned)
	}
	if n.Identity != 100 || n.Name != c.Name || n.RegionStart != 0 || n.RegionEnd != 9 {
		t.Errorf("unexpected realigned candidate: %+v", n)
	}
	if string(c.Aligned) != "ACG-TACGTA" || c.Identity != 50 {
		t.Errorf("the input candidate should not be changed")
	}

	// the parent lacks a base of the query
	query = []byte("ACGTTACGTA")
	c = &Candidate{Name: "p", Aligned: []byte("ACGT-ACGTA"), RegionStart: 2, RegionEnd: 7}
	out, err = ra.Realign(query, []*Candidate{c})
	if err != nil {
		t.Error(err)
		return
	}
	n = out[0]
	if n.Coverage >= 100 || n.Identity >= 100 {
		t.Errorf("a missing base should reduce coverage and identity: %f, %f", n.Coverage, n.Identity)
	}
	if string(n.Aligned[:2]) != "AC" || string(n.Aligned[8:]) != "TA" {
		t.Errorf("columns outside the region should be kept: %s", n.Aligned)
	}
	if g := bytes.Count(n.Aligned[2:8], []byte("-")); g != 1 {
		t.Errorf("the unmatched query base should face a gap: %s", n.Aligned)
	}

	// a parent without bases in the region
	c = &Candidate{Name: "p", Aligned: []byte("AC------TA"), RegionStart: 2, RegionEnd: 7}
	out, err = ra.Realign(query, []*Candidate{c})
	if err != nil {
		t.Error(err)
		return
	}
	if n = out[0]; n.Coverage != 0 || string(n.Aligned) != "AC------TA" {
		t.Errorf("unexpected realigned empty parent: %+v", n)
	}
}
