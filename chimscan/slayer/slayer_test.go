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

package slayer

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/shenwei356/chimscan/chimscan/seqs"
)

// two 500-column parents differing at every 10th column,
// and a query made of P1[0:250] + P2[250:500].
func chimericTrio() (q []byte, p1, p2 *seqs.Sequence) {
	r := rand.New(rand.NewSource(42))
	s1 := make([]byte, 500)
	for i := range s1 {
		s1[i] = "ACGT"[r.Intn(4)]
	}
	s2 := make([]byte, 500)
	copy(s2, s1)
	for i := range s2 {
		if (i < 250 && i%10 == 9) || (i >= 250 && i%10 == 0) {
			s2[i] = complement(s1[i])
		}
	}
	q = make([]byte, 500)
	copy(q[:250], s1[:250])
	copy(q[250:], s2[250:])
	return q, &seqs.Sequence{Name: "P1", Aligned: s1}, &seqs.Sequence{Name: "P2", Aligned: s2}
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

func TestWindows(t *testing.T) {
	cases := []struct {
		length, size, inc int
	}{
		{500, 50, 5},
		{100, 50, 5},
		{37, 10, 3},
		{12, 50, 5},
		{1000, 1, 1},
	}
	for _, c := range cases {
		ws := Windows(c.length, c.size, c.inc)
		if len(ws) == 0 {
			t.Errorf("%v: no windows", c)
			continue
		}
		size := c.size
		if c.length < 2*size+c.inc {
			size = c.length / 2
		}
		for i, w := range ws {
			if w.Start != i*c.inc {
				t.Errorf("%v: window %d starts at %d, expected %d", c, i, w.Start, i*c.inc)
			}
			if w.End-w.Start+1 != size {
				t.Errorf("%v: window %d has a width of %d", c, i, w.End-w.Start+1)
			}
			if w.End >= c.length-1 {
				t.Errorf("%v: window %d ends at %d, beyond the length", c, i, w.End)
			}
		}
	}

	ws := Windows(500, 50, 5)
	if len(ws) != 81 || ws[0].End != 49 || ws[len(ws)-1].End != 449 {
		t.Errorf("unexpected windows: %d, %v, %v", len(ws), ws[0], ws[len(ws)-1])
	}

	if ws = Windows(1, 50, 5); len(ws) != 0 {
		t.Errorf("a single column should have no windows: %v", ws)
	}
}

func TestPercentID(t *testing.T) {
	cases := []struct {
		x, y string
		pid  float64
		ok   bool
	}{
		{"ACGT", "ACGT", 100, true},
		{"ACGT", "ACGA", 75, true},
		{"ACG-", "ACGT", 3 / 3.5 * 100, true},
		{"ACGN", "ACGT", 100, true}, // N ignored
		{"----", "....", 0, false},
	}
	for _, c := range cases {
		pid, ok := PercentID([]byte(c.x), []byte(c.y), 0, len(c.x)-1)
		if ok != c.ok || math.Abs(pid-c.pid) > 1e-9 {
			t.Errorf("%s vs %s: expected %f/%v, got %f/%v", c.x, c.y, c.pid, c.ok, pid, ok)
		}
	}
}

func TestBootstrap(t *testing.T) {
	left := []SNP{{'A', 'A', 'T'}, {'C', 'C', 'G'}}
	right := []SNP{{'G', 'C', 'G'}, {'T', 'A', 'T'}}
	rng := rand.New(rand.NewSource(1))
	bsA, bsB := Bootstrap(left, right, 100, rng)
	if bsA != 100 || bsB != 0 {
		t.Errorf("unexpected bootstrap values: %f, %f", bsA, bsB)
	}

	bsA, bsB = Bootstrap(right, left, 100, rng)
	if bsA != 0 || bsB != 100 {
		t.Errorf("unexpected bootstrap values of the mirrored case: %f, %f", bsA, bsB)
	}

	// a mixture, reproducible with the same seed
	mixed := append([]SNP{}, left...)
	mixed = append(mixed, right...)
	a1, b1 := Bootstrap(mixed, right, 200, rand.New(rand.NewSource(7)))
	a2, b2 := Bootstrap(mixed, right, 200, rand.New(rand.NewSource(7)))
	if a1 != a2 || b1 != b2 {
		t.Errorf("bootstrap should be reproducible with the same seed")
	}
	if a1+b1 > 100 {
		t.Errorf("bootstrap supports should not exceed 100 in total: %f, %f", a1, b1)
	}

	if bsA, bsB = Bootstrap(nil, right, 10, rng); bsA != 0 || bsB != 0 {
		t.Errorf("no SNPs should give no support")
	}
}

func TestScanChimera(t *testing.T) {
	q, p1, p2 := chimericTrio()

	s, err := NewScanner(&DefaultOptions)
	if err != nil {
		t.Error(err)
		return
	}

	results, err := s.Scan(context.Background(), q, []*seqs.Sequence{p1, p2})
	if err != nil {
		t.Error(err)
		return
	}
	if len(results) == 0 {
		t.Errorf("the chimera should be detected")
		return
	}

	best := results[0]
	if best.ParentA != "P1" || best.ParentB != "P2" {
		t.Errorf("unexpected parents: %s, %s", best.ParentA, best.ParentB)
	}
	if best.WinLStart != 0 || best.WinLEnd != 249 || best.WinRStart != 250 || best.WinREnd != 499 {
		t.Errorf("unexpected windows: %d-%d, %d-%d", best.WinLStart, best.WinLEnd, best.WinRStart, best.WinREnd)
	}
	if best.BootstrapA < 90 {
		t.Errorf("unexpected bootstrap support: %f", best.BootstrapA)
	}
	if best.IdentityAB != 100 || math.Abs(best.DivRatioAB-100.0/95) > 1e-9 {
		t.Errorf("unexpected identity/divergence: %f, %f", best.IdentityAB, best.DivRatioAB)
	}
	if best.DivRatioBA >= 1 {
		t.Errorf("the mirrored hypothesis should not be supported: %f", best.DivRatioBA)
	}

	for i := 1; i < len(results); i++ {
		if results[i].BootstrapMax() > results[i-1].BootstrapMax() {
			t.Errorf("results not sorted by bootstrap support")
			break
		}
	}

	// the same order of parents gives the same result
	results2, _ := s.Scan(context.Background(), q, []*seqs.Sequence{p1, p2})
	if len(results2) != len(results) || *results2[0] != *best {
		t.Errorf("scanning should be deterministic")
	}
}

func TestScanEdgeCases(t *testing.T) {
	q, p1, p2 := chimericTrio()
	s, _ := NewScanner(&DefaultOptions)
	ctx := context.Background()

	// less than two parents
	results, err := s.Scan(ctx, q, []*seqs.Sequence{p1})
	if err != nil || len(results) != 0 {
		t.Errorf("a single parent should give no results: %v, %v", results, err)
	}

	// a non-chimeric query
	results, err = s.Scan(ctx, p1.Aligned, []*seqs.Sequence{p1, p2})
	if err != nil || len(results) != 0 {
		t.Errorf("a query identical to a parent should give no results: %d, %v", len(results), err)
	}

	// gaps in all three sequences are removed, windows map back to the input
	gq := append(append(append([]byte{}, q[:250]...), []byte("----------")...), q[250:]...)
	ga := append(append(append([]byte{}, p1.Aligned[:250]...), []byte("..........")...), p1.Aligned[250:]...)
	gb := append(append(append([]byte{}, p2.Aligned[:250]...), []byte("-----.....")...), p2.Aligned[250:]...)
	results, err = s.Scan(ctx, gq, []*seqs.Sequence{{Name: "P1", Aligned: ga}, {Name: "P2", Aligned: gb}})
	if err != nil || len(results) == 0 {
		t.Errorf("the chimera should be detected: %v", err)
		return
	}
	if r := results[0]; r.WinLEnd != 249 || r.WinRStart != 260 || r.WinREnd != 509 {
		t.Errorf("windows should be in the input coordinates: %d-%d, %d-%d", r.WinLStart, r.WinLEnd, r.WinRStart, r.WinREnd)
	}

	// fully masked
	masked := make([]byte, len(q))
	for i := range masked {
		masked[i] = '.'
	}
	results, err = s.Scan(ctx, masked, []*seqs.Sequence{{Name: "P1", Aligned: masked}, {Name: "P2", Aligned: masked}})
	if err != nil || len(results) != 0 {
		t.Errorf("a fully masked alignment should give no results: %v, %v", results, err)
	}

	// length mismatch
	if _, err = s.Scan(ctx, q[:100], []*seqs.Sequence{p1, p2}); !errors.Is(err, seqs.ErrAlignmentLength) {
		t.Errorf("expected ErrAlignmentLength, got %v", err)
	}

	// canceled
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err = s.Scan(cctx, q, []*seqs.Sequence{p1, p2}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	// too many SNPs required
	opt := DefaultOptions
	opt.MinSNPs = 26
	s2, _ := NewScanner(&opt)
	results, _ = s2.Scan(ctx, q, []*seqs.Sequence{p1, p2})
	for _, r := range results {
		if r.WinLEnd == 249 {
			t.Errorf("the window with 25 SNPs on each side should not be kept")
		}
	}

	opt.WindowSize = 0
	if _, err = NewScanner(&opt); err == nil {
		t.Errorf("invalid window size should be rejected")
	}
}
