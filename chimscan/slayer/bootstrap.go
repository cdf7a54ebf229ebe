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

import "math/rand"

// SNP is a column where the query differs from at least one of the parents.
type SNP struct {
	Q, A, B byte
}

// SNPs returns SNP columns in [start, end].
func SNPs(q, a, b []byte, start, end int) []SNP {
	snps := make([]SNP, 0, 16)
	for i := start; i <= end; i++ {
		if a[i] != q[i] || b[i] != q[i] {
			snps = append(snps, SNP{Q: q[i], A: a[i], B: b[i]})
		}
	}
	return snps
}

// fractions of SNPs where the query agrees with A and B.
func snpIdentity(snps []SNP) (qa, qb float64) {
	if len(snps) == 0 {
		return 0, 0
	}
	var na, nb int
	for _, s := range snps {
		if s.Q == s.A {
			na++
		}
		if s.Q == s.B {
			nb++
		}
	}
	n := float64(len(snps))
	return float64(na) / n * 100, float64(nb) / n * 100
}

// Bootstrap resamples SNPs of both sides with replacement, and returns
// the percentages of iterations supporting "left from A, right from B" (bsA)
// and "left from B, right from A" (bsB).
func Bootstrap(left, right []SNP, iters int, rng *rand.Rand) (bsA, bsB float64) {
	if len(left) == 0 || len(right) == 0 || iters <= 0 {
		return 0, 0
	}

	sampleL := make([]SNP, len(left))
	sampleR := make([]SNP, len(right))
	var countA, countB int
	var QLA, QLB, QRA, QRB float64
	for i := 0; i < iters; i++ {
		for j := range sampleL {
			sampleL[j] = left[rng.Intn(len(left))]
		}
		for j := range sampleR {
			sampleR[j] = right[rng.Intn(len(right))]
		}

		QLA, QLB = snpIdentity(sampleL)
		QRA, QRB = snpIdentity(sampleR)

		if QLA > QLB && QRB > QRA {
			countA++
		}
		if QLB > QLA && QRA > QRB {
			countB++
		}
	}

	return float64(countA) / float64(iters) * 100, float64(countB) / float64(iters) * 100
}
