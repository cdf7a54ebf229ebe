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

package cmd

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/shenwei356/chimscan/chimscan/detect"
	"github.com/shenwei356/chimscan/chimscan/seqs"
)

func TestWriteRecord(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	writeRecord(w, &detect.Record{QueryID: "q1"})
	writeRecord(w, &detect.Record{
		QueryID: "q2",
		Flag:    true,
		Calls: []*detect.Call{{
			Name:    "q2",
			ParentA: "P1", ParentB: "P2",
			DivergenceAB: 1.052632, IdentityAB: 100, BootstrapA: 100,
			DivergenceBA: 0.9, IdentityBA: 85.5, BootstrapB: 0,
			Flag:       true,
			WindowLeft: [2]int{1, 250}, WindowRight: [2]int{251, 500},
		}},
	})
	w.Flush()

	expected := "q1\tno\n" +
		"q2\tP1\tP2\t1.052632\t100.00\t100\t0.900000\t85.50\t0\tyes\t1-250\t251-500\n"
	if buf.String() != expected {
		t.Errorf("unexpected report:\n%s", buf.String())
	}
}

func TestWriteTrimmed(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	q := &seqs.Sequence{Name: "q", Aligned: []byte("ACGT")}
	if err := writeTrimmed(w, q, &detect.Record{QueryID: "q"}); err != nil {
		t.Error(err)
		return
	}
	if err := writeTrimmed(w, q, &detect.Record{QueryID: "q", Trimmed: []byte("..GT")}); err != nil {
		t.Error(err)
		return
	}
	w.Flush()

	if buf.String() != ">q\nACGT\n>q\n..GT\n" {
		t.Errorf("unexpected sequences:\n%s", buf.String())
	}
}
