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
	"fmt"

	"github.com/shenwei356/chimscan/chimscan/detect"
	"github.com/shenwei356/chimscan/chimscan/seqs"
)

const reportHeader = "Name\tLeftParent\tRightParent\tDivQLAQRB\tPerIDQLAQRB\tBootStrapA\tDivQLBQRA\tPerIDQLBQRA\tBootStrapB\tFlag\tLeftWindow\tRightWindow\n"

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// writeRecord writes the calls of a query, or "<name>\tno" if there's none.
func writeRecord(w *bufio.Writer, rec *detect.Record) {
	if len(rec.Calls) == 0 {
		fmt.Fprintf(w, "%s\tno\n", rec.QueryID)
		return
	}
	for _, c := range rec.Calls {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.6f\t%.2f\t%.0f\t%.6f\t%.2f\t%.0f\t%s\t%d-%d\t%d-%d\n",
			c.Name, c.ParentA, c.ParentB,
			c.DivergenceAB, c.IdentityAB, c.BootstrapA,
			c.DivergenceBA, c.IdentityBA, c.BootstrapB,
			yesNo(c.Flag),
			c.WindowLeft[0], c.WindowLeft[1], c.WindowRight[0], c.WindowRight[1],
		)
	}
}

// writeTrimmed writes the trimmed query, or the query itself if it's not trimmed.
func writeTrimmed(w *bufio.Writer, query *seqs.Sequence, rec *detect.Record) error {
	if rec.Trimmed == nil {
		return seqs.WriteFasta(w, query)
	}
	return seqs.WriteFasta(w, &seqs.Sequence{Name: query.Name, Aligned: rec.Trimmed})
}
