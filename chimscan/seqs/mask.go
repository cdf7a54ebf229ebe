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

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rdleal/intervalst/interval"
	"github.com/shenwei356/xopen"
)

// MaskChar replaces masked and trimmed residues.
const MaskChar = '.'

// Mask is a set of masked original columns (1-based, closed ranges).
type Mask struct {
	tree *interval.SearchTree[int, int]
	n    int // number of ranges
}

// NewMask returns an empty mask.
func NewMask() *Mask {
	cmpFn := func(x, y int) int { return x - y }
	return &Mask{tree: interval.NewSearchTree[int, int](cmpFn)}
}

// Add masks the columns [start, end], 1-based.
func (m *Mask) Add(start, end int) error {
	if start < 1 || end < start {
		return fmt.Errorf("seqs: invalid mask range: %d-%d", start, end)
	}
	if err := m.tree.Insert(start, end, m.n); err != nil {
		return err
	}
	m.n++
	return nil
}

// Len returns the number of ranges.
func (m *Mask) Len() int {
	if m == nil {
		return 0
	}
	return m.n
}

// Masked tells if an original column (1-based) is masked.
func (m *Mask) Masked(col int) bool {
	if m == nil || m.n == 0 {
		return false
	}
	_, ok := m.tree.AnyIntersection(col, col)
	return ok
}

// Apply returns a copy of s with masked columns replaced by MaskChar.
// spots maps positions of s to original columns, nil means s is unfiltered.
func (m *Mask) Apply(s []byte, spots SpotMap) []byte {
	out := make([]byte, len(s))
	copy(out, s)
	if m.Len() == 0 {
		return out
	}
	for i := range out {
		col := i + 1
		if spots != nil {
			col = spots[i]
		}
		if m.Masked(col) {
			out[i] = MaskChar
		}
	}
	return out
}

// ParseLaneMask creates a mask from a lane-mask string,
// where '0' masks the column and '1' keeps it.
func ParseLaneMask(lane string) (*Mask, error) {
	m := NewMask()
	start := 0
	for i := 0; i <= len(lane); i++ {
		if i < len(lane) {
			switch lane[i] {
			case '0':
				if start == 0 {
					start = i + 1
				}
				continue
			case '1':
			default:
				return nil, fmt.Errorf("seqs: invalid lane mask character: %c", lane[i])
			}
		}
		if start > 0 {
			if err := m.Add(start, i); err != nil {
				return nil, err
			}
			start = 0
		}
	}
	return m, nil
}

// ReadMask reads a mask file. A file consisting of a single line of 0 and 1
// is a lane mask, otherwise every line is a column range "start-end" or a column.
func ReadMask(file string) (*Mask, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	defer fh.Close()

	lines := make([]string, 0, 8)
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64<<10), 64<<20)
	var line string
	for scanner.Scan() {
		line = strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		lines = append(lines, line)
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrap(err, file)
	}

	if len(lines) == 1 && strings.Trim(lines[0], "01") == "" {
		return ParseLaneMask(lines[0])
	}

	m := NewMask()
	var start, end int
	for _, line = range lines {
		a, b, found := strings.Cut(line, "-")
		if start, err = strconv.Atoi(strings.TrimSpace(a)); err != nil {
			return nil, errors.Wrapf(err, "%s: invalid range: %s", file, line)
		}
		end = start
		if found {
			if end, err = strconv.Atoi(strings.TrimSpace(b)); err != nil {
				return nil, errors.Wrapf(err, "%s: invalid range: %s", file, line)
			}
		}
		if err = m.Add(start, end); err != nil {
			return nil, errors.Wrap(err, file)
		}
	}
	return m, nil
}
