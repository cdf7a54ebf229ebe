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
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCollection(t *testing.T) {
	_, err := NewCollection([]*Sequence{
		NewSequence("a", []byte("AC-GT")),
		NewSequence("b", []byte("AC-G")),
	})
	if !errors.Is(err, ErrAlignmentLength) {
		t.Errorf("expected ErrAlignmentLength, got %v", err)
	}

	_, err = NewCollection([]*Sequence{
		NewSequence("a", []byte("AC-GT")),
		NewSequence("a", []byte("ACTGT")),
	})
	if !errors.Is(err, ErrDuplicatedName) {
		t.Errorf("expected ErrDuplicatedName, got %v", err)
	}

	c, err := NewCollection([]*Sequence{
		NewSequence("a", []byte("ac-gt")),
		NewSequence("b", []byte("ACTG.")),
		NewSequence("c", []byte("A--GT")),
	})
	if err != nil {
		t.Error(err)
		return
	}
	if string(c.Seqs[0].Aligned) != "AC-GT" {
		t.Errorf("residues should be upper-cased: %s", c.Seqs[0].Aligned)
	}
	if string(c.Seqs[1].Unaligned()) != "ACTG" {
		t.Errorf("unexpected unaligned sequence: %s", c.Seqs[1].Unaligned())
	}

	sub := c.Subset(func(s *Sequence) bool { return s.Name != "b" })
	if sub.Len() != 2 || sub.Index("c") != 1 || sub.Index("b") != -1 {
		t.Errorf("unexpected subset: %v", sub.Names())
	}

	if c.Fingerprint() == sub.Fingerprint() {
		t.Errorf("fingerprints of different collections should differ")
	}
	c2, _ := NewCollection([]*Sequence{
		NewSequence("a", []byte("AC-GT")),
		NewSequence("b", []byte("ACTG.")),
		NewSequence("c", []byte("A--GT")),
	})
	if c.Fingerprint() != c2.Fingerprint() {
		t.Errorf("fingerprints of identical collections should be equal")
	}
}

func TestGapFilter(t *testing.T) {
	q := []byte("-A-C.-G")
	a := []byte("-A-CT-G")
	b := []byte("-T--T.G")

	f, err := NewGapFilter(q, a, b)
	if err != nil {
		t.Error(err)
		return
	}
	if f.Len() != 4 {
		t.Errorf("expected 4 informative columns, got %d", f.Len())
	}
	if s := string(f.Apply(q)); s != "AC.G" {
		t.Errorf("unexpected filtered query: %s", s)
	}

	spots := f.SpotMap()
	expected := []int{2, 4, 5, 7}
	for i, v := range expected {
		if spots[i] != v {
			t.Errorf("spot %d: expected %d, got %d", i, v, spots[i])
		}
	}
	for i := 1; i < len(spots); i++ {
		if spots[i] <= spots[i-1] {
			t.Errorf("spot map should be strictly increasing: %v", spots)
		}
	}

	if _, err = NewGapFilter(q, []byte("AC")); !errors.Is(err, ErrAlignmentLength) {
		t.Errorf("expected ErrAlignmentLength, got %v", err)
	}
}

func TestMask(t *testing.T) {
	m, err := ParseLaneMask("1100111001")
	if err != nil {
		t.Error(err)
		return
	}
	if m.Len() != 2 {
		t.Errorf("expected 2 ranges, got %d", m.Len())
	}
	s := m.Apply([]byte("ACGTACGTAC"), nil)
	if string(s) != "AC..ACG..C" {
		t.Errorf("unexpected masked sequence: %s", s)
	}

	// filtered sequence: columns 3, 4 and 9 of the original alignment
	s = m.Apply([]byte("GTA"), SpotMap{1, 3, 10})
	if string(s) != "G.A" {
		t.Errorf("unexpected masked filtered sequence: %s", s)
	}

	if _, err = ParseLaneMask("10x"); err == nil {
		t.Errorf("invalid lane mask should be rejected")
	}

	dir := t.TempDir()
	file := filepath.Join(dir, "mask.txt")
	if err = os.WriteFile(file, []byte("# masked columns\n2-3\n7\n"), 0644); err != nil {
		t.Error(err)
		return
	}
	m, err = ReadMask(file)
	if err != nil {
		t.Error(err)
		return
	}
	for col, masked := range map[int]bool{1: false, 2: true, 3: true, 4: false, 7: true, 8: false} {
		if m.Masked(col) != masked {
			t.Errorf("column %d: expected masked=%v", col, masked)
		}
	}
}

func TestAbundances(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "names.txt")
	data := "s1\ts1\ns2\ts2,x2\ns3\ts3,x3,y3\ns1\ts1,dup\n"
	if err := os.WriteFile(file, []byte(data), 0644); err != nil {
		t.Error(err)
		return
	}

	a, err := ReadNameFile(file)
	if err != nil {
		t.Error(err)
		return
	}
	if a.Len() != 3 {
		t.Errorf("expected 3 representatives, got %d", a.Len())
	}
	if r, _ := a.Rank("s1"); r != 1 {
		t.Errorf("duplicated representative should keep the first definition, rank: %d", r)
	}

	c, _ := NewCollection([]*Sequence{
		NewSequence("s1", []byte("ACGT")),
		NewSequence("s2", []byte("ACGT")),
		NewSequence("s3", []byte("ACGT")),
	})
	if err = a.Validate(c); err != nil {
		t.Error(err)
	}

	cases := []struct {
		query    string
		mode     IncludeMode
		expected []string
	}{
		{"s1", IncludeGreater, []string{"s2", "x2", "s3", "x3", "y3"}},
		{"s2", IncludeGreater, []string{"s3", "x3", "y3"}},
		{"s3", IncludeGreater, []string{}},
		{"s3", IncludeAll, []string{"s1", "s2", "x2"}},
		{"s2", IncludeGreaterEqual, []string{"s3", "x3", "y3"}},
	}
	for _, c := range cases {
		names, err := a.Candidates(c.query, c.mode)
		if err != nil {
			t.Error(err)
			continue
		}
		if len(names) != len(c.expected) {
			t.Errorf("%s/%s: expected %v, got %v", c.query, c.mode, c.expected, names)
			continue
		}
		for _, n := range c.expected {
			if _, ok := names[n]; !ok {
				t.Errorf("%s/%s: %s missing", c.query, c.mode, n)
			}
		}
		if _, ok := names[c.query]; ok {
			t.Errorf("%s/%s: the query itself should not be included", c.query, c.mode)
		}
	}

	c2, _ := NewCollection([]*Sequence{NewSequence("s4", []byte("ACGT"))})
	if err = a.Validate(c2); !errors.Is(err, ErrNameMissing) {
		t.Errorf("expected ErrNameMissing, got %v", err)
	}

	u := NewAbundances()
	u.Add("a", []string{"a", "b"})
	u.Add("c", []string{"c", "d"})
	if err = u.Validate(&Collection{}); !errors.Is(err, ErrUniformRanks) {
		t.Errorf("expected ErrUniformRanks, got %v", err)
	}
}
