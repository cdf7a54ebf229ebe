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
	"bytes"
	"errors"
	"fmt"

	"github.com/zeebo/wyhash"
)

// ErrAlignmentLength means sequences do not share the same alignment length.
var ErrAlignmentLength = errors.New("seqs: inconsistent alignment length")

// ErrDuplicatedName means a name appears more than once in a collection.
var ErrDuplicatedName = errors.New("seqs: duplicated sequence name")

// IsGap tells if a character is an alignment gap.
func IsGap(c byte) bool {
	return c == '-' || c == '.'
}

// IsBase tells if a character is one of ACGT.
func IsBase(c byte) bool {
	switch c {
	case 'A', 'C', 'G', 'T':
		return true
	}
	return false
}

// Sequence is a named, aligned sequence.
type Sequence struct {
	Name    string
	Aligned []byte
}

// NewSequence creates a Sequence, residues are converted to upper case.
func NewSequence(name string, aligned []byte) *Sequence {
	return &Sequence{Name: name, Aligned: bytes.ToUpper(aligned)}
}

// Len returns the alignment length.
func (s *Sequence) Len() int { return len(s.Aligned) }

// Unaligned returns the residues with gaps removed.
func (s *Sequence) Unaligned() []byte {
	u := make([]byte, 0, len(s.Aligned))
	for _, c := range s.Aligned {
		if !IsGap(c) {
			u = append(u, c)
		}
	}
	return u
}

// NumBases returns the number of non-gap characters.
func (s *Sequence) NumBases() int {
	var n int
	for _, c := range s.Aligned {
		if !IsGap(c) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (s *Sequence) Clone() *Sequence {
	aligned := make([]byte, len(s.Aligned))
	copy(aligned, s.Aligned)
	return &Sequence{Name: s.Name, Aligned: aligned}
}

func (s *Sequence) String() string {
	return fmt.Sprintf(">%s\n%s", s.Name, s.Aligned)
}

// Collection is an ordered set of aligned sequences of the same length.
type Collection struct {
	Seqs []*Sequence

	alnLen int
	names  map[string]int
}

// NewCollection creates a Collection and checks the alignment length
// and name uniqueness.
func NewCollection(seqs []*Sequence) (*Collection, error) {
	c := &Collection{
		Seqs:   make([]*Sequence, 0, len(seqs)),
		alnLen: -1,
		names:  make(map[string]int, len(seqs)),
	}
	for _, s := range seqs {
		if err := c.Add(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add appends a sequence.
func (c *Collection) Add(s *Sequence) error {
	if c.alnLen < 0 {
		c.alnLen = len(s.Aligned)
	} else if len(s.Aligned) != c.alnLen {
		return fmt.Errorf("%w: %s has %d columns, expected %d",
			ErrAlignmentLength, s.Name, len(s.Aligned), c.alnLen)
	}
	if _, ok := c.names[s.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatedName, s.Name)
	}
	c.names[s.Name] = len(c.Seqs)
	c.Seqs = append(c.Seqs, s)
	return nil
}

// Len returns the number of sequences.
func (c *Collection) Len() int { return len(c.Seqs) }

// AlignmentLength returns the shared alignment length, 0 for an empty collection.
func (c *Collection) AlignmentLength() int {
	if c.alnLen < 0 {
		return 0
	}
	return c.alnLen
}

// Get returns a sequence by name.
func (c *Collection) Get(name string) (*Sequence, bool) {
	i, ok := c.names[name]
	if !ok {
		return nil, false
	}
	return c.Seqs[i], true
}

// Index returns the position of a name, -1 for absent names.
func (c *Collection) Index(name string) int {
	i, ok := c.names[name]
	if !ok {
		return -1
	}
	return i
}

// Names returns sequence names in order.
func (c *Collection) Names() []string {
	names := make([]string, len(c.Seqs))
	for i, s := range c.Seqs {
		names[i] = s.Name
	}
	return names
}

// Subset returns a new collection with sequences accepted by keep, in order.
// Sequences are shared, not copied.
func (c *Collection) Subset(keep func(s *Sequence) bool) *Collection {
	sub := &Collection{
		Seqs:   make([]*Sequence, 0, len(c.Seqs)),
		alnLen: c.alnLen,
		names:  make(map[string]int, len(c.Seqs)),
	}
	for _, s := range c.Seqs {
		if keep(s) {
			sub.names[s.Name] = len(sub.Seqs)
			sub.Seqs = append(sub.Seqs, s)
		}
	}
	return sub
}

// Fingerprint hashes names and residues of all sequences, in order.
func (c *Collection) Fingerprint() uint64 {
	var h uint64 = 1
	for _, s := range c.Seqs {
		h = wyhash.Hash([]byte(s.Name), h)
		h = wyhash.Hash(s.Aligned, h)
	}
	return h
}
