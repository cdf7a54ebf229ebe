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
	"errors"
	"fmt"
	"strings"

	perrors "github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// ErrNameMissing means a template sequence is absent in the name file.
var ErrNameMissing = errors.New("seqs: sequence missing in the name file")

// ErrUniformRanks means all representatives have the same abundance.
var ErrUniformRanks = errors.New("seqs: all sequences have the same abundance, no templates can be chosen")

// IncludeMode decides which representatives can serve as templates of a query.
type IncludeMode int

const (
	// IncludeGreater uses representatives more abundant than the query.
	IncludeGreater IncludeMode = iota
	// IncludeGreaterEqual uses representatives at least as abundant as the query.
	IncludeGreaterEqual
	// IncludeAll uses all other representatives.
	IncludeAll
)

func (m IncludeMode) String() string {
	switch m {
	case IncludeGreater:
		return "greater"
	case IncludeGreaterEqual:
		return "greaterequal"
	case IncludeAll:
		return "all"
	}
	return "unknown"
}

// ParseIncludeMode parses "greater", "greaterequal" or "all".
func ParseIncludeMode(s string) (IncludeMode, error) {
	switch strings.ToLower(s) {
	case "greater":
		return IncludeGreater, nil
	case "greaterequal":
		return IncludeGreaterEqual, nil
	case "all":
		return IncludeAll, nil
	}
	return IncludeGreater, fmt.Errorf("invalid include-abunds value: %s, available: greater, greaterequal, all", s)
}

// Abundances holds the members and abundance rank of every representative.
type Abundances struct {
	names   []string            // representatives, in file order
	members map[string][]string // representative -> members
	ranks   map[string]int      // representative -> number of members
}

// NewAbundances creates an empty table.
func NewAbundances() *Abundances {
	return &Abundances{
		names:   make([]string, 0, 1024),
		members: make(map[string][]string, 1024),
		ranks:   make(map[string]int, 1024),
	}
}

// Add records a representative and its members.
// The first definition of a duplicated representative wins.
func (a *Abundances) Add(rep string, members []string) bool {
	if _, ok := a.members[rep]; ok {
		return false
	}
	a.names = append(a.names, rep)
	a.members[rep] = members
	a.ranks[rep] = len(members)
	return true
}

// Len returns the number of representatives.
func (a *Abundances) Len() int { return len(a.names) }

// Rank returns the abundance of a representative.
func (a *Abundances) Rank(rep string) (int, bool) {
	r, ok := a.ranks[rep]
	return r, ok
}

// Members returns the members of a representative.
func (a *Abundances) Members(rep string) []string {
	return a.members[rep]
}

// Validate checks that every template name is a representative
// and that the abundances are not all the same.
func (a *Abundances) Validate(templates *Collection) error {
	for _, s := range templates.Seqs {
		if _, ok := a.ranks[s.Name]; !ok {
			return fmt.Errorf("%w: %s", ErrNameMissing, s.Name)
		}
	}
	if len(a.names) == 0 {
		return ErrUniformRanks
	}
	r0 := a.ranks[a.names[0]]
	for _, name := range a.names[1:] {
		if a.ranks[name] != r0 {
			return nil
		}
	}
	return ErrUniformRanks
}

// Candidates returns the names of sequences allowed as templates of query:
// members of every other representative whose abundance passes the include mode.
// The query itself is never included. Names appear once, in file order.
func (a *Abundances) Candidates(query string, mode IncludeMode) (map[string]struct{}, error) {
	rq, ok := a.ranks[query]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNameMissing, query)
	}

	names := make(map[string]struct{}, len(a.names))
	var r int
	for _, rep := range a.names {
		if rep == query {
			continue
		}
		r = a.ranks[rep]
		switch mode {
		case IncludeGreater:
			if r <= rq {
				continue
			}
		case IncludeGreaterEqual:
			if r < rq {
				continue
			}
		}
		for _, m := range a.members[rep] {
			if m != query {
				names[m] = struct{}{}
			}
		}
	}
	return names, nil
}

// ReadNameFile reads a two-column tab-delimited file:
// representative name and a comma-separated member list.
func ReadNameFile(file string) (*Abundances, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, perrors.Wrap(err, file)
	}
	defer fh.Close()

	a := NewAbundances()

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64<<10), 256<<20)
	var line, rep, list string
	var found bool
	var members []string
	var n int
	for scanner.Scan() {
		n++
		line = strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		rep, list, found = strings.Cut(line, "\t")
		if !found {
			return nil, fmt.Errorf("%s: line %d: two tab-delimited columns expected", file, n)
		}
		rep = strings.TrimSpace(rep)

		members = make([]string, 0, 8)
		for _, m := range strings.Split(list, ",") {
			m = strings.TrimSpace(m)
			if m != "" {
				members = append(members, m)
			}
		}
		a.Add(rep, members)
	}
	if err = scanner.Err(); err != nil {
		return nil, perrors.Wrap(err, file)
	}

	return a, nil
}
