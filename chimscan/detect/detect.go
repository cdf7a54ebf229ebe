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

// Package detect checks query sequences for chimeras against a template,
// chaining candidate searching, breakpoint scanning, and the decision.
package detect

import (
	"context"
	"fmt"

	"github.com/shenwei356/chimscan/chimscan/decide"
	"github.com/shenwei356/chimscan/chimscan/index"
	"github.com/shenwei356/chimscan/chimscan/parents"
	"github.com/shenwei356/chimscan/chimscan/seqs"
	"github.com/shenwei356/chimscan/chimscan/slayer"
)

// Detector checks queries for chimeras.
// It's safe for concurrent use once created and masked.
type Detector struct {
	opt Options

	filter *seqs.Filter     // columns kept for the template
	spots  seqs.SpotMap     // filtered column -> original column
	refs   *seqs.Collection // filtered template sequences
	alnLen int              // alignment length before filtering

	tpl    *index.Template  // the fixed template, nil in self-reference mode
	abunds *seqs.Abundances // self-reference mode only

	mask *seqs.Mask

	finder    *parents.Finder
	realigner *parents.Realigner
	scanner   *slayer.Scanner
	th        decide.Thresholds
}

// New creates a Detector with a fixed template, whose sub-indexes are built,
// or loaded from index files when opt.CachePrefix is given.
// Columns are filtered over the template and the given queries, so columns
// with bases only in queries are kept. Queries not given here can still be
// checked, but their bases in columns gapped in all given rows are ignored.
// Index files are keyed by the filtered template.
func New(ctx context.Context, refs *seqs.Collection, opt *Options, queries ...*seqs.Sequence) (*Detector, error) {
	d, err := newDetector(refs, opt, queries)
	if err != nil {
		return nil, err
	}

	d.tpl, err = index.Build(ctx, d.refs, opt.buildOptions())
	if err != nil {
		return nil, err
	}
	return d, nil
}

// NewSelf creates a Detector in self-reference mode: the template of every
// query is made of the sequences more abundant than the query, see Options.Include.
// Sub-indexes are built for every query and never cached.
func NewSelf(ctx context.Context, refs *seqs.Collection, abunds *seqs.Abundances, opt *Options) (*Detector, error) {
	if err := abunds.Validate(refs); err != nil {
		return nil, err
	}
	d, err := newDetector(refs, opt, nil)
	if err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	d.abunds = abunds
	return d, nil
}

func newDetector(refs *seqs.Collection, opt *Options, queries []*seqs.Sequence) (*Detector, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	if refs.Len() == 0 {
		return nil, fmt.Errorf("detect: no template sequences given")
	}

	d := &Detector{opt: *opt, alnLen: refs.AlignmentLength()}

	aligned := make([][]byte, 0, refs.Len()+len(queries))
	for _, s := range refs.Seqs {
		aligned = append(aligned, s.Aligned)
	}
	for _, s := range queries {
		aligned = append(aligned, s.Aligned)
	}
	var err error
	d.filter, err = seqs.NewGapFilter(aligned...)
	if err != nil {
		return nil, err
	}
	d.spots = d.filter.SpotMap()

	filtered := make([]*seqs.Sequence, refs.Len())
	for i, s := range refs.Seqs {
		filtered[i] = &seqs.Sequence{Name: s.Name, Aligned: d.filter.Apply(s.Aligned)}
	}
	if d.refs, err = seqs.NewCollection(filtered); err != nil {
		return nil, err
	}

	if d.finder, err = parents.NewFinder(opt.parentsOptions()); err != nil {
		return nil, err
	}
	if d.scanner, err = slayer.NewScanner(opt.slayerOptions()); err != nil {
		return nil, err
	}
	d.realigner = parents.NewRealigner(opt.MatchScore, opt.MismatchScore)
	d.th = opt.thresholds()
	return d, nil
}

// SetMask sets the columns to exclude from scanning.
// It must be called before checking any query.
func (d *Detector) SetMask(m *seqs.Mask) { d.mask = m }

// AlignmentLength returns the alignment length of the template.
func (d *Detector) AlignmentLength() int { return d.alnLen }

// Columns returns the number of columns kept after filtering out
// columns made only of gaps in the template.
func (d *Detector) Columns() int { return d.filter.Len() }

// Template returns the fixed template, nil in self-reference mode.
func (d *Detector) Template() *index.Template { return d.tpl }

// TemplateFor returns the template of a query.
// In self-reference mode, the template might be empty.
func (d *Detector) TemplateFor(ctx context.Context, name string) (*index.Template, error) {
	if d.abunds == nil {
		return d.tpl, nil
	}

	names, err := d.abunds.Candidates(name, d.opt.Include)
	if err != nil {
		return nil, err
	}
	sub := d.refs.Subset(func(s *seqs.Sequence) bool {
		_, ok := names[s.Name]
		return ok
	})
	if sub.Len() == 0 {
		return &index.Template{Seqs: sub}, nil
	}

	opt := d.opt.buildOptions()
	opt.CachePrefix = ""
	return index.Build(ctx, sub, opt)
}

// Call is a reported scan result, with window bounds in original columns.
type Call struct {
	Name string // the query, or one of its halves

	ParentA, ParentB string

	DivergenceAB float64
	IdentityAB   float64
	BootstrapA   float64

	DivergenceBA float64
	IdentityBA   float64
	BootstrapB   float64

	Flag bool // the decision of the whole query

	WindowLeft  [2]int // 1-based, inclusive
	WindowRight [2]int // 1-based, inclusive
}

// Record is the outcome of checking a query.
type Record struct {
	QueryID string
	Flag    bool

	Calls []*Call // empty for no qualified windows

	// two-piece mode
	LeftChimeric  bool
	RightChimeric bool
	Choice        decide.Choice

	Parents      []string // candidate parents, of the whole query or of both halves
	TemplateSize int

	Trimmed []byte // the query with masked segments, only when trimming is on
}

// halves of a query in two-piece mode
const (
	suffixLeft  = "_LEFT"
	suffixRight = "_RIGHT"
)

// Detect checks a query.
// The query must have the alignment length of the template.
func (d *Detector) Detect(ctx context.Context, query *seqs.Sequence) (*Record, error) {
	if len(query.Aligned) != d.alnLen {
		return nil, fmt.Errorf("%w: query %s has %d columns, the template has %d",
			seqs.ErrAlignmentLength, query.Name, len(query.Aligned), d.alnLen)
	}

	tpl, err := d.TemplateFor(ctx, query.Name)
	if err != nil {
		return nil, err
	}

	rec := &Record{QueryID: query.Name, TemplateSize: tpl.Len()}
	if d.opt.Trim {
		rec.Trimmed = make([]byte, len(query.Aligned))
		copy(rec.Trimmed, query.Aligned)
	}
	if tpl.Len() == 0 {
		return rec, nil
	}

	fq := d.filter.Apply(query.Aligned)

	if !d.opt.Split {
		p, names, err := d.scanPiece(ctx, fq, tpl, 0, len(fq))
		if err != nil {
			return nil, err
		}
		rec.Parents = names
		if p.Result == nil {
			return rec, nil
		}

		rec.Flag = d.th.IsChimeric(p.Result)
		rec.Calls = []*Call{d.call(query.Name, p.Result, rec.Flag)}
		if d.opt.Trim && rec.Flag {
			rec.Trimmed = decide.Trim(query.Aligned, p)
		}
		return rec, nil
	}

	// two pieces
	mid := splitColumn(fq)
	left, namesL, err := d.scanPiece(ctx, fq, tpl, 0, mid)
	if err != nil {
		return nil, err
	}
	right, namesR, err := d.scanPiece(ctx, fq, tpl, mid, len(fq))
	if err != nil {
		return nil, err
	}
	rec.Parents = append(namesL, namesR...)
	if left.Result == nil && right.Result == nil {
		return rec, nil
	}

	dec := d.th.Reconcile(left, right)
	rec.Flag = dec.Flag
	rec.LeftChimeric, rec.RightChimeric = dec.LeftChimeric, dec.RightChimeric
	rec.Choice = dec.Choice

	switch {
	case dec.LeftChimeric && !dec.RightChimeric:
		rec.Calls = []*Call{d.call(query.Name, left.Result, rec.Flag)}
	case !dec.LeftChimeric && dec.RightChimeric:
		rec.Calls = []*Call{d.call(query.Name, right.Result, rec.Flag)}
	default:
		if left.Result != nil {
			rec.Calls = append(rec.Calls, d.call(query.Name+suffixLeft, left.Result, rec.Flag))
		}
		if right.Result != nil {
			rec.Calls = append(rec.Calls, d.call(query.Name+suffixRight, right.Result, rec.Flag))
		}
	}

	if d.opt.Trim && dec.Flag {
		rec.Trimmed = decide.TrimPieces(query.Aligned, dec.Choice, left, right)
	}
	return rec, nil
}

// scanPiece finds candidate parents of the filtered query restricted to
// columns [start, end), and scans them.
// It returns the best result, and names of the candidate parents.
func (d *Detector) scanPiece(ctx context.Context, fq []byte, tpl *index.Template,
	start, end int) (*decide.Piece, []string, error) {

	q := fq
	if start > 0 || end < len(fq) {
		q = maskOutside(fq, start, end)
	}

	cands, err := d.finder.Find(ctx, q, tpl)
	if err != nil {
		return nil, nil, err
	}
	cands = parents.Rank(parents.Dedup(cands), d.opt.MaxParents)
	if d.opt.Realign {
		if cands, err = d.realigner.Realign(q, cands); err != nil {
			return nil, nil, err
		}
	}

	p := &decide.Piece{Spots: d.spots}
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.Name
	}
	if len(cands) < 2 {
		return p, names, nil
	}

	ps := make([]*seqs.Sequence, len(cands))
	for i, c := range cands {
		s := d.mask.Apply(c.Aligned, d.spots)
		if start > 0 || end < len(s) {
			s = maskOutside(s, start, end)
		}
		ps[i] = &seqs.Sequence{Name: c.Name, Aligned: s}
	}

	results, err := d.scanner.Scan(ctx, d.mask.Apply(q, d.spots), ps)
	if err != nil {
		return nil, nil, err
	}
	if len(results) > 0 {
		p.Result = results[0]
	}
	return p, names, nil
}

func (d *Detector) call(name string, r *slayer.Result, flag bool) *Call {
	return &Call{
		Name:    name,
		ParentA: r.ParentA,
		ParentB: r.ParentB,

		DivergenceAB: r.DivRatioAB,
		IdentityAB:   r.IdentityAB,
		BootstrapA:   r.BootstrapA,

		DivergenceBA: r.DivRatioBA,
		IdentityBA:   r.IdentityBA,
		BootstrapB:   r.BootstrapB,

		Flag: flag,

		WindowLeft:  [2]int{d.spots[r.WinLStart], d.spots[r.WinLEnd]},
		WindowRight: [2]int{d.spots[r.WinRStart], d.spots[r.WinREnd]},
	}
}

// splitColumn returns the column following the middle base of s,
// the left half holds the first n/2 bases.
func splitColumn(s []byte) int {
	var n int
	for _, c := range s {
		if !seqs.IsGap(c) {
			n++
		}
	}
	half := n / 2
	if half == 0 {
		return 0
	}

	n = 0
	for i, c := range s {
		if seqs.IsGap(c) {
			continue
		}
		n++
		if n == half {
			return i + 1
		}
	}
	return len(s)
}

// maskOutside returns a copy of s with columns outside [start, end) masked.
func maskOutside(s []byte, start, end int) []byte {
	out := make([]byte, len(s))
	copy(out, s)
	decide.Mask(out, decide.Range{Start: 0, End: start}, decide.Range{Start: end, End: len(out)})
	return out
}
