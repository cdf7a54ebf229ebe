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

package detect

import (
	"fmt"

	"github.com/shenwei356/chimscan/chimscan/decide"
	"github.com/shenwei356/chimscan/chimscan/index"
	"github.com/shenwei356/chimscan/chimscan/parents"
	"github.com/shenwei356/chimscan/chimscan/seqs"
	"github.com/shenwei356/chimscan/chimscan/slayer"
)

// Options contains all options of chimera detection.
type Options struct {
	// template searching
	Mode          string // kmer or align
	K             int
	MatchScore    int
	MismatchScore int
	NumWanted     int
	CachePrefix   string // prefix of k-mer index files of the fixed template, empty for no caching

	// candidate parents
	MinSimilarity float64
	MinCoverage   float64
	MaxParents    int
	Realign       bool

	// breakpoint scanning
	Window     int
	Increment  int
	MinSNPs    int
	Iterations int
	Seed       int64

	// decision
	MinDivergence float64
	MinBootstrap  float64
	Trim          bool
	Split         bool

	// self-reference mode
	Include seqs.IncludeMode
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		Mode:          index.ModeKmer,
		K:             7,
		MatchScore:    5,
		MismatchScore: -4,
		NumWanted:     15,

		MinSimilarity: 90,
		MinCoverage:   70,
		MaxParents:    3,

		Window:     50,
		Increment:  5,
		MinSNPs:    10,
		Iterations: 1000,
		Seed:       1,

		MinDivergence: 1.007,
		MinBootstrap:  90,

		Include: seqs.IncludeGreater,
	}
}

// Validate checks the options.
func (opt *Options) Validate() error {
	if err := index.CheckBuildOptions(opt.buildOptions()); err != nil {
		return err
	}
	if err := parents.CheckOptions(opt.parentsOptions()); err != nil {
		return err
	}
	if err := slayer.CheckOptions(opt.slayerOptions()); err != nil {
		return err
	}
	if opt.MaxParents < 2 {
		return fmt.Errorf("invalid maximum number of parents: %d, at least 2 parents are needed", opt.MaxParents)
	}
	if opt.MinDivergence <= 0 {
		return fmt.Errorf("invalid divergence ratio: %f, should be positive", opt.MinDivergence)
	}
	if opt.MinBootstrap < 0 || opt.MinBootstrap > 100 {
		return fmt.Errorf("invalid minimum bootstrap support: %f, valid range: [0, 100]", opt.MinBootstrap)
	}
	switch opt.Include {
	case seqs.IncludeGreater, seqs.IncludeGreaterEqual, seqs.IncludeAll:
	default:
		return fmt.Errorf("invalid include mode: %d", opt.Include)
	}
	return nil
}

func (opt *Options) buildOptions() *index.BuildOptions {
	return &index.BuildOptions{
		Mode:          opt.Mode,
		K:             opt.K,
		MatchScore:    opt.MatchScore,
		MismatchScore: opt.MismatchScore,
		GapOpenScore:  index.DefaultBuildOptions.GapOpenScore,
		GapExtScore:   index.DefaultBuildOptions.GapExtScore,
		CachePrefix:   opt.CachePrefix,
	}
}

func (opt *Options) parentsOptions() *parents.Options {
	return &parents.Options{
		NumWanted:     opt.NumWanted,
		MatchScore:    opt.MatchScore,
		MismatchScore: opt.MismatchScore,
		SwitchPenalty: -3 * (opt.MatchScore - opt.MismatchScore),
		MinSimilarity: opt.MinSimilarity,
		MinCoverage:   opt.MinCoverage,
	}
}

func (opt *Options) slayerOptions() *slayer.Options {
	return &slayer.Options{
		WindowSize:    opt.Window,
		Increment:     opt.Increment,
		MinSimilarity: opt.MinSimilarity,
		MinSNPs:       opt.MinSNPs,
		Iterations:    opt.Iterations,
		Seed:          opt.Seed,
	}
}

func (opt *Options) thresholds() decide.Thresholds {
	return decide.Thresholds{
		MinBootstrap:  opt.MinBootstrap,
		MinDivergence: opt.MinDivergence,
	}
}
