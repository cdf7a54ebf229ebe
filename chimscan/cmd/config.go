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
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/shenwei356/chimscan/chimscan/detect"
	"github.com/shenwei356/chimscan/chimscan/seqs"
	"github.com/spf13/cobra"
)

// Config is the TOML file of detection parameters.
// Missing keys keep the values of command-line flags.
type Config struct {
	Search   SearchConfig   `toml:"search"`
	Parents  ParentsConfig  `toml:"parents"`
	Scan     ScanConfig     `toml:"scan"`
	Decision DecisionConfig `toml:"decision"`
	Self     SelfConfig     `toml:"self"`
}

type SearchConfig struct {
	Mode      *string `toml:"mode"`
	K         *int    `toml:"k"`
	Match     *int    `toml:"match"`
	Mismatch  *int    `toml:"mismatch"`
	NumWanted *int    `toml:"num_wanted"`
}

type ParentsConfig struct {
	MinSimilarity *float64 `toml:"min_similarity"`
	MinCoverage   *float64 `toml:"min_coverage"`
	MaxParents    *int     `toml:"max_parents"`
	Realign       *bool    `toml:"realign"`
}

type ScanConfig struct {
	Window     *int   `toml:"window"`
	Increment  *int   `toml:"increment"`
	MinSNPs    *int   `toml:"min_snps"`
	Iterations *int   `toml:"iterations"`
	Seed       *int64 `toml:"seed"`
}

type DecisionConfig struct {
	MinDivergence *float64 `toml:"min_divergence"`
	MinBootstrap  *float64 `toml:"min_bootstrap"`
	Trim          *bool    `toml:"trim"`
	Split         *bool    `toml:"split"`
}

type SelfConfig struct {
	Include *string `toml:"include"`
}

// LoadConfig reads a TOML file. Unknown keys are errors.
func LoadConfig(file string) (*Config, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	defer fh.Close()

	var cfg Config
	dec := toml.NewDecoder(fh)
	dec.DisallowUnknownFields()
	if err = dec.Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config file %s", file)
	}
	return &cfg, nil
}

// Apply overwrites options with values in the config,
// except for the ones whose flags are explicitly given.
func (cfg *Config) Apply(opt *detect.Options, changed func(flag string) bool) error {
	setInt := func(flag string, v *int, dst *int) {
		if v != nil && !changed(flag) {
			*dst = *v
		}
	}
	setFloat := func(flag string, v *float64, dst *float64) {
		if v != nil && !changed(flag) {
			*dst = *v
		}
	}
	setBool := func(flag string, v *bool, dst *bool) {
		if v != nil && !changed(flag) {
			*dst = *v
		}
	}

	if v := cfg.Search.Mode; v != nil && !changed("search") {
		opt.Mode = *v
	}
	setInt("kmer", cfg.Search.K, &opt.K)
	setInt("match", cfg.Search.Match, &opt.MatchScore)
	setInt("mismatch", cfg.Search.Mismatch, &opt.MismatchScore)
	setInt("num-wanted", cfg.Search.NumWanted, &opt.NumWanted)

	setFloat("min-sim", cfg.Parents.MinSimilarity, &opt.MinSimilarity)
	setFloat("min-cov", cfg.Parents.MinCoverage, &opt.MinCoverage)
	setInt("parents", cfg.Parents.MaxParents, &opt.MaxParents)
	setBool("realign", cfg.Parents.Realign, &opt.Realign)

	setInt("window", cfg.Scan.Window, &opt.Window)
	setInt("increment", cfg.Scan.Increment, &opt.Increment)
	setInt("min-snp", cfg.Scan.MinSNPs, &opt.MinSNPs)
	setInt("iters", cfg.Scan.Iterations, &opt.Iterations)
	if v := cfg.Scan.Seed; v != nil && !changed("seed") {
		opt.Seed = *v
	}

	setFloat("divergence", cfg.Decision.MinDivergence, &opt.MinDivergence)
	setFloat("min-bs", cfg.Decision.MinBootstrap, &opt.MinBootstrap)
	setBool("trim", cfg.Decision.Trim, &opt.Trim)
	setBool("split", cfg.Decision.Split, &opt.Split)

	if v := cfg.Self.Include; v != nil && !changed("include") {
		mode, err := seqs.ParseIncludeMode(*v)
		if err != nil {
			return err
		}
		opt.Include = mode
	}
	return nil
}

// getDetectOptions reads detection parameters from flags and the optional config file.
func getDetectOptions(cmd *cobra.Command) (*detect.Options, error) {
	include, err := seqs.ParseIncludeMode(getFlagString(cmd, "include"))
	if err != nil {
		return nil, err
	}

	opt := &detect.Options{
		Mode:          getFlagString(cmd, "search"),
		K:             getFlagInt(cmd, "kmer"),
		MatchScore:    getFlagInt(cmd, "match"),
		MismatchScore: getFlagInt(cmd, "mismatch"),
		NumWanted:     getFlagInt(cmd, "num-wanted"),

		MinSimilarity: getFlagFloat64(cmd, "min-sim"),
		MinCoverage:   getFlagFloat64(cmd, "min-cov"),
		MaxParents:    getFlagInt(cmd, "parents"),
		Realign:       getFlagBool(cmd, "realign"),

		Window:     getFlagInt(cmd, "window"),
		Increment:  getFlagInt(cmd, "increment"),
		MinSNPs:    getFlagInt(cmd, "min-snp"),
		Iterations: getFlagInt(cmd, "iters"),
		Seed:       int64(getFlagInt(cmd, "seed")),

		MinDivergence: getFlagFloat64(cmd, "divergence"),
		MinBootstrap:  getFlagFloat64(cmd, "min-bs"),
		Trim:          getFlagBool(cmd, "trim"),
		Split:         getFlagBool(cmd, "split"),

		Include: include,
	}

	if file := getFlagPath(cmd, "config"); file != "" {
		cfg, err := LoadConfig(file)
		if err != nil {
			return nil, err
		}
		if err = cfg.Apply(opt, cmd.Flags().Changed); err != nil {
			return nil, err
		}
	}

	if err = opt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parameters: %s", err)
	}
	return opt, nil
}

// addDetectFlags adds flags of detection parameters with default values.
func addDetectFlags(cmd *cobra.Command) {
	d := detect.DefaultOptions()

	// search
	cmd.Flags().StringP("search", "", d.Mode,
		formatFlagUsage(`Method of searching candidate parents in the left and right thirds of references. Available values: kmer, align.`))
	cmd.Flags().IntP("kmer", "k", d.K,
		formatFlagUsage(`K-mer size for the kmer method, should be in [1, 32].`))
	cmd.Flags().IntP("match", "", d.MatchScore,
		formatFlagUsage(`Score of a match, for the align method and the parent path.`))
	cmd.Flags().IntP("mismatch", "", d.MismatchScore,
		formatFlagUsage(`Score of a mismatch, for the align method and the parent path.`))
	cmd.Flags().IntP("num-wanted", "", d.NumWanted,
		formatFlagUsage(`Number of hits retained for each of the left and right thirds.`))

	// parents
	cmd.Flags().Float64P("min-sim", "", d.MinSimilarity,
		formatFlagUsage(`Minimum similarity (percentage) of a query segment to a parent.`))
	cmd.Flags().Float64P("min-cov", "", d.MinCoverage,
		formatFlagUsage(`Minimum coverage (percentage) of a query segment by a parent.`))
	cmd.Flags().IntP("parents", "", d.MaxParents,
		formatFlagUsage(`Maximum number of candidate parents to scan.`))
	cmd.Flags().BoolP("realign", "", d.Realign,
		formatFlagUsage(`Realign candidate parents to the query before scanning.`))

	// scanning
	cmd.Flags().IntP("window", "w", d.Window,
		formatFlagUsage(`Window size of breakpoint scanning.`))
	cmd.Flags().IntP("increment", "", d.Increment,
		formatFlagUsage(`Step size of breakpoint scanning.`))
	cmd.Flags().IntP("min-snp", "", d.MinSNPs,
		formatFlagUsage(`Minimum number of informative columns on each side of a breakpoint.`))
	cmd.Flags().IntP("iters", "", d.Iterations,
		formatFlagUsage(`Number of bootstrap iterations.`))
	cmd.Flags().IntP("seed", "s", int(d.Seed),
		formatFlagUsage(`Seed of the bootstrap random numbers.`))

	// decision
	cmd.Flags().Float64P("divergence", "", d.MinDivergence,
		formatFlagUsage(`Minimum divergence ratio of the chimeric model to the best single parent.`))
	cmd.Flags().Float64P("min-bs", "", d.MinBootstrap,
		formatFlagUsage(`Minimum bootstrap support (percentage) of a breakpoint.`))
	cmd.Flags().BoolP("trim", "", d.Trim,
		formatFlagUsage(`Output queries with the shorter chimeric segments masked, see --out-trimmed.`))
	cmd.Flags().BoolP("split", "", d.Split,
		formatFlagUsage(`Check the two halves of every query separately instead of the whole query.`))

	// self-reference
	cmd.Flags().StringP("include", "", d.Include.String(),
		formatFlagUsage(`In self-reference mode, sequences used as references of a query, by abundance. Available values: greater, greaterequal, all.`))
}
