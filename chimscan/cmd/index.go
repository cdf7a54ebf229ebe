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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shenwei356/chimscan/chimscan/detect"
	"github.com/shenwei356/chimscan/chimscan/index"
	"github.com/shenwei356/chimscan/chimscan/seqs"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build k-mer indexes of references",
	Long: `Build k-mer indexes of references

The left and right thirds of references are indexed separately, and saved to
  <prefix>.left.<k>mer
  <prefix>.right.<k>mer
which are loaded by "chimscan chimera" with the same references, prefix, and k-mer size.

Attention:
  1. Columns made only of gaps are removed before indexing, in the same way as
     "chimscan chimera" does, so the index files are bound to the reference file.
  2. Existing index files are reused if they match the references, use --force to rebuild.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		outputLog := opt.Verbose || opt.Log2File
		timeStart := time.Now()
		defer func() {
			if outputLog {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		refFile := getFlagPath(cmd, "reference")
		if refFile == "" {
			checkError(fmt.Errorf("flag -r/--reference is needed"))
		}
		prefix := getFlagPath(cmd, "index-prefix")
		if prefix == "" {
			prefix, _, _ = filepathTrimExtension(refFile, nil)
		}
		k := getFlagPositiveInt(cmd, "kmer")
		force := getFlagBool(cmd, "force")
		topN := getFlagNonNegativeInt(cmd, "top-kmers")

		dopt := detect.DefaultOptions()
		dopt.K = k
		dopt.CachePrefix = prefix
		checkError(dopt.Validate())

		sides := []string{"left", "right"}
		files := []string{index.KmerDBFile(prefix, sides[0], k), index.KmerDBFile(prefix, sides[1], k)}
		if force {
			for _, file := range files {
				existed, err := pathutil.Exists(file)
				checkError(err)
				if existed {
					if outputLog {
						log.Infof("removing old index file: %s", file)
					}
					checkError(os.Remove(file))
				}
			}
		}

		if outputLog {
			log.Infof("chimscan v%s", VERSION)
			log.Info()
			log.Infof("reading references from %s ...", refFile)
		}
		refs, err := seqs.ReadCollection(refFile)
		checkError(err)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if outputLog {
			log.Infof("building index of %d references with k=%d ...", refs.Len(), k)
		}
		d, err := detect.New(ctx, refs, &dopt)
		checkError(err)

		tpl := d.Template()
		if outputLog {
			log.Infof("  %d columns, %d informative", d.AlignmentLength(), d.Columns())
			for i, db := range []index.Searcher{tpl.Left, tpl.Right} {
				kdb, ok := db.(*index.KmerDB)
				if !ok {
					continue
				}
				log.Infof("  %s: %d distinct k-mers of %d sequences", sides[i], kdb.NumKmers(), kdb.Len())
				for _, kc := range kdb.TopKmers(topN) {
					log.Infof("    %s shared by %d sequences", kc.Kmer, kc.Count)
				}
			}
			logCacheStatus(tpl)
		}
	},
}

func init() {
	RootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringP("reference", "r", "",
		formatFlagUsage(`Aligned FASTA file of references.`))

	indexCmd.Flags().StringP("index-prefix", "", "",
		formatFlagUsage(`Prefix of index files. By default, it's the reference file with the extension removed.`))

	indexCmd.Flags().IntP("kmer", "k", detect.DefaultOptions().K,
		formatFlagUsage(`K-mer size, should be in [1, 32].`))

	indexCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Rebuild existing index files.`))

	indexCmd.Flags().IntP("top-kmers", "", 5,
		formatFlagUsage(`Number of the most shared k-mers to show for each index, 0 for none.`))

	indexCmd.SetUsageTemplate(usageTemplate("-r <ref.fasta> [-k <k>] [--index-prefix <prefix>]"))
}
