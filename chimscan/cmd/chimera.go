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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sync"
	"syscall"
	"time"

	perrors "github.com/pkg/errors"
	"github.com/shenwei356/chimscan/chimscan/detect"
	"github.com/shenwei356/chimscan/chimscan/index"
	"github.com/shenwei356/chimscan/chimscan/seqs"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"gonum.org/v1/gonum/stat"
)

var chimeraCmd = &cobra.Command{
	Use:   "chimera",
	Short: "Detect chimeric sequences",
	Long: `Detect chimeric sequences

Input:
  1. Queries and references should be sequences of the same multiple alignment,
     i.e., all sequences have the same length. Gaps are '-' or '.'.
  2. Queries can be given via positional arguments, the flag -X/--infile-list,
     or a directory via the flag -I/--in-dir.
  3. References are given with -r/--reference. Use "-r self" to check queries against
     more abundant queries, with abundances from a name file (-n/--name-file) of two
     tab-delimited columns: representative name, comma-separated member names.

Attention:
  1. K-mer indexes of the references are saved to <prefix>.left.<k>mer and
     <prefix>.right.<k>mer (see --index-prefix), and reused in later runs.
     Outdated or broken index files are rebuilt.
  2. Columns can be excluded from scanning with -m/--mask, a file of a 0/1 lane mask,
     or of 1-based column ranges ("start-end") in lines.

Output format:
  Tab-delimited format with 12 columns, with 1-based positions.
  Queries without any qualified breakpoint are written as "<name>\tno".

    1.  Name,        Query ID, with a suffix of "_LEFT" or "_RIGHT" for halves (--split).
    2.  LeftParent,  Parent of the left segment in the hypothesis AB.
    3.  RightParent, Parent of the right segment in the hypothesis AB.
    4.  DivQLAQRB,   Divergence ratio of the hypothesis AB.
    5.  PerIDQLAQRB, Identity (percentage) of the hypothesis AB.
    6.  BootStrapA,  Bootstrap support of the hypothesis AB.
    7.  DivQLBQRA,   Divergence ratio of the hypothesis BA.
    8.  PerIDQLBQRA, Identity (percentage) of the hypothesis BA.
    9.  BootStrapB,  Bootstrap support of the hypothesis BA.
    10. Flag,        Chimeric or not (yes/no).
    11. LeftWindow,  Columns of the left segment.
    12. RightWindow, Columns of the right segment.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		outFile := getFlagPath(cmd, "out-file")

		var fhLog *os.File
		if opt.Log2File {
			ro, err := filepath.Abs(outFile)
			if err != nil {
				checkError(fmt.Errorf("failed to check output file: %s", err))
			}
			rl, err := filepath.Abs(opt.LogFile)
			if err != nil {
				checkError(fmt.Errorf("failed to check log file: %s", err))
			}
			if ro == rl {
				checkError(fmt.Errorf("output file and log file should not be the same: %s", outFile))
			}
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

		// ---------------------------------------------------------------
		// flags

		dopt, err := getDetectOptions(cmd)
		checkError(err)

		refFile := getFlagPath(cmd, "reference")
		nameFile := getFlagPath(cmd, "name-file")
		maskFile := getFlagPath(cmd, "mask")
		indexPrefix := getFlagPath(cmd, "index-prefix")
		noIndexFile := getFlagBool(cmd, "no-index-file")
		accnosFile := getFlagPath(cmd, "out-accnos")
		trimmedFile := getFlagPath(cmd, "out-trimmed")
		maxConc := getFlagPositiveInt(cmd, "max-query-conc")
		skipFileCheck := getFlagBool(cmd, "skip-file-check")

		selfMode := refFile == "self"
		if refFile == "" {
			checkError(fmt.Errorf("flag -r/--reference is needed"))
		}
		if selfMode && nameFile == "" {
			checkError(fmt.Errorf("flag -n/--name-file is needed with '-r self'"))
		}
		if dopt.Trim && trimmedFile == "" {
			checkError(fmt.Errorf("flag --out-trimmed is needed with --trim"))
		}
		if !selfMode && !noIndexFile && dopt.Mode == index.ModeKmer {
			if indexPrefix == "" {
				indexPrefix, _, _ = filepathTrimExtension(refFile, nil)
			}
			dopt.CachePrefix = indexPrefix
		}

		// ---------------------------------------------------------------
		// input files

		if outputLog {
			log.Infof("chimscan v%s", VERSION)
			log.Info()
			log.Info("checking input files ...")
		}

		var files []string
		inDir := getFlagPath(cmd, "in-dir")
		if inDir != "" {
			isDir, err := pathutil.IsDir(inDir)
			if err != nil {
				checkError(perrors.Wrapf(err, "checking -I/--in-dir"))
			}
			if !isDir {
				checkError(fmt.Errorf("value of -I/--in-dir should be a directory: %s", inDir))
			}

			reFileStr := getFlagString(cmd, "file-regexp")
			if !reIgnoreCase.MatchString(reFileStr) {
				reFileStr = reIgnoreCaseStr + reFileStr
			}
			reFile, err := regexp.Compile(reFileStr)
			checkError(perrors.Wrapf(err, "failed to parse regular expression for matching file: %s", reFileStr))

			files, err = getFileListFromDir(inDir, reFile, opt.NumCPUs)
			checkError(perrors.Wrapf(err, "walking dir: %s", inDir))
			if len(files) == 0 {
				log.Warningf("  no files matching regular expression: %s", reFileStr)
			}
		} else {
			files = getFileListFromArgsAndFile(cmd, args, !skipFileCheck, "infile-list", !skipFileCheck)
			if outputLog && len(files) == 1 && isStdin(files[0]) {
				log.Info("  no files given, reading from stdin")
			}
		}
		if len(files) < 1 {
			checkError(fmt.Errorf("FASTA files needed"))
		}

		queries := make([]*seqs.Sequence, 0, 1024)
		for _, file := range files {
			list, err := seqs.ReadFasta(file)
			checkError(err)
			queries = append(queries, list...)
		}
		if outputLog {
			log.Infof("  %d queries read from %d file(s)", len(queries), len(files))
		}

		// ---------------------------------------------------------------
		// log

		if outputLog {
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			if selfMode {
				log.Infof("references: queries more abundant than the query (%s), abundances: %s", dopt.Include, nameFile)
			} else {
				log.Infof("references: %s", refFile)
			}
			log.Infof("searching method: %s, k: %d, hits wanted: %d", dopt.Mode, dopt.K, dopt.NumWanted)
			log.Infof("match: %d, mismatch: %d", dopt.MatchScore, dopt.MismatchScore)
			log.Infof("min similarity: %.2f, min coverage: %.2f, max parents: %d, realign: %v",
				dopt.MinSimilarity, dopt.MinCoverage, dopt.MaxParents, dopt.Realign)
			log.Infof("window: %d, increment: %d, min informative columns: %d", dopt.Window, dopt.Increment, dopt.MinSNPs)
			log.Infof("bootstrap iterations: %d, seed: %d", dopt.Iterations, dopt.Seed)
			log.Infof("min divergence ratio: %.4f, min bootstrap support: %.2f", dopt.MinDivergence, dopt.MinBootstrap)
			log.Infof("trim: %v, split: %v", dopt.Trim, dopt.Split)
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
		}

		// ---------------------------------------------------------------
		// detector

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var d *detect.Detector
		if selfMode {
			abunds, err := seqs.ReadNameFile(nameFile)
			checkError(err)
			refs, err := seqs.NewCollection(queries)
			checkError(err)
			d, err = detect.NewSelf(ctx, refs, abunds, dopt)
			checkError(err)
		} else {
			if outputLog {
				log.Infof("loading references and building index ...")
			}
			refs, err := seqs.ReadCollection(refFile)
			checkError(err)
			d, err = detect.New(ctx, refs, dopt, queries...)
			checkError(err)
			if outputLog {
				log.Infof("  %d references with %d columns (%d informative)", refs.Len(), d.AlignmentLength(), d.Columns())
				logCacheStatus(d.Template())
			}
		}

		if maskFile != "" {
			m, err := seqs.ReadMask(maskFile)
			checkError(err)
			d.SetMask(m)
			if outputLog {
				log.Infof("  %d masked column ranges", m.Len())
			}
		}

		// ---------------------------------------------------------------
		// output

		outfh, err := openOutput(outFile, opt.CompressionLevel)
		checkError(err)
		outfh.WriteString(reportHeader)

		var accfh, trimfh *output
		if accnosFile != "" {
			accfh, err = openOutput(accnosFile, opt.CompressionLevel)
			checkError(err)
		}
		if dopt.Trim {
			trimfh, err = openOutput(trimmedFile, opt.CompressionLevel)
			checkError(err)
		}

		// ---------------------------------------------------------------
		// checking

		if outputLog {
			log.Infof("checking %d queries with %d threads ...", len(queries), opt.NumCPUs)
		}

		// process bar
		var pbs *mpb.Progress
		var bar *mpb.Bar
		var chDuration chan time.Duration
		var doneDuration chan int
		if opt.Verbose {
			pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
			bar = pbs.AddBar(int64(len(queries)),
				mpb.PrependDecorators(
					decor.Name("processed queries: ", decor.WC{W: len("processed queries: "), C: decor.DindentRight}),
					decor.Name("", decor.WCSyncSpaceR),
					decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
				),
				mpb.AppendDecorators(
					decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
					decor.EwmaETA(decor.ET_STYLE_GO, 10),
					decor.OnComplete(decor.Name(""), ". done"),
				),
			)

			chDuration = make(chan time.Duration, opt.NumCPUs)
			doneDuration = make(chan int)
			go func() {
				for t := range chDuration {
					bar.EwmaIncrBy(1, t)
				}
				doneDuration <- 1
			}()
		}

		var nChimeras, nErrors int
		bootstraps := make([]float64, 0, 1024)

		printRecord := func(r *result) {
			if r.err != nil {
				if errors.Is(r.err, context.Canceled) {
					return
				}
				nErrors++
				log.Warningf("skipping query %s: %s", r.query.Name, r.err)
				return
			}

			rec := r.rec
			writeRecord(outfh.Writer, rec)
			if rec.Flag {
				nChimeras++
				bootstraps = append(bootstraps, bestBootstrap(rec))
				if accfh != nil {
					accfh.WriteString(rec.QueryID)
					accfh.WriteByte('\n')
				}
			}
			if trimfh != nil {
				checkError(writeTrimmed(trimfh.Writer, r.query, rec))
			}
		}

		// outputter, keeping the order of queries
		ch := make(chan *result, maxConc)
		done := make(chan int)
		go func() {
			buf := make(map[int]*result, maxConc)
			var next int
			for r := range ch {
				buf[r.id] = r
				for {
					r2, ok := buf[next]
					if !ok {
						break
					}
					delete(buf, next)
					printRecord(r2)
					next++
				}
			}
			done <- 1
		}()

		var wg sync.WaitGroup
		tokens := make(chan int, maxConc)
		for i, q := range queries {
			if ctx.Err() != nil {
				break
			}

			tokens <- 1
			wg.Add(1)
			go func(id int, q *seqs.Sequence) {
				defer func() {
					<-tokens
					wg.Done()
				}()

				t := time.Now()
				rec, err := d.Detect(ctx, q)
				ch <- &result{id: id, query: q, rec: rec, err: err}

				if opt.Verbose {
					chDuration <- time.Since(t)
				}
			}(i, q)
		}
		wg.Wait()
		close(ch)
		<-done

		if opt.Verbose {
			close(chDuration)
			<-doneDuration
			if ctx.Err() != nil {
				bar.Abort(false)
			}
			pbs.Wait()
		}

		// records written are complete even if interrupted
		for _, fh := range []*output{outfh, accfh, trimfh} {
			if fh != nil {
				checkError(fh.Close())
			}
		}

		if err = ctx.Err(); err != nil {
			checkError(fmt.Errorf("interrupted: %s", err))
		}

		if outputLog {
			log.Info()
			log.Infof("%d queries checked, %d chimeras found, %d queries skipped", len(queries), nChimeras, nErrors)
			if len(bootstraps) > 0 {
				mean, sd := stat.MeanStdDev(bootstraps, nil)
				log.Infof("  bootstrap support of chimeras: mean %.2f, sd %.2f", mean, sd)
			}
			if !isStdin(outFile) {
				log.Infof("report saved to: %s", outFile)
			}
			if accnosFile != "" {
				log.Infof("IDs of chimeras saved to: %s", accnosFile)
			}
			if dopt.Trim {
				log.Infof("trimmed sequences saved to: %s", trimmedFile)
			}
		}
	},
}

type result struct {
	id    int
	query *seqs.Sequence
	rec   *detect.Record
	err   error
}

func bestBootstrap(rec *detect.Record) float64 {
	var bs float64
	for _, c := range rec.Calls {
		if c.BootstrapA > bs {
			bs = c.BootstrapA
		}
		if c.BootstrapB > bs {
			bs = c.BootstrapB
		}
	}
	return bs
}

func logCacheStatus(tpl *index.Template) {
	if tpl == nil {
		return
	}
	for _, s := range []index.CacheStatus{tpl.LeftCache, tpl.RightCache} {
		if s.File == "" {
			continue
		}
		if s.Err != nil {
			log.Warningf("  index file rebuilt: %s", s.Err)
		}
		if s.Loaded {
			log.Infof("  index loaded from: %s", s.File)
		} else {
			log.Infof("  index saved to: %s", s.File)
		}
	}
}

func init() {
	RootCmd.AddCommand(chimeraCmd)

	// -----------------------------  input  -----------------------------

	chimeraCmd.Flags().StringP("reference", "r", "",
		formatFlagUsage(`Aligned FASTA file of references, or "self" for using abundant queries as references.`))

	chimeraCmd.Flags().StringP("name-file", "n", "",
		formatFlagUsage(`Name file of query abundances, needed with '-r self'.`))

	chimeraCmd.Flags().StringP("mask", "m", "",
		formatFlagUsage(`File of columns excluded from breakpoint scanning.`))

	chimeraCmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage(`Directory containing aligned FASTA files of queries. Directory symlinks are followed.`))

	chimeraCmd.Flags().StringP("file-regexp", "", `\.(f(ast)?a|fna|aln|align)(.gz)?$`,
		formatFlagUsage(`Regular expression for matching query files in -I/--in-dir, case ignored.`))

	chimeraCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of query files, one file per line.`))

	chimeraCmd.Flags().BoolP("skip-file-check", "S", false,
		formatFlagUsage(`Skip input file checking when given files or a file list.`))

	// -----------------------------  index  -----------------------------

	chimeraCmd.Flags().StringP("index-prefix", "", "",
		formatFlagUsage(`Prefix of k-mer index files. By default, it's the reference file with the extension removed.`))

	chimeraCmd.Flags().BoolP("no-index-file", "", false,
		formatFlagUsage(`Do not read or write k-mer index files.`))

	// -----------------------------  output  -----------------------------

	chimeraCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports a ".gz" suffix ("-" for stdout).`))

	chimeraCmd.Flags().StringP("out-accnos", "a", "",
		formatFlagUsage(`Out file of IDs of chimeras.`))

	chimeraCmd.Flags().StringP("out-trimmed", "t", "",
		formatFlagUsage(`Out FASTA file of all queries, with the shorter segments of chimeras masked (--trim).`))

	// -----------------------------  others  -----------------------------

	chimeraCmd.Flags().IntP("max-query-conc", "J", 8,
		formatFlagUsage(`Maximum number of concurrent queries.`))

	addDetectFlags(chimeraCmd)

	chimeraCmd.SetUsageTemplate(usageTemplate("-r {<ref.fasta> | self [-n <names>]} {<query files> | -I <dir> | -X <file list>} [-o <report>]"))
}
