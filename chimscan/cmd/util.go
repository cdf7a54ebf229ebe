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
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/iafan/cwalk"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"
)

// Options contains the global flags
type Options struct {
	NumCPUs int
	Verbose bool

	LogFile  string
	Log2File bool

	CompressionLevel int
}

func getOptions(cmd *cobra.Command) *Options {
	threads := getFlagNonNegativeInt(cmd, "threads")
	if threads == 0 {
		threads = runtime.NumCPU()
	}

	sorts.MaxProcs = threads
	runtime.GOMAXPROCS(threads)

	logfile := getFlagPath(cmd, "log")
	return &Options{
		NumCPUs: threads,
		Verbose: !getFlagBool(cmd, "quiet"),

		LogFile:  logfile,
		Log2File: logfile != "",

		CompressionLevel: -1,
	}
}

func getFileListFromDir(path string, pattern *regexp.Regexp, threads int) ([]string, error) {
	files := make([]string, 0, 512)
	ch := make(chan string, threads)
	done := make(chan int)
	go func() {
		for file := range ch {
			files = append(files, file)
		}
		done <- 1
	}()

	cwalk.NumWorkers = threads
	err := cwalk.WalkWithSymlinks(path, func(_path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && pattern.MatchString(info.Name()) {
			ch <- filepath.Join(path, _path)
		}
		return nil
	})
	close(ch)
	<-done
	if err != nil {
		return nil, err
	}

	return files, err
}

var defaultExts = []string{".gz", ".xz", ".zst", ".bz2"}

// filepathTrimExtension removes a compression extension and then the file extension,
// e.g., "ref.fasta.gz" -> ("ref", ".fasta", ".gz").
func filepathTrimExtension(file string, suffixes []string) (string, string, string) {
	if suffixes == nil {
		suffixes = defaultExts
	}

	var e, e1, e2 string
	f := strings.ToLower(file)
	for _, s := range suffixes {
		e = s
		if strings.HasSuffix(f, e) {
			e2 = e
			file = file[0 : len(file)-len(e)]
			break
		}
	}

	e1 = filepath.Ext(file)
	name := file[0 : len(file)-len(e1)]

	return name, e1, e2
}

var reIgnoreCaseStr = "(?i)"
var reIgnoreCase = regexp.MustCompile(`\(\?i\)`)
