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
	"io"
	"os"
	"runtime"

	colorable "github.com/mattn/go-colorable"
	"github.com/shenwei356/go-logging"
	"github.com/spf13/cobra"
)

// VERSION of chimscan
const VERSION = "0.1.0"

var log *logging.Logger

var logFormat = logging.MustStringFormatter(`%{time:15:04:05.000} [%{level:.4s}] %{message}`)

func init() {
	logging.SetBackend(logging.NewBackendFormatter(logging.NewLogBackend(stderr(), "", 0), logFormat))
	log = logging.MustGetLogger("chimscan")
}

func stderr() io.Writer {
	if runtime.GOOS == "windows" {
		return colorable.NewColorableStderr()
	}
	return os.Stderr
}

// addLog copies logs to a file. Logs are only written to the file if verbose is false.
func addLog(file string, verbose bool) *os.File {
	w, err := os.Create(file)
	if err != nil {
		checkError(fmt.Errorf("failed to write log file %s: %s", file, err))
	}

	backendFile := logging.NewBackendFormatter(logging.NewLogBackend(w, "", 0), logFormat)
	if verbose {
		backendStderr := logging.NewBackendFormatter(logging.NewLogBackend(stderr(), "", 0), logFormat)
		logging.SetBackend(backendStderr, backendFile)
	} else {
		logging.SetBackend(backendFile)
	}
	return w
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "chimscan",
	Short: "Detecting chimeric sequences in aligned amplicons",
	Long: fmt.Sprintf(`
 chimscan: detecting chimeric sequences in aligned amplicons

 Queries and references are sequences of the same multiple alignment.
 A query is checked for being a recombination of two references:
   1. candidate parents are searched in the left and right thirds of references,
   2. a sliding breakpoint is scanned on every pair of candidate parents,
      and the support of the breakpoint is estimated with bootstrap,
   3. chimeras are flagged with thresholds of bootstrap support and divergence ratio.

 Version: v%s
`, VERSION),
	Version: VERSION,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	RootCmd.CompletionOptions.DisableDefaultCmd = true
	RootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	defaultThreads := runtime.NumCPU()

	RootCmd.PersistentFlags().IntP("threads", "j", defaultThreads,
		formatFlagUsage("Number of CPU cores to use. By default, it uses all available cores."))

	RootCmd.PersistentFlags().BoolP("quiet", "", false,
		formatFlagUsage("Do not print any verbose information. But you can write them to file with --log."))

	RootCmd.PersistentFlags().StringP("log", "", "",
		formatFlagUsage("Log file."))

	RootCmd.PersistentFlags().StringP("config", "", "",
		formatFlagUsage(`TOML file of detection parameters. Flags given in the command line override it.`))

	RootCmd.SetUsageTemplate(usageTemplate(""))
}
