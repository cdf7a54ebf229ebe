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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
)

func checkError(err error) {
	if err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}

func isStdin(file string) bool {
	return file == "-"
}

func formatFlagUsage(s string) string {
	return "► " + s
}

func usageTemplate(s string) string {
	return fmt.Sprintf(`Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}} %s{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

Available Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`, s)
}

func getFlagString(cmd *cobra.Command, flag string) string {
	value, err := cmd.Flags().GetString(flag)
	checkError(err)
	return value
}

func getFlagBool(cmd *cobra.Command, flag string) bool {
	value, err := cmd.Flags().GetBool(flag)
	checkError(err)
	return value
}

func getFlagInt(cmd *cobra.Command, flag string) int {
	value, err := cmd.Flags().GetInt(flag)
	checkError(err)
	return value
}

func getFlagPositiveInt(cmd *cobra.Command, flag string) int {
	value := getFlagInt(cmd, flag)
	if value <= 0 {
		checkError(fmt.Errorf("value of flag --%s should be greater than 0", flag))
	}
	return value
}

func getFlagNonNegativeInt(cmd *cobra.Command, flag string) int {
	value := getFlagInt(cmd, flag)
	if value < 0 {
		checkError(fmt.Errorf("value of flag --%s should be greater than or equal to 0", flag))
	}
	return value
}

func getFlagFloat64(cmd *cobra.Command, flag string) float64 {
	value, err := cmd.Flags().GetFloat64(flag)
	checkError(err)
	return value
}

// getFlagPath returns a file path with "~" expanded.
func getFlagPath(cmd *cobra.Command, flag string) string {
	value := getFlagString(cmd, flag)
	if value == "" || isStdin(value) {
		return value
	}
	path, err := homedir.Expand(value)
	checkError(errors.Wrapf(err, "flag --%s", flag))
	return path
}

func getFileList(args []string, checkFile bool) []string {
	files := make([]string, 0, 8)
	if len(args) == 0 {
		return append(files, "-")
	}
	for _, file := range args {
		if isStdin(file) || !checkFile {
			continue
		}
		if _, err := os.Stat(file); os.IsNotExist(err) {
			checkError(errors.Wrap(err, file))
		}
	}
	return append(files, args...)
}

func getFileListFromFile(file string, checkFile bool) ([]string, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, fmt.Errorf("read file list from '%s': %s", file, err)
	}
	defer fh.Close()

	files := make([]string, 0, 8)
	scanner := bufio.NewScanner(fh)
	var _file string
	for scanner.Scan() {
		_file = strings.TrimSpace(scanner.Text())
		if _file == "" {
			continue
		}
		if checkFile && !isStdin(_file) {
			if _, err = os.Stat(_file); os.IsNotExist(err) {
				return files, fmt.Errorf("check file '%s': %s", _file, err)
			}
		}
		files = append(files, _file)
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("read file list from '%s': %s", file, err)
	}
	return files, nil
}

func getFileListFromArgsAndFile(cmd *cobra.Command, args []string, checkFileFromArgs bool, flag string, checkFileFromFile bool) []string {
	infileList := getFlagPath(cmd, flag)
	files := getFileList(args, checkFileFromArgs)
	if infileList == "" {
		return files
	}

	_files, err := getFileListFromFile(infileList, checkFileFromFile)
	checkError(err)
	if len(_files) == 0 {
		log.Warningf("no files found in file list: %s", infileList)
		return files
	}
	if len(files) == 1 && isStdin(files[0]) {
		return _files
	}
	return append(files, _files...)
}

// outStream creates a buffered writer of a file, "-" for stdout.
// The gzip writer is nil if gzipped is false.
func outStream(file string, gzipped bool, level int) (*bufio.Writer, io.WriteCloser, *os.File, error) {
	var w *os.File
	if isStdin(file) {
		w = os.Stdout
	} else {
		dir := filepath.Dir(file)
		fi, err := os.Stat(dir)
		if err == nil && !fi.IsDir() {
			return nil, nil, nil, fmt.Errorf("can not write file into a non-directory path: %s", dir)
		}
		if os.IsNotExist(err) {
			if err = os.MkdirAll(dir, 0755); err != nil {
				return nil, nil, nil, fmt.Errorf("fail to create directory %s: %s", dir, err)
			}
		}
		if w, err = os.Create(file); err != nil {
			return nil, nil, nil, fmt.Errorf("fail to write %s: %s", file, err)
		}
	}

	if gzipped {
		gw, err := pgzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("fail to write %s: %s", file, err)
		}
		return bufio.NewWriterSize(gw, os.Getpagesize()), gw, w, nil
	}
	return bufio.NewWriterSize(w, os.Getpagesize()), nil, w, nil
}

// output is a writer opened with outStream.
type output struct {
	*bufio.Writer
	gw io.WriteCloser
	w  *os.File
}

func openOutput(file string, level int) (*output, error) {
	bw, gw, w, err := outStream(file, strings.HasSuffix(strings.ToLower(file), ".gz"), level)
	if err != nil {
		return nil, err
	}
	return &output{Writer: bw, gw: gw, w: w}, nil
}

func (o *output) Close() error {
	if err := o.Flush(); err != nil {
		return err
	}
	if o.gw != nil {
		if err := o.gw.Close(); err != nil {
			return err
		}
	}
	if o.w == os.Stdout {
		return nil
	}
	return o.w.Close()
}
