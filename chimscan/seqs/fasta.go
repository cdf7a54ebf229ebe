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
	"io"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

// ReadFasta reads all records of an aligned FASTA file (plain or compressed).
// Record IDs are used as names, residues are upper-cased.
func ReadFasta(file string) ([]*Sequence, error) {
	seq.ValidateSeq = false

	fastxReader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	defer fastxReader.Close()

	seqs := make([]*Sequence, 0, 1024)
	var record *fastx.Record
	for {
		record, err = fastxReader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, file)
		}

		seqs = append(seqs, &Sequence{
			Name:    string(record.ID),
			Aligned: bytes.ToUpper(record.Seq.Seq), // a new slice, the record is reused
		})
	}
	return seqs, nil
}

// ReadCollection reads an aligned FASTA file into a Collection.
func ReadCollection(file string) (*Collection, error) {
	s, err := ReadFasta(file)
	if err != nil {
		return nil, err
	}
	c, err := NewCollection(s)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	return c, nil
}

// WriteFasta writes a sequence in one line.
func WriteFasta(w io.Writer, s *Sequence) error {
	if _, err := w.Write([]byte{'>'}); err != nil {
		return err
	}
	if _, err := io.WriteString(w, s.Name); err != nil {
		return err
	}
	if _, err := w.Write([]byte{'\n'}); err != nil {
		return err
	}
	if _, err := w.Write(s.Aligned); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}
