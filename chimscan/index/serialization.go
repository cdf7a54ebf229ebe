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

package index

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	perrors "github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"github.com/twotwotwo/sorts/sortutil"
)

var be = binary.BigEndian

// Magic number for checking file format
var Magic = [8]byte{'.', 'k', 'm', 'e', 'r', '-', 'd', 'b'}

// MainVersion is use for checking compatibility
var MainVersion uint8 = 1

// MinorVersion is less important
var MinorVersion uint8 = 0

// ErrInvalidFileFormat means invalid file format.
var ErrInvalidFileFormat = errors.New("k-mer db: invalid binary format")

// ErrBrokenFile means the file is not complete.
var ErrBrokenFile = errors.New("k-mer db: broken file")

// ErrVersionMismatch means version mismatch between files and program.
var ErrVersionMismatch = errors.New("k-mer db: version mismatch")

// ErrKMismatch means the file was built with another k-mer size.
var ErrKMismatch = errors.New("k-mer db: k-mer size mismatch")

// ErrTemplateMismatch means the file was built from another template.
var ErrTemplateMismatch = errors.New("k-mer db: template mismatch")

// WriteTo writes the k-mer index.
//
// Header (24 bytes):
//
//	Magic number, 8 bytes, ".kmer-db".
//	Main and minor versions, 2 bytes.
//	K size, 1 byte.
//	Blank, 5 bytes.
//	Template fingerprint, 8 bytes.
//
// Names:
//
//	Number of sequences, 8 bytes.
//	For each sequence: length of the name (4 bytes) and the name.
//
// K-mers, in ascending order:
//
//	Number of k-mers, 8 bytes.
//	For each k-mer: k-mer (8 bytes), number of sequences (4 bytes),
//	and the indexes of sequences (4 bytes each).
func (db *KmerDB) WriteTo(w io.Writer) (int64, error) {
	var N int64
	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, be, Magic); err != nil {
		return N, err
	}
	if err := binary.Write(bw, be, [8]uint8{MainVersion, MinorVersion, uint8(db.k)}); err != nil {
		return N, err
	}
	N += 16

	buf := make([]byte, 8)

	be.PutUint64(buf, db.fingerprint)
	bw.Write(buf)
	be.PutUint64(buf, uint64(len(db.names)))
	bw.Write(buf)
	N += 16

	for _, name := range db.names {
		be.PutUint32(buf[:4], uint32(len(name)))
		bw.Write(buf[:4])
		bw.WriteString(name)
		N += 4 + int64(len(name))
	}

	codes := make([]uint64, 0, len(db.kmers))
	for code := range db.kmers {
		codes = append(codes, code)
	}
	sortutil.Uint64s(codes)

	be.PutUint64(buf, uint64(len(codes)))
	bw.Write(buf)
	N += 8

	var idxs []uint32
	for _, code := range codes {
		idxs = db.kmers[code]
		be.PutUint64(buf, code)
		bw.Write(buf)
		be.PutUint32(buf[:4], uint32(len(idxs)))
		bw.Write(buf[:4])
		N += 12
		for _, i := range idxs {
			be.PutUint32(buf[:4], i)
			bw.Write(buf[:4])
		}
		N += 4 * int64(len(idxs))
	}

	return N, bw.Flush()
}

// MaxNameLen is the maximum length of a sequence name in a k-mer index file.
const MaxNameLen = 1 << 20

// ReadKmerDB reads a k-mer index.
// The k-mer size, the template fingerprint and the number of sequences must
// match the given ones. Counts read from the file are checked before any
// allocation, a corrupted count is reported as ErrBrokenFile.
func ReadKmerDB(r io.Reader, k int, fingerprint uint64, nSeqs int) (*KmerDB, error) {
	br := bufio.NewReader(r)

	buf := make([]byte, 8)

	// check the magic number
	_, err := io.ReadFull(br, buf)
	if err != nil {
		return nil, ErrInvalidFileFormat
	}
	same := true
	for i := 0; i < 8; i++ {
		if Magic[i] != buf[i] {
			same = false
			break
		}
	}
	if !same {
		return nil, ErrInvalidFileFormat
	}

	// read version information
	if _, err = io.ReadFull(br, buf); err != nil {
		return nil, ErrBrokenFile
	}
	if MainVersion != buf[0] {
		return nil, ErrVersionMismatch
	}
	if int(buf[2]) != k {
		return nil, ErrKMismatch
	}

	if _, err = io.ReadFull(br, buf); err != nil {
		return nil, ErrBrokenFile
	}
	if be.Uint64(buf) != fingerprint {
		return nil, ErrTemplateMismatch
	}

	db := &KmerDB{k: k, fingerprint: fingerprint}

	if _, err = io.ReadFull(br, buf); err != nil {
		return nil, ErrBrokenFile
	}
	if be.Uint64(buf) != uint64(nSeqs) {
		return nil, ErrBrokenFile
	}
	db.names = make([]string, nSeqs)
	var l uint32
	var name []byte
	for i := range db.names {
		if _, err = io.ReadFull(br, buf[:4]); err != nil {
			return nil, ErrBrokenFile
		}
		l = be.Uint32(buf[:4])
		if l > MaxNameLen {
			return nil, ErrBrokenFile
		}
		name = make([]byte, l)
		if _, err = io.ReadFull(br, name); err != nil {
			return nil, ErrBrokenFile
		}
		db.names[i] = string(name)
	}

	if _, err = io.ReadFull(br, buf); err != nil {
		return nil, ErrBrokenFile
	}
	nKmers := be.Uint64(buf)
	if k < 32 && nKmers > 1<<(2*uint(k)) {
		return nil, ErrBrokenFile
	}
	db.kmers = make(map[uint64][]uint32, min(nKmers, 1<<20))
	var code uint64
	var idxs []uint32
	for ; nKmers > 0; nKmers-- {
		if _, err = io.ReadFull(br, buf); err != nil {
			return nil, ErrBrokenFile
		}
		code = be.Uint64(buf)
		if _, err = io.ReadFull(br, buf[:4]); err != nil {
			return nil, ErrBrokenFile
		}
		l = be.Uint32(buf[:4])
		if l == 0 || int64(l) > int64(nSeqs) { // indexes of a k-mer are unique
			return nil, ErrBrokenFile
		}
		idxs = make([]uint32, l)
		for j := range idxs {
			if _, err = io.ReadFull(br, buf[:4]); err != nil {
				return nil, ErrBrokenFile
			}
			idxs[j] = be.Uint32(buf[:4])
			if int64(idxs[j]) >= int64(nSeqs) {
				return nil, ErrBrokenFile
			}
		}
		db.kmers[code] = idxs
	}

	return db, nil
}

// CacheStatus tells how a k-mer index was obtained.
type CacheStatus struct {
	File   string
	Loaded bool  // loaded from the file
	Err    error // why the file was not loaded or written, not fatal
}

// LoadOrBuildKmerDB loads a k-mer index from file if it's valid for
// the template and k-mer size, otherwise it builds the index and (re)writes the file.
// Failures of reading or writing the file are reported in CacheStatus only.
func LoadOrBuildKmerDB(ctx context.Context, file string, k int, fingerprint uint64,
	names []string, frags [][]byte) (*KmerDB, CacheStatus, error) {
	status := CacheStatus{File: file}

	db, err := readKmerDBFile(file, k, fingerprint, len(names))
	if err == nil {
		status.Loaded = true
		return db, status, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		status.Err = err
	}

	db, err = NewKmerDB(ctx, k, names, frags)
	if err != nil {
		return nil, status, err
	}
	db.fingerprint = fingerprint

	if err = writeKmerDBFile(db, file); err != nil {
		status.Err = err
	}
	return db, status, nil
}

func readKmerDBFile(file string, k int, fingerprint uint64, nSeqs int) (*KmerDB, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	db, err := ReadKmerDB(fh, k, fingerprint, nSeqs)
	if err != nil {
		return nil, perrors.Wrap(err, file)
	}
	return db, nil
}

func writeKmerDBFile(db *KmerDB, file string) error {
	dir := filepath.Dir(file)
	existed, err := pathutil.DirExists(dir)
	if err != nil {
		return err
	}
	if !existed {
		if err = os.MkdirAll(dir, 0777); err != nil {
			return err
		}
	}

	// write to a temporary file, then rename it
	tmp := file + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err = db.WriteTo(fh); err != nil {
		fh.Close()
		os.Remove(tmp)
		return perrors.Wrap(err, file)
	}
	if err = fh.Close(); err != nil {
		os.Remove(tmp)
		return perrors.Wrap(err, file)
	}
	return os.Rename(tmp, file)
}
