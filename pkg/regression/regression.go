// Package regression keeps per-class checksums of generated source so a
// run can be compared against an earlier known-good run.
//
// A fixture is a flat sequence of little-endian uint32 CRC-32 (IEEE)
// values, one per class in listing order.
package regression

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/glog"
)

// Mode selects whether a Store records or checks checksums.
type Mode int

const (
	ModeGenerate Mode = iota
	ModeTest
)

func (m Mode) String() string {
	if m == ModeTest {
		return "test"
	}
	return "generate"
}

// Status is the outcome of one Record call.
type Status string

const (
	StatusRecorded Status = "RECORDED"
	StatusPassed   Status = "PASSED"
	StatusFailed   Status = "FAILED"
	StatusSkipped  Status = "SKIPPED"
)

// Checksum is the fixture value for one class' generated source.
func Checksum(code string) uint32 {
	return crc32.ChecksumIEEE([]byte(code))
}

// Store reads or writes one fixture. Calls must follow listing order.
type Store struct {
	mode   Mode
	r      io.Reader
	w      io.Writer
	closer io.Closer
	count  int
}

// NewGenerator records checksums to w.
func NewGenerator(w io.Writer) *Store {
	return &Store{mode: ModeGenerate, w: w}
}

// NewTester checks checksums against r.
func NewTester(r io.Reader) *Store {
	return &Store{mode: ModeTest, r: r}
}

// FixturePath maps a fixture name to its file inside dir.
func FixturePath(dir, name string) string {
	return filepath.Join(dir, name+".bin")
}

// Open opens the fixture file for mode. Generating truncates it.
func Open(path string, mode Mode) (*Store, error) {
	if mode == ModeTest {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open fixture: %w", err)
		}
		s := NewTester(f)
		s.closer = f
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create fixture dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create fixture: %w", err)
	}
	s := NewGenerator(f)
	s.closer = f
	return s, nil
}

// Mode reports what the store does.
func (s *Store) Mode() Mode { return s.mode }

// Count is the number of classes handled so far.
func (s *Store) Count() int { return s.count }

// Record stores or checks the checksum of one class.
func (s *Store) Record(code string) (Status, error) {
	s.count++
	sum := Checksum(code)

	if s.mode == ModeGenerate {
		if err := binary.Write(s.w, binary.LittleEndian, sum); err != nil {
			return StatusFailed, fmt.Errorf("write checksum %d: %w", s.count, err)
		}
		return StatusRecorded, nil
	}

	var want uint32
	if err := binary.Read(s.r, binary.LittleEndian, &want); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			glog.Warningf("fixture ends before class %d", s.count)
			return StatusFailed, nil
		}
		return StatusFailed, fmt.Errorf("read checksum %d: %w", s.count, err)
	}
	if want != sum {
		return StatusFailed, nil
	}
	return StatusPassed, nil
}

// Skip keeps the fixture aligned for a class that is not decompiled. It
// records the checksum of empty output.
func (s *Store) Skip() error {
	_, err := s.Record("")
	return err
}

// Close releases the fixture file, if the store opened one.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
