// Package storage provides the word-addressed memory array that holds the
// ground truth of all reads and writes.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// ErrOutOfRange is returned when an access does not fit in the storage.
var ErrOutOfRange = errors.New("access beyond the storage capacity")

// A Storage is a flat array of fixed-size words.
//
// Addresses are byte addresses. Words are stored little-endian. Every
// Handle given out refers to the generation in which it was issued, and
// Revoke moves the storage to a new generation.
type Storage struct {
	lock sync.RWMutex

	wordSize   uint64
	numWords   uint64
	data       []byte
	generation uint64
}

// New creates a zero-filled storage of numWords words of wordSize bytes.
func New(numWords, wordSize uint64) *Storage {
	if numWords == 0 || wordSize == 0 {
		panic("storage must have at least one word of at least one byte")
	}

	return &Storage{
		wordSize: wordSize,
		numWords: numWords,
		data:     make([]byte, numWords*wordSize),
	}
}

// WordSize returns the number of bytes in a word.
func (s *Storage) WordSize() uint64 {
	return s.wordSize
}

// NumWords returns the number of words in the storage.
func (s *Storage) NumWords() uint64 {
	return s.numWords
}

// Capacity returns the size of the storage in bytes.
func (s *Storage) Capacity() uint64 {
	return s.numWords * s.wordSize
}

// WordIndex converts a byte address to the index of the word holding it.
func (s *Storage) WordIndex(addr uint64) uint64 {
	return addr / s.wordSize
}

// AlignDown returns the address of the first byte of the word holding addr.
func (s *Storage) AlignDown(addr uint64) uint64 {
	return addr / s.wordSize * s.wordSize
}

// Remaining returns how many bytes can be accessed from addr to the end of
// the storage.
func (s *Storage) Remaining(addr uint64) uint64 {
	if addr >= s.Capacity() {
		return 0
	}

	return s.Capacity() - addr
}

// Read copies len(buf) bytes starting at addr into buf.
func (s *Storage) Read(addr uint64, buf []byte) error {
	if err := s.rangeMustFit(addr, uint64(len(buf))); err != nil {
		return err
	}

	s.lock.RLock()
	copy(buf, s.data[addr:addr+uint64(len(buf))])
	s.lock.RUnlock()

	return nil
}

// Write copies data into the storage starting at addr.
func (s *Storage) Write(addr uint64, data []byte) error {
	if err := s.rangeMustFit(addr, uint64(len(data))); err != nil {
		return err
	}

	s.lock.Lock()
	copy(s.data[addr:addr+uint64(len(data))], data)
	s.lock.Unlock()

	return nil
}

// ReadWord returns the word with the given index.
func (s *Storage) ReadWord(index uint64) (uint64, error) {
	buf := make([]byte, s.wordSize)
	if err := s.Read(index*s.wordSize, buf); err != nil {
		return 0, err
	}

	return decodeWord(buf), nil
}

// WriteWord sets the word with the given index. Bits that do not fit in the
// word are dropped.
func (s *Storage) WriteWord(index uint64, value uint64) error {
	buf := make([]byte, s.wordSize)
	encodeWord(buf, value)

	return s.Write(index*s.wordSize, buf)
}

// Fill sets every word to the value returned by f.
func (s *Storage) Fill(f func(index uint64) uint64) {
	for i := uint64(0); i < s.numWords; i++ {
		if err := s.WriteWord(i, f(i)); err != nil {
			panic(err)
		}
	}
}

func (s *Storage) rangeMustFit(addr, length uint64) error {
	if addr > s.Capacity() || length > s.Capacity()-addr {
		return fmt.Errorf("%w: address 0x%x, length %d, capacity %d",
			ErrOutOfRange, addr, length, s.Capacity())
	}

	return nil
}

func decodeWord(buf []byte) uint64 {
	var full [8]byte
	copy(full[:], buf)

	return binary.LittleEndian.Uint64(full[:])
}

func encodeWord(buf []byte, value uint64) {
	var full [8]byte
	binary.LittleEndian.PutUint64(full[:], value)
	copy(buf, full[:])
}
