package storage

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Storage", func() {
	var s *Storage

	BeforeEach(func() {
		s = New(256, 4)
	})

	It("should report its geometry", func() {
		Expect(s.WordSize()).To(Equal(uint64(4)))
		Expect(s.NumWords()).To(Equal(uint64(256)))
		Expect(s.Capacity()).To(Equal(uint64(1024)))
		Expect(s.WordIndex(35)).To(Equal(uint64(8)))
		Expect(s.AlignDown(35)).To(Equal(uint64(32)))
		Expect(s.Remaining(1000)).To(Equal(uint64(24)))
		Expect(s.Remaining(1024)).To(Equal(uint64(0)))
	})

	It("should read what was written", func() {
		Expect(s.Write(32, []byte{0x20, 0, 0, 0xFF})).To(Succeed())

		buf := make([]byte, 4)
		Expect(s.Read(32, buf)).To(Succeed())
		Expect(buf).To(Equal([]byte{0x20, 0, 0, 0xFF}))

		word, err := s.ReadWord(8)
		Expect(err).NotTo(HaveOccurred())
		Expect(word).To(Equal(uint64(0xFF000020)))
	})

	It("should store words little-endian", func() {
		Expect(s.WriteWord(1, 0xAA000011)).To(Succeed())

		buf := make([]byte, 4)
		Expect(s.Read(4, buf)).To(Succeed())
		Expect(buf).To(Equal([]byte{0x11, 0, 0, 0xAA}))
	})

	It("should fill every word", func() {
		s.Fill(func(i uint64) uint64 { return 0xAA000000 | i })

		word, err := s.ReadWord(255)
		Expect(err).NotTo(HaveOccurred())
		Expect(word).To(Equal(uint64(0xAA0000FF)))
	})

	It("should reject accesses beyond the capacity", func() {
		err := s.Write(1022, []byte{1, 2, 3, 4})
		Expect(errors.Is(err, ErrOutOfRange)).To(BeTrue())

		err = s.Read(2048, make([]byte, 1))
		Expect(errors.Is(err, ErrOutOfRange)).To(BeTrue())

		Expect(s.Read(1020, make([]byte, 4))).To(Succeed())
	})
})

var _ = Describe("Handle", func() {
	var s *Storage

	BeforeEach(func() {
		s = New(16, 4)
	})

	It("should alias the storage bytes", func() {
		h := s.Handle()
		Expect(h.Valid()).To(BeTrue())

		copy(h.Bytes()[8:12], []byte{1, 2, 3, 4})

		buf := make([]byte, 4)
		Expect(s.Read(8, buf)).To(Succeed())
		Expect(buf).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should become invalid after a revoke", func() {
		h := s.Handle()
		s.Revoke()

		Expect(h.Valid()).To(BeFalse())
		Expect(h.Bytes()).To(BeNil())
		Expect(s.Generation()).To(Equal(uint64(1)))

		fresh := s.Handle()
		Expect(fresh.Valid()).To(BeTrue())
		Expect(fresh.Generation()).To(Equal(uint64(1)))
	})

	It("should treat a nil handle as invalid", func() {
		var h *Handle
		Expect(h.Valid()).To(BeFalse())
	})
})
