package memtarget

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/tlm/mem/tlm"
	"github.com/sarchlab/tlm/sim/hooking"
	"github.com/sarchlab/tlm/sim/timing"
)

func word(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

var _ = Describe("Memory Target", func() {
	var (
		mockCtrl  *gomock.Controller
		engine    *timing.SerialEngine
		initiator *MockBackwardTransport
		target    *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = timing.NewSerialEngine()
		initiator = NewMockBackwardTransport(mockCtrl)

		target = MakeBuilder().
			WithEngine(engine).
			WithSeed(1).
			Build("Memory")

		socket := tlm.NewInitiatorSocket("Initiator.Socket", initiator)
		socket.Bind(target.Socket)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should build with the default geometry", func() {
		Expect(target.Storage.NumWords()).To(Equal(uint64(256)))
		Expect(target.Storage.WordSize()).To(Equal(uint64(4)))
		Expect(target.Latency).To(BeNumerically("~", 10*timing.Nanosecond, 1e-15))
		Expect(target.Name()).To(Equal("Memory"))
	})

	It("should fill the storage with the init pattern", func() {
		for i := uint64(0); i < target.Storage.NumWords(); i++ {
			v, err := target.Storage.ReadWord(i)
			Expect(err).NotTo(HaveOccurred())
			Expect(v &^ 0xff).To(Equal(uint64(InitPatternBase)))
		}
	})

	It("should produce the same content for the same seed", func() {
		other := MakeBuilder().WithEngine(engine).WithSeed(1).Build("Other")

		a := make([]byte, target.Storage.Capacity())
		b := make([]byte, other.Storage.Capacity())
		Expect(target.Storage.Read(0, a)).To(Succeed())
		Expect(other.Storage.Read(0, b)).To(Succeed())
		Expect(a).To(Equal(b))
	})

	It("should panic without an engine", func() {
		Expect(func() { MakeBuilder().Build("Memory") }).To(Panic())
	})

	Context("transport", func() {
		It("should write and read back", func() {
			delay := timing.VTimeInSec(0)
			w := tlm.PayloadBuilder{}.
				WithCommand(tlm.WriteCommand).
				WithAddress(32).
				WithData(word(0xFF000020)).
				Build()

			target.BTransport(w, &delay)

			Expect(w.ResponseStatus).To(Equal(tlm.OKResponse))
			Expect(w.DMIAllowed).To(BeTrue())
			Expect(delay).To(Equal(target.Latency))

			r := tlm.PayloadBuilder{}.
				WithCommand(tlm.ReadCommand).
				WithAddress(32).
				WithData(make([]byte, 4)).
				Build()
			target.BTransport(r, &delay)

			Expect(r.ResponseStatus).To(Equal(tlm.OKResponse))
			Expect(r.Data).To(Equal(word(0xFF000020)))
			Expect(delay).To(Equal(2 * target.Latency))
		})

		It("should access the word holding an unaligned address", func() {
			delay := timing.VTimeInSec(0)
			w := tlm.PayloadBuilder{}.
				WithCommand(tlm.WriteCommand).
				WithAddress(34).
				WithData(word(0x12345678)).
				Build()
			target.BTransport(w, &delay)

			v, _ := target.Storage.ReadWord(8)
			Expect(v).To(Equal(uint64(0x12345678)))
		})

		It("should report address errors first", func() {
			before := make([]byte, target.Storage.Capacity())
			Expect(target.Storage.Read(0, before)).To(Succeed())

			delay := timing.VTimeInSec(0)
			p := tlm.PayloadBuilder{}.
				WithCommand(tlm.WriteCommand).
				WithAddress(1024).
				WithData(make([]byte, 8)).
				WithByteEnable([]byte{0xff}).
				WithStreamingWidth(2).
				Build()

			target.BTransport(p, &delay)

			after := make([]byte, target.Storage.Capacity())
			Expect(target.Storage.Read(0, after)).To(Succeed())

			Expect(p.ResponseStatus).To(Equal(tlm.AddressErrorResponse))
			Expect(p.DMIAllowed).To(BeFalse())
			Expect(delay).To(Equal(0.0))
			Expect(after).To(Equal(before))
		})

		It("should reject byte enables", func() {
			delay := timing.VTimeInSec(0)
			p := tlm.PayloadBuilder{}.
				WithCommand(tlm.ReadCommand).
				WithAddress(0).
				WithData(make([]byte, 8)).
				WithByteEnable([]byte{0xff, 0xff, 0xff, 0xff}).
				Build()

			target.BTransport(p, &delay)

			Expect(p.ResponseStatus).To(Equal(tlm.ByteEnableErrorResponse))
		})

		It("should reject bursts", func() {
			before, _ := target.Storage.ReadWord(8)

			delay := timing.VTimeInSec(0)
			p := tlm.PayloadBuilder{}.
				WithCommand(tlm.WriteCommand).
				WithAddress(32).
				WithData(make([]byte, 8)).
				WithStreamingWidth(4).
				Build()

			target.BTransport(p, &delay)

			after, _ := target.Storage.ReadWord(8)
			Expect(p.ResponseStatus).To(Equal(tlm.BurstErrorResponse))
			Expect(after).To(Equal(before))
			Expect(target.Stats().TransportErrors).To(Equal(uint64(1)))
		})

		It("should reject a streaming width below the length", func() {
			delay := timing.VTimeInSec(0)
			p := tlm.PayloadBuilder{}.
				WithCommand(tlm.WriteCommand).
				WithAddress(32).
				WithData(word(1)).
				WithStreamingWidth(2).
				Build()

			target.BTransport(p, &delay)

			Expect(p.ResponseStatus).To(Equal(tlm.BurstErrorResponse))
		})

		It("should invoke the transport hook", func() {
			var ctxs []hooking.HookCtx
			target.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				ctxs = append(ctxs, ctx)
			}))

			delay := timing.VTimeInSec(0)
			p := tlm.PayloadBuilder{}.
				WithCommand(tlm.ReadCommand).
				WithData(make([]byte, 4)).
				Build()
			target.BTransport(p, &delay)

			Expect(ctxs).To(HaveLen(1))
			Expect(ctxs[0].Pos).To(Equal(tlm.HookPosTransport))
			Expect(ctxs[0].Item).To(BeIdenticalTo(p))
			Expect(ctxs[0].Detail).To(Equal(target.Latency))
		})
	})

	Context("direct memory interface", func() {
		It("should grant the whole storage", func() {
			var dmi tlm.DMI
			p := tlm.PayloadBuilder{}.WithAddress(32).Build()

			Expect(target.GetDirectMemPtr(p, &dmi)).To(BeTrue())
			Expect(dmi.StartAddress).To(Equal(uint64(0)))
			Expect(dmi.EndAddress).To(Equal(uint64(1023)))
			Expect(dmi.ReadAllowed).To(BeTrue())
			Expect(dmi.WriteAllowed).To(BeTrue())
			Expect(dmi.ReadLatency).To(Equal(target.Latency))
			Expect(dmi.WriteLatency).To(Equal(target.Latency))
			Expect(dmi.WordSize).To(Equal(uint64(tlm.WordSize)))
			Expect(dmi.IsValid()).To(BeTrue())
		})

		It("should give equivalent grants when asked twice", func() {
			var a, b tlm.DMI
			p := tlm.PayloadBuilder{}.Build()

			Expect(target.GetDirectMemPtr(p, &a)).To(BeTrue())
			Expect(target.GetDirectMemPtr(p, &b)).To(BeTrue())

			Expect(b.StartAddress).To(Equal(a.StartAddress))
			Expect(b.EndAddress).To(Equal(a.EndAddress))
			Expect(b.ReadAllowed).To(Equal(a.ReadAllowed))
			Expect(b.WriteAllowed).To(Equal(a.WriteAllowed))
			Expect(b.Handle.Generation()).To(Equal(a.Handle.Generation()))
			Expect(a.IsValid()).To(BeTrue())
			Expect(target.Stats().Grants).To(Equal(uint64(2)))
		})

		It("should not grant when DMI is disabled", func() {
			target = MakeBuilder().
				WithEngine(engine).
				WithDMI(false).
				Build("NoDMI")

			delay := timing.VTimeInSec(0)
			p := tlm.PayloadBuilder{}.
				WithCommand(tlm.ReadCommand).
				WithData(make([]byte, 4)).
				Build()
			target.BTransport(p, &delay)

			var dmi tlm.DMI
			Expect(p.ResponseStatus).To(Equal(tlm.OKResponse))
			Expect(p.DMIAllowed).To(BeFalse())
			Expect(target.GetDirectMemPtr(p, &dmi)).To(BeFalse())
		})

		It("should revoke grants and notify the initiator", func() {
			var dmi tlm.DMI
			target.GetDirectMemPtr(tlm.PayloadBuilder{}.Build(), &dmi)

			initiator.EXPECT().InvalidateDirectMemPtr(uint64(0), uint64(1023))

			target.InvalidateAll()

			Expect(dmi.IsValid()).To(BeFalse())
			Expect(target.Stats().Invalidations).To(Equal(uint64(1)))
		})

		It("should invalidate periodically", func() {
			var times []timing.VTimeInSec
			initiator.EXPECT().
				InvalidateDirectMemPtr(uint64(0), uint64(1023)).
				Do(func(start, end uint64) {
					times = append(times, engine.Now())
				}).
				Times(4)

			target.Start()
			Expect(engine.Run()).To(Succeed())

			Expect(times).To(HaveLen(4))
			for i, t := range times {
				expected := timing.VTimeInSec(i+1) * 80 * timing.Nanosecond
				Expect(t).To(BeNumerically("~", expected, 1e-15))
			}
		})

		It("should stop invalidating once stopped", func() {
			errStop := errors.New("stop")
			initiator.EXPECT().
				InvalidateDirectMemPtr(uint64(0), uint64(1023)).
				Times(1)

			failing := timing.NewProcess("Runner", engine,
				func(p *timing.Process) error {
					p.Wait(100 * timing.Nanosecond)
					return errStop
				})

			target.Start()
			failing.Start()
			Expect(engine.Run()).To(MatchError(errStop))

			target.Stop()

			Expect(engine.Run()).To(Succeed())
			Expect(target.Stats().Invalidations).To(Equal(uint64(1)))
		})

		It("should report statistics while running", func() {
			initiator.EXPECT().
				InvalidateDirectMemPtr(uint64(0), uint64(1023)).
				Times(4)

			stop := make(chan struct{})
			read := make(chan Stats, 1)
			go func() {
				var last Stats
				for {
					select {
					case <-stop:
						read <- last
						return
					default:
						last = target.Stats()
					}
				}
			}()

			target.Start()
			Expect(engine.Run()).To(Succeed())
			close(stop)

			Expect((<-read).Invalidations).To(BeNumerically("<=", 4))
			Expect(target.Stats().Invalidations).To(Equal(uint64(4)))
		})

		It("should not invalidate when the count is zero", func() {
			target = MakeBuilder().
				WithEngine(engine).
				WithInvalidation(0, 8).
				Build("Quiet")

			target.Start()
			Expect(engine.Run()).To(Succeed())
			Expect(engine.Now()).To(Equal(0.0))
		})
	})

	Context("debug transport", func() {
		It("should read without touching the status", func() {
			Expect(target.Storage.WriteWord(0, 0xdeadbeef)).To(Succeed())

			p := tlm.PayloadBuilder{}.
				WithCommand(tlm.ReadCommand).
				WithAddress(0).
				WithData(make([]byte, 4)).
				Build()

			n := target.TransportDbg(p)

			Expect(n).To(Equal(4))
			Expect(p.Data).To(Equal(word(0xdeadbeef)))
			Expect(p.ResponseStatus).To(Equal(tlm.IncompleteResponse))
			Expect(engine.Now()).To(Equal(0.0))
		})

		It("should write", func() {
			p := tlm.PayloadBuilder{}.
				WithCommand(tlm.WriteCommand).
				WithAddress(8).
				WithData(word(0x01020304)).
				Build()

			Expect(target.TransportDbg(p)).To(Equal(4))

			v, _ := target.Storage.ReadWord(2)
			Expect(v).To(Equal(uint64(0x01020304)))
		})

		It("should read the word holding an unaligned address", func() {
			Expect(target.Storage.WriteWord(8, 0x11223344)).To(Succeed())

			p := tlm.PayloadBuilder{}.
				WithCommand(tlm.ReadCommand).
				WithAddress(33).
				WithData(make([]byte, 4)).
				Build()

			Expect(target.TransportDbg(p)).To(Equal(4))
			Expect(p.Data).To(Equal(word(0x11223344)))
		})

		It("should clamp from the word holding the address", func() {
			p := tlm.PayloadBuilder{}.
				WithCommand(tlm.ReadCommand).
				WithAddress(1023).
				WithData(make([]byte, 8)).
				Build()

			Expect(target.TransportDbg(p)).To(Equal(4))
		})

		It("should clamp at the end of the storage", func() {
			p := tlm.PayloadBuilder{}.
				WithCommand(tlm.ReadCommand).
				WithAddress(1000).
				WithData(make([]byte, 128)).
				Build()

			Expect(target.TransportDbg(p)).To(Equal(24))
		})

		It("should move nothing beyond the storage", func() {
			p := tlm.PayloadBuilder{}.
				WithCommand(tlm.ReadCommand).
				WithAddress(2048).
				WithData(make([]byte, 4)).
				Build()

			Expect(target.TransportDbg(p)).To(Equal(0))
			Expect(target.Stats().DebugCalls).To(Equal(uint64(1)))
		})
	})
})
