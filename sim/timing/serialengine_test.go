package timing

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/tlm/sim/hooking"
)

type testEvent struct {
	*EventBase
	label string
}

func newTestEvent(t VTimeInSec, h Handler, label string) *testEvent {
	return &testEvent{EventBase: NewEventBase(t, h), label: label}
}

type recordingHandler struct {
	labels []string
	times  []VTimeInSec
}

func (h *recordingHandler) Handle(e Event) error {
	h.labels = append(h.labels, e.(*testEvent).label)
	h.times = append(h.times, e.Time())

	return nil
}

var _ = Describe("SerialEngine", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *SerialEngine
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewSerialEngine()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should run events in time order", func() {
		h := &recordingHandler{}

		engine.Schedule(newTestEvent(3, h, "c"))
		engine.Schedule(newTestEvent(1, h, "a"))
		engine.Schedule(newTestEvent(2, h, "b"))

		Expect(engine.Run()).To(Succeed())

		Expect(h.labels).To(Equal([]string{"a", "b", "c"}))
		Expect(engine.Now()).To(Equal(VTimeInSec(3)))
	})

	It("should run same-time events in scheduling order", func() {
		h := &recordingHandler{}

		engine.Schedule(newTestEvent(1, h, "first"))
		engine.Schedule(newTestEvent(1, h, "second"))
		engine.Schedule(newTestEvent(1, h, "third"))

		Expect(engine.Run()).To(Succeed())

		Expect(h.labels).To(Equal([]string{"first", "second", "third"}))
	})

	It("should run secondary events after primary events of the same time", func() {
		h := &recordingHandler{}

		secondary := &testEvent{
			EventBase: NewSecondaryEventBase(1, h),
			label:     "secondary",
		}
		engine.Schedule(secondary)
		engine.Schedule(newTestEvent(1, h, "primary"))

		Expect(engine.Run()).To(Succeed())

		Expect(h.labels).To(Equal([]string{"primary", "secondary"}))
	})

	It("should stop and return the handler error", func() {
		handler := NewMockHandler(mockCtrl)
		other := &recordingHandler{}
		errBoom := errors.New("boom")

		engine.Schedule(newTestEvent(1, handler, "fail"))
		engine.Schedule(newTestEvent(2, other, "never"))

		handler.EXPECT().Handle(gomock.Any()).Return(errBoom)

		Expect(engine.Run()).To(MatchError(errBoom))
		Expect(other.labels).To(BeEmpty())
	})

	It("should panic when scheduling in the past", func() {
		h := &recordingHandler{}
		engine.Schedule(newTestEvent(2, h, "a"))
		Expect(engine.Run()).To(Succeed())

		Expect(func() {
			engine.Schedule(newTestEvent(1, h, "late"))
		}).To(Panic())
	})

	It("should invoke hooks before and after each event", func() {
		h := &recordingHandler{}
		positions := []*hooking.HookPos{}
		engine.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		engine.Schedule(newTestEvent(1, h, "a"))
		Expect(engine.Run()).To(Succeed())

		Expect(positions).To(Equal([]*hooking.HookPos{
			HookPosBeforeEvent, HookPosAfterEvent,
		}))
	})
})
