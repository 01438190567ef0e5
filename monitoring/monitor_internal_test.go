package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tlm/mem/memtarget"
	"github.com/sarchlab/tlm/mem/tlm"
	"github.com/sarchlab/tlm/sim/hooking"
	"github.com/sarchlab/tlm/sim/modeling"
	"github.com/sarchlab/tlm/sim/timing"
)

type plainComponent struct {
	*modeling.ComponentBase
}

var _ = Describe("Monitor", func() {
	var (
		engine *timing.SerialEngine
		target *memtarget.Comp
		m      *Monitor
		server *httptest.Server
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		m.Router().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		target = memtarget.MakeBuilder().
			WithEngine(engine).
			WithoutInitPattern().
			Build("Memory")

		m = NewMonitor()
		m.RegisterEngine(engine)
		m.RegisterComponent(target)
		m.RegisterComponent(&plainComponent{modeling.NewComponentBase("Plain")})
	})

	AfterEach(func() {
		if server != nil {
			server.Close()
			server = nil
		}
	})

	It("should list components", func() {
		rec := get("/api/list_components")

		var names []string
		Expect(json.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())
		Expect(names).To(Equal([]string{"Memory", "Plain"}))
	})

	It("should report the current time", func() {
		rec := get("/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal(`{"now":0.0000000000}`))
	})

	It("should pause and continue the engine", func() {
		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))
		Expect(engine.Run()).To(Succeed())
	})

	It("should dump memory through debug accesses", func() {
		Expect(target.Storage.WriteWord(1, 0xFF000004)).To(Succeed())

		rec := get("/api/memory/Memory?addr=0&len=8")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp memoryRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Transferred).To(Equal(8))
		Expect(rsp.Words).To(Equal([]string{"00000000", "FF000004"}))
		Expect(target.Stats().DebugCalls).To(Equal(uint64(1)))
	})

	It("should clamp memory dumps at the end of the storage", func() {
		rec := get("/api/memory/Memory?addr=0x3fc&len=128")

		var rsp memoryRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Address).To(Equal(uint64(1020)))
		Expect(rsp.Requested).To(Equal(128))
		Expect(rsp.Transferred).To(Equal(4))
		Expect(rsp.Words).To(HaveLen(1))
	})

	It("should bound dump buffers by the storage capacity", func() {
		rec := get("/api/memory/Memory?addr=0&len=1000000000000")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp memoryRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Requested).To(Equal(1000000000000))
		Expect(rsp.Transferred).To(Equal(1024))
		Expect(rsp.Words).To(HaveLen(256))
	})

	It("should serve dumps and statistics while the engine runs", func() {
		target.Start()

		done := make(chan error, 1)
		go func() { done <- engine.Run() }()

		for i := 0; i < 20; i++ {
			Expect(get("/api/memory/Memory?len=8").Code).To(Equal(http.StatusOK))
			Expect(get("/api/stats/Memory").Code).To(Equal(http.StatusOK))
		}

		Eventually(done).Should(Receive(BeNil()))
		Expect(target.Stats().Invalidations).To(Equal(uint64(4)))
		Expect(target.Stats().DebugCalls).To(Equal(uint64(20)))
	})

	It("should keep a user pause across a dump", func() {
		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get("/api/memory/Memory?len=4").Code).To(Equal(http.StatusOK))
		Expect(m.enginePaused).To(BeTrue())
		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))
		Expect(engine.Run()).To(Succeed())
	})

	It("should reject bad dump parameters", func() {
		Expect(get("/api/memory/Memory?addr=abc").Code).
			To(Equal(http.StatusBadRequest))
		Expect(get("/api/memory/Memory?len=-1").Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should refuse to dump components without debug access", func() {
		Expect(get("/api/memory/Plain").Code).
			To(Equal(http.StatusMethodNotAllowed))
	})

	It("should return 404 for unknown components", func() {
		Expect(get("/api/memory/Nothing").Code).To(Equal(http.StatusNotFound))
		Expect(get("/api/stats/Nothing").Code).To(Equal(http.StatusNotFound))
	})

	It("should report statistics", func() {
		target.TransportDbg(tlm.PayloadBuilder{}.
			WithData(make([]byte, 4)).
			Build())

		rec := get("/api/stats/Memory")

		var stats map[string]uint64
		Expect(json.Unmarshal(rec.Body.Bytes(), &stats)).To(Succeed())
		Expect(stats).To(HaveKeyWithValue("DebugCalls", uint64(1)))

		Expect(get("/api/stats/Plain").Code).
			To(Equal(http.StatusMethodNotAllowed))
	})

	It("should track progress of accesses", func() {
		bar := m.CreateProgressBar("Traffic", 2)
		counter := NewAccessCounter(bar)

		counter.Func(hooking.HookCtx{Pos: tlm.HookPosAccess})
		counter.Func(hooking.HookCtx{Pos: tlm.HookPosDMIGranted})

		rec := get("/api/progress")

		var bars []progressRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("Traffic"))
		Expect(bars[0].Finished).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)
		Expect(m.progressBars).To(BeEmpty())
	})

	It("should serve over HTTP", func() {
		server = httptest.NewServer(m.Router())

		rsp, err := http.Get(server.URL + "/api/list_components")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
		Expect(rsp.Header.Get("Content-Type")).To(Equal("application/json"))
	})

	It("should start and stop its own server", func() {
		m.WithPortNumber(0)
		Expect(m.StartServer()).To(Succeed())
		Expect(m.Port()).NotTo(BeZero())
		Expect(m.StopServer()).To(Succeed())
		Expect(m.Port()).To(BeZero())
	})
})
