package monitoring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/testdata/address"
	"github.com/sarchlab/testdata/generation"
	"github.com/sarchlab/testdata/source"
	"github.com/sarchlab/testdata/timing"
	"github.com/sarchlab/testdata/tracing"
	"github.com/sarchlab/testdata/ua"
)

type tickHandler struct {
	ticks chan timing.VTimeInSec
}

func (h *tickHandler) Handle(e timing.Event) error {
	h.ticks <- e.Time()
	return nil
}

var _ = Describe("Monitor", func() {
	var (
		m         *Monitor
		engine    *timing.SerialEngine
		generator *generation.Engine
		server    *httptest.Server
	)

	get := func(path string) (int, string) {
		rsp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())

		return rsp.StatusCode, string(body)
	}

	post := func(path string) (int, string) {
		rsp, err := http.Post(server.URL+path, "application/json", nil)
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())

		return rsp.StatusCode, string(body)
	}

	nodePath := func(prefix string, id ua.NodeID) string {
		return prefix + url.PathEscape(string(id))
	}

	BeforeEach(func() {
		space := address.NewSpace().
			MustAdd(address.NewVector("ns=2;s=Vector", "Vector")).
			MustAdd(address.NewValueSlot("ns=2;s=Count", "Count", ua.DataTypeInt32))
		src := source.NewStatic().
			Set("ns=2;s=Vector", ua.Structure{
				{Name: "X", Value: 1.0},
				{Name: "Y", Value: 2.0},
				{Name: "Z", Value: 3.0},
			}).
			Set("ns=2;s=Count", int32(9))

		reg := prometheus.NewRegistry()
		generator = generation.NewEngine(space, generation.WithSource(src))
		generator.AcceptHook(tracing.NewMetricsHook(reg))
		engine = timing.NewSerialEngine()

		m = NewMonitor()
		m.RegisterEngine(engine)
		m.RegisterGenerator(generator)
		m.RegisterGatherer(reg)

		server = httptest.NewServer(m.Handler())
	})

	AfterEach(func() {
		server.Close()
	})

	It("should list the nodes with their children", func() {
		code, body := get("/api/nodes")
		Expect(code).To(Equal(http.StatusOK))

		var nodes []nodeRsp
		Expect(json.Unmarshal([]byte(body), &nodes)).To(Succeed())
		Expect(nodes).To(HaveLen(2))
		Expect(nodes[0].ID).To(Equal(ua.NodeID("ns=2;s=Vector")))
		Expect(nodes[0].DataType).To(Equal("Structure"))
		Expect(nodes[0].Children).To(HaveLen(3))
		Expect(nodes[0].AccessLevel).To(Equal(ua.AccessLevelCurrentRead.String()))
	})

	It("should generate a node on demand", func() {
		code, body := post(nodePath("/api/generate/", "ns=2;s=Vector"))
		Expect(code).To(Equal(http.StatusOK))

		var rsp generateRsp
		Expect(json.Unmarshal([]byte(body), &rsp)).To(Succeed())
		Expect(rsp.Result.Status).To(Equal("Good"))
		Expect(rsp.Result.Value).To(Equal(map[string]any{
			"X": 1.0, "Y": 2.0, "Z": 3.0,
		}))

		code, body = get(nodePath("/api/node/", "ns=2;s=Vector.Y"))
		Expect(code).To(Equal(http.StatusOK))

		var value valueRsp
		Expect(json.Unmarshal([]byte(body), &value)).To(Succeed())
		Expect(value.Value).To(Equal(2.0))
		Expect(value.StatusCode).To(Equal(uint32(ua.StatusGood)))
	})

	It("should refuse to generate with GET", func() {
		code, _ := get(nodePath("/api/generate/", "ns=2;s=Count"))

		Expect(code).To(Equal(http.StatusMethodNotAllowed))
	})

	It("should report unknown nodes", func() {
		code, _ := get(nodePath("/api/node/", "ns=2;s=Nope"))
		Expect(code).To(Equal(http.StatusNotFound))

		code, _ = post(nodePath("/api/generate/", "ns=2;s=Nope"))
		Expect(code).To(Equal(http.StatusNotFound))
	})

	It("should serialize node details", func() {
		code, body := get(nodePath("/api/node/", "ns=2;s=Count") + "/detail")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring("Descriptor"))
		Expect(json.Valid([]byte(body))).To(BeTrue())
	})

	It("should expose the generation metrics", func() {
		post(nodePath("/api/generate/", "ns=2;s=Count"))

		code, body := get("/metrics")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`tdsim_generations_total{status="Good"} 1`))
	})

	It("should report the virtual time", func() {
		code, body := get("/api/now")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"now":0}`))
	})

	It("should pause and continue the engine", func() {
		h := &tickHandler{ticks: make(chan timing.VTimeInSec, 1)}
		engine.Schedule(timing.MakeTickEvent(h, 1))

		code, _ := post("/api/pause")
		Expect(code).To(Equal(http.StatusOK))

		done := make(chan error, 1)
		go func() { done <- engine.Run() }()
		Consistently(h.ticks, 50*time.Millisecond).ShouldNot(Receive())

		code, _ = post("/api/continue")
		Expect(code).To(Equal(http.StatusOK))
		Eventually(h.ticks).Should(Receive(Equal(timing.VTimeInSec(1))))
		Eventually(done).Should(Receive(BeNil()))
	})

	It("should report resources", func() {
		code, body := get("/api/resource")

		Expect(code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal([]byte(body), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should collect a short profile", func() {
		code, _ := get("/api/profile?duration=20ms")
		Expect(code).To(Equal(http.StatusOK))

		code, _ = get("/api/profile?duration=never")
		Expect(code).To(Equal(http.StatusBadRequest))
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("run", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		_, body := get("/api/progress")

		var bars []progressRsp
		Expect(json.Unmarshal([]byte(body), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Finished).To(Equal(uint64(2)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)
		_, body = get("/api/progress")
		Expect(body).To(Equal("[]"))
	})

	It("should serve generation stats", func() {
		code, _ := get("/api/stats")
		Expect(code).To(Equal(http.StatusServiceUnavailable))

		stats := tracing.NewStatsTracer(nil)
		generator.AcceptHook(stats)
		m.RegisterStats(stats)
		post(nodePath("/api/generate/", "ns=2;s=Count"))

		code, body := get("/api/stats")
		Expect(code).To(Equal(http.StatusOK))

		var rsp []tracing.NodeStats
		Expect(json.Unmarshal([]byte(body), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].NodeID).To(Equal(ua.NodeID("ns=2;s=Count")))
		Expect(rsp[0].StatusCounts).To(HaveKeyWithValue("Good", uint64(1)))
	})

	It("should serve the web page", func() {
		code, body := get("/")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should answer 503 without an engine", func() {
		bare := httptest.NewServer(NewMonitor().Handler())
		defer bare.Close()

		rsp, err := http.Get(bare.URL + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusServiceUnavailable))
	})

	It("should start and stop a real server", func() {
		mon := NewMonitor()
		addr, err := mon.StartServer()
		Expect(err).NotTo(HaveOccurred())
		Expect(addr).To(HavePrefix("localhost:"))
		Expect(mon.Addr()).To(Equal(addr))

		_, err = mon.StartServer()
		Expect(err).To(MatchError(ErrAlreadyStarted))
		Expect(mon.Shutdown(context.Background())).To(Succeed())
	})

	It("should ignore low port numbers", func() {
		Expect(NewMonitor().WithPortNumber(80).portNumber).To(Equal(0))
		Expect(NewMonitor().WithPortNumber(8080).portNumber).To(Equal(8080))
	})
})
