package tracing_test

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sarchlab/testdata/address"
	"github.com/sarchlab/testdata/generation"
	"github.com/sarchlab/testdata/source"
	"github.com/sarchlab/testdata/tracing"
	"github.com/sarchlab/testdata/ua"
)

func newEngine() *generation.Engine {
	space := address.NewSpace().
		MustAdd(address.NewValueSlot("ns=2;s=Good", "Good", ua.DataTypeInt32)).
		MustAdd(address.NewValueSlot("ns=2;s=Bad", "Bad", ua.DataTypeInt32))

	src := source.NewStatic().
		Set("ns=2;s=Good", int32(4)).
		Set("ns=2;s=Bad", "not a number")

	return generation.NewEngine(space, generation.WithSource(src))
}

var _ = Describe("LogHook", func() {
	var (
		buf    *bytes.Buffer
		engine *generation.Engine
	)

	BeforeEach(func() {
		buf = new(bytes.Buffer)
		logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))

		engine = newEngine()
		engine.AcceptHook(tracing.NewLogHook(logger))
	})

	It("should log good generations at debug", func() {
		engine.Generate(context.Background(), "ns=2;s=Good")

		Expect(buf.String()).To(ContainSubstring("level=DEBUG"))
		Expect(buf.String()).To(ContainSubstring(`node=ns=2;s=Good`))
		Expect(buf.String()).To(ContainSubstring("status=Good"))
		Expect(buf.String()).To(ContainSubstring("cycle=1"))
	})

	It("should log bad generations as warnings", func() {
		engine.Generate(context.Background(), "ns=2;s=Bad")

		Expect(buf.String()).To(ContainSubstring("level=WARN"))
		Expect(buf.String()).To(ContainSubstring("BadTypeMismatch"))
	})

	It("should log once per generation", func() {
		engine.GenerateAll(context.Background())

		Expect(bytes.Count(buf.Bytes(), []byte("msg=generated"))).To(Equal(2))
	})
})

var _ = Describe("MetricsHook", func() {
	var (
		reg    *prometheus.Registry
		hook   *tracing.MetricsHook
		engine *generation.Engine
	)

	BeforeEach(func() {
		reg = prometheus.NewRegistry()
		hook = tracing.NewMetricsHook(reg)

		engine = newEngine()
		engine.AcceptHook(hook)
	})

	It("should count generations by status", func() {
		engine.Generate(context.Background(), "ns=2;s=Good")
		engine.Generate(context.Background(), "ns=2;s=Good")
		engine.Generate(context.Background(), "ns=2;s=Bad")

		Expect(testutil.CollectAndCount(reg, "tdsim_generations_total")).
			To(Equal(2))
		Expect(testutil.CollectAndCount(reg,
			"tdsim_generation_duration_seconds")).To(Equal(1))

		families, err := reg.Gather()
		Expect(err).NotTo(HaveOccurred())

		counts := map[string]float64{}
		for _, mf := range families {
			if mf.GetName() != "tdsim_generations_total" {
				continue
			}
			for _, m := range mf.GetMetric() {
				counts[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
			}
		}

		Expect(counts).To(Equal(map[string]float64{
			ua.StatusGood.String():            2,
			ua.StatusBadTypeMismatch.String(): 1,
		}))
	})

	It("should return the in-flight gauge to zero", func() {
		engine.GenerateAll(context.Background())

		Eventually(func() float64 {
			return gaugeValue(reg, "tdsim_generations_in_flight")
		}, time.Second).Should(BeZero())
	})

	It("should refuse to register twice into one registry", func() {
		Expect(func() { tracing.NewMetricsHook(reg) }).To(Panic())
	})
})

func gaugeValue(reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	Expect(err).NotTo(HaveOccurred())

	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}

	return -1
}

var _ = Describe("StatsTracer", func() {
	var (
		tracer *tracing.StatsTracer
		engine *generation.Engine
	)

	BeforeEach(func() {
		tracer = tracing.NewStatsTracer(nil)
		engine = newEngine()
		engine.AcceptHook(tracer)
	})

	It("should count generations per node and status", func() {
		engine.Generate(context.Background(), "ns=2;s=Good")
		engine.Generate(context.Background(), "ns=2;s=Good")
		engine.Generate(context.Background(), "ns=2;s=Bad")

		Expect(tracer.TotalCount()).To(Equal(uint64(3)))
		Expect(tracer.StatusCount(ua.StatusGood)).To(Equal(uint64(2)))
		Expect(tracer.StatusCount(ua.StatusBadTypeMismatch)).To(Equal(uint64(1)))

		good, ok := tracer.Node("ns=2;s=Good")
		Expect(ok).To(BeTrue())
		Expect(good.Count).To(Equal(uint64(2)))
		Expect(good.LastStatus).To(Equal("Good"))
		Expect(good.AverageTime).To(Equal(good.TotalTime / 2))
	})

	It("should sort the snapshot by node", func() {
		engine.GenerateAll(context.Background())

		snapshot := tracer.Snapshot()
		Expect(snapshot).To(HaveLen(2))
		Expect(snapshot[0].NodeID).To(Equal(ua.NodeID("ns=2;s=Bad")))
		Expect(snapshot[1].StatusCounts).To(Equal(map[string]uint64{"Good": 1}))
	})

	It("should only collect filtered nodes", func() {
		tracer = tracing.NewStatsTracer(func(id ua.NodeID) bool {
			return id == "ns=2;s=Bad"
		})
		engine.AcceptHook(tracer)

		engine.GenerateAll(context.Background())

		_, ok := tracer.Node("ns=2;s=Good")
		Expect(ok).To(BeFalse())
		Expect(tracer.TotalCount()).To(Equal(uint64(1)))
	})

	It("should report zero average without generations", func() {
		Expect(tracer.AverageTime()).To(Equal(time.Duration(0)))
	})
})

var _ = Describe("Writer hooks", func() {
	var engine *generation.Engine

	BeforeEach(func() {
		engine = newEngine()
	})

	It("should write one JSON line per generation", func() {
		buf := new(bytes.Buffer)
		hook := tracing.NewJSONHook(buf)
		engine.AcceptHook(hook)

		engine.Generate(context.Background(), "ns=2;s=Good")
		engine.Generate(context.Background(), "ns=2;s=Bad")

		Expect(hook.Err()).NotTo(HaveOccurred())
		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		Expect(lines).To(HaveLen(2))
		Expect(string(lines[0])).To(ContainSubstring(`"node_id":"ns=2;s=Good"`))
		Expect(string(lines[0])).To(ContainSubstring(`"value":"4"`))
		Expect(string(lines[1])).To(ContainSubstring(`"status":"BadTypeMismatch"`))
	})

	It("should write CSV rows under a header", func() {
		buf := new(bytes.Buffer)
		hook := tracing.NewCSVHook(buf)
		engine.AcceptHook(hook)

		engine.Generate(context.Background(), "ns=2;s=Good")
		Expect(buf.Len()).To(BeZero())

		Expect(hook.Flush()).To(Succeed())
		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		Expect(lines).To(HaveLen(2))
		Expect(string(lines[0])).To(HavePrefix("CycleID,NodeID,Status"))
		Expect(string(lines[1])).To(HavePrefix("1,ns=2;s=Good,Good,4,"))
	})
})
