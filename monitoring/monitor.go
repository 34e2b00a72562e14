// Package monitoring turns a running generator into a web server that shows
// the address space and lets a user pause, resume and trigger generations.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/testdata/address"
	"github.com/sarchlab/testdata/generation"
	"github.com/sarchlab/testdata/idgen"
	"github.com/sarchlab/testdata/monitoring/web"
	"github.com/sarchlab/testdata/timing"
	"github.com/sarchlab/testdata/tracing"
	"github.com/sarchlab/testdata/ua"
)

// ErrAlreadyStarted is returned by StartServer on a running monitor.
var ErrAlreadyStarted = errors.New("monitor already started")

// Monitor serves the monitoring API.
type Monitor struct {
	engine     timing.Engine
	generator  *generation.Engine
	gatherer   prometheus.Gatherer
	stats      StatsProvider
	portNumber int
	ids        idgen.Generator

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	serverLock sync.Mutex
	server     *http.Server
	addr       string
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		ids: idgen.NewSequential(),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// refused and a random port is used instead.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		slog.Warn("monitor port not allowed, using a random port",
			"port", portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterEngine registers the timing engine that drives the generations.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e
}

// RegisterGenerator registers the generation engine and, through it, the
// address space.
func (m *Monitor) RegisterGenerator(g *generation.Engine) {
	m.generator = g
}

// RegisterGatherer exposes the metrics of g at /metrics.
func (m *Monitor) RegisterGatherer(g prometheus.Gatherer) {
	m.gatherer = g
}

// A StatsProvider summarizes the generations of every node.
type StatsProvider interface {
	Snapshot() []tracing.NodeStats
}

// RegisterStats serves the summaries of p at /api/stats.
func (m *Monitor) RegisterStats(p StatsProvider) {
	m.stats = p
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.ids.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/pause", m.pauseEngine).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/continue", m.continueEngine).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/now", m.now).Methods(http.MethodGet)
	api.HandleFunc("/nodes", m.listNodes).Methods(http.MethodGet)
	api.HandleFunc("/node/{id}", m.readNode).Methods(http.MethodGet)
	api.HandleFunc("/node/{id}/detail", m.nodeDetail).Methods(http.MethodGet)
	api.HandleFunc("/generate/{id}", m.generate).Methods(http.MethodPost)
	api.HandleFunc("/stats", m.listStats).Methods(http.MethodGet)
	api.HandleFunc("/progress", m.listProgressBars).Methods(http.MethodGet)
	api.HandleFunc("/resource", m.listResources).Methods(http.MethodGet)
	api.HandleFunc("/profile", m.collectProfile).Methods(http.MethodGet)

	if m.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	}

	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the address it
// listens on.
func (m *Monitor) StartServer() (string, error) {
	m.serverLock.Lock()
	defer m.serverLock.Unlock()

	if m.server != nil {
		return "", ErrAlreadyStarted
	}

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("monitor listen: %w", err)
	}

	m.addr = fmt.Sprintf("localhost:%d", listener.Addr().(*net.TCPAddr).Port)
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Fprintf(os.Stderr, "Monitoring with http://%s\n", m.addr)

	server := m.server
	go func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("monitor server stopped", "err", err)
		}
	}()

	return m.addr, nil
}

// Addr returns the address of a started server.
func (m *Monitor) Addr() string {
	m.serverLock.Lock()
	defer m.serverLock.Unlock()

	return m.addr
}

// OpenInBrowser opens the monitoring page in the default browser.
func (m *Monitor) OpenInBrowser() error {
	addr := m.Addr()
	if addr == "" {
		return errors.New("monitor not started")
	}

	return browser.OpenURL("http://" + addr)
}

// Shutdown stops a started server.
func (m *Monitor) Shutdown(ctx context.Context) error {
	m.serverLock.Lock()
	server := m.server
	m.server = nil
	m.serverLock.Unlock()

	if server == nil {
		return nil
	}

	return server.Shutdown(ctx)
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	if !m.engineOr503(w) {
		return
	}

	m.engine.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	if !m.engineOr503(w) {
		return
	}

	m.engine.Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	if !m.engineOr503(w) {
		return
	}

	writeJSON(w, struct {
		Now float64 `json:"now"`
	}{float64(m.engine.CurrentTime())})
}

func (m *Monitor) engineOr503(w http.ResponseWriter) bool {
	if m.engine == nil {
		http.Error(w, "no engine registered", http.StatusServiceUnavailable)
		return false
	}

	return true
}

type nodeRsp struct {
	ID              ua.NodeID `json:"id"`
	BrowseName      string    `json:"browse_name"`
	DataType        string    `json:"data_type"`
	ValueRank       int       `json:"value_rank"`
	AccessLevel     string    `json:"access_level"`
	UserAccessLevel string    `json:"user_access_level"`
	Children        []nodeRsp `json:"children,omitempty"`
}

func makeNodeRsp(v address.Variable) nodeRsp {
	d := v.Descriptor()
	rsp := nodeRsp{
		ID:              v.ID(),
		BrowseName:      v.BrowseName(),
		DataType:        d.DataType.String(),
		ValueRank:       d.ValueRank,
		AccessLevel:     v.AccessLevel().String(),
		UserAccessLevel: v.UserAccessLevel().String(),
	}

	if c, ok := v.(*address.CompositeVariable); ok {
		for _, child := range c.Children() {
			rsp.Children = append(rsp.Children, makeNodeRsp(child))
		}
	}

	return rsp
}

func (m *Monitor) listNodes(w http.ResponseWriter, _ *http.Request) {
	if !m.generatorOr503(w) {
		return
	}

	nodes := m.generator.Space().Nodes()
	rsp := make([]nodeRsp, 0, len(nodes))
	for _, n := range nodes {
		rsp = append(rsp, makeNodeRsp(n))
	}

	writeJSON(w, rsp)
}

type valueRsp struct {
	ID              ua.NodeID `json:"id"`
	Value           any       `json:"value"`
	Status          string    `json:"status"`
	StatusCode      uint32    `json:"status_code"`
	SourceTimestamp time.Time `json:"source_timestamp"`
}

func makeValueRsp(id ua.NodeID, dv ua.DataValue) valueRsp {
	value := dv.Value
	if st, ok := value.(ua.Structure); ok {
		fields := make(map[string]any, len(st))
		for _, f := range st {
			fields[f.Name] = f.Value
		}

		value = fields
	}

	return valueRsp{
		ID:              id,
		Value:           value,
		Status:          dv.Status.String(),
		StatusCode:      uint32(dv.Status),
		SourceTimestamp: dv.SourceTimestamp,
	}
}

func (m *Monitor) readNode(w http.ResponseWriter, r *http.Request) {
	node := m.findNodeOr404(w, r)
	if node == nil {
		return
	}

	writeJSON(w, makeValueRsp(node.ID(), node.Read()))
}

// nodeDetail is a consistent snapshot of a node for the detail view.
type nodeDetail struct {
	Descriptor      ua.NodeDescriptor
	BrowseName      string
	AccessLevel     ua.AccessLevel
	UserAccessLevel ua.AccessLevel
	Value           ua.DataValue
	Children        []nodeDetail
}

func makeNodeDetail(v address.Variable) nodeDetail {
	d := nodeDetail{
		Descriptor:      v.Descriptor(),
		BrowseName:      v.BrowseName(),
		AccessLevel:     v.AccessLevel(),
		UserAccessLevel: v.UserAccessLevel(),
		Value:           v.Read(),
	}

	if c, ok := v.(*address.CompositeVariable); ok {
		for _, child := range c.Children() {
			d.Children = append(d.Children, makeNodeDetail(child))
		}
	}

	return d
}

func (m *Monitor) nodeDetail(w http.ResponseWriter, r *http.Request) {
	node := m.findNodeOr404(w, r)
	if node == nil {
		return
	}

	detail := makeNodeDetail(node)

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&detail)
	serializer.SetMaxDepth(4)

	buf := new(bytes.Buffer)
	if err := serializer.Serialize(buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

type generateRsp struct {
	CycleID  string   `json:"cycle_id"`
	Duration string   `json:"duration"`
	Result   valueRsp `json:"result"`
}

func (m *Monitor) generate(w http.ResponseWriter, r *http.Request) {
	node := m.findNodeOr404(w, r)
	if node == nil {
		return
	}

	result := m.generator.GenerateResult(r.Context(), node.ID())
	value := makeValueRsp(result.NodeID, result.Value)
	value.Status = result.Status.String()
	value.StatusCode = uint32(result.Status)

	writeJSON(w, generateRsp{
		CycleID:  result.CycleID,
		Duration: result.Duration.String(),
		Result:   value,
	})
}

func (m *Monitor) generatorOr503(w http.ResponseWriter) bool {
	if m.generator == nil {
		http.Error(w, "no generator registered", http.StatusServiceUnavailable)
		return false
	}

	return true
}

func (m *Monitor) findNodeOr404(
	w http.ResponseWriter,
	r *http.Request,
) address.Variable {
	if !m.generatorOr503(w) {
		return nil
	}

	id := ua.NodeID(mux.Vars(r)["id"])

	node, ok := m.generator.Space().Get(id)
	if !ok {
		http.Error(w, "node not found", http.StatusNotFound)
		return nil
	}

	return node
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	if m.stats == nil {
		http.Error(w, "no stats registered", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, m.stats.Snapshot())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

// collectProfile samples the CPU for the duration given by the "duration"
// query parameter, one second by default.
func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("duration"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			http.Error(w, "invalid duration", http.StatusBadRequest)
			return
		}

		duration = d
	}

	buf := bytes.NewBuffer(nil)
	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	select {
	case <-time.After(duration):
	case <-r.Context().Done():
	}

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		slog.Debug("monitor response not delivered", "err", err)
	}
}
