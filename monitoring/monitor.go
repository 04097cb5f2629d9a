// Package monitoring serves the state of DMA FIFO blocks over HTTP and lets
// operators change channel regions through the blocks' tree arguments.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
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
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/dmafifo/dmafifo"
	"github.com/sarchlab/dmafifo/idgen"
	"github.com/sarchlab/dmafifo/proptree"
)

// Monitor turns a set of DMA FIFO blocks into a server that can be
// inspected and reconfigured.
type Monitor struct {
	tree        *proptree.Tree
	portNumber  int
	openBrowser bool
	ids         idgen.Generator

	blocksLock sync.RWMutex
	blocks     []*dmafifo.Block

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	listener net.Listener
}

// NewMonitor creates a Monitor that reads and sets arguments in tree.
func NewMonitor(tree *proptree.Tree) *Monitor {
	return &Monitor{
		tree: tree,
		ids:  idgen.NewSequential(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor in the default browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterBlock registers a block to be monitored.
func (m *Monitor) RegisterBlock(b *dmafifo.Block) {
	m.blocksLock.Lock()
	defer m.blocksLock.Unlock()

	m.blocks = append(m.blocks, b)
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

// CompleteProgressBar removes a bar from the list of shown bars.
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

// Router returns the routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/list_blocks", m.listBlocks).Methods(http.MethodGet)
	r.HandleFunc("/api/block/{name}", m.blockDetails).Methods(http.MethodGet)
	r.HandleFunc("/api/regions/{name}", m.listRegions).Methods(http.MethodGet)
	r.HandleFunc("/api/arg/{name}/{channel}/{arg}", m.getArg).
		Methods(http.MethodGet)
	r.HandleFunc("/api/arg/{name}/{channel}/{arg}", m.setArg).
		Methods(http.MethodPut)
	r.HandleFunc("/api/tree", m.listTree).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", m.listProgressBars).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)

	return r
}

// StartServer starts serving in the background and returns the address the
// server listens on.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("monitoring: %w", err)
	}

	m.listener = listener

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring DMA FIFO blocks with %s\n", url)

	go func() {
		err := http.Serve(listener, m.Router())
		if err != nil && !errors.Is(err, net.ErrClosed) {
			log.Panic(err)
		}
	}()

	if m.openBrowser {
		err = browser.OpenURL(url + "/api/list_blocks")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
		}
	}

	return url, nil
}

// StopServer closes the listener opened by StartServer.
func (m *Monitor) StopServer() error {
	if m.listener == nil {
		return nil
	}

	return m.listener.Close()
}

func (m *Monitor) listBlocks(w http.ResponseWriter, _ *http.Request) {
	m.blocksLock.RLock()
	names := make([]string, 0, len(m.blocks))
	for _, b := range m.blocks {
		names = append(names, b.Name())
	}
	m.blocksLock.RUnlock()

	writeJSON(w, names)
}

func (m *Monitor) blockDetails(w http.ResponseWriter, r *http.Request) {
	block := m.findBlockOr404(w, mux.Vars(r)["name"])
	if block == nil {
		return
	}

	state := &blockState{
		Name:        block.Name(),
		NumChannels: block.NumChannels(),
		NumHooks:    block.NumHooks(),
		Regions:     block.Regions(),
		Overlaps:    block.Overlaps(),
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(state)
	serializer.SetMaxDepth(2)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type blockState struct {
	Name        string
	NumChannels int
	NumHooks    int
	Regions     []dmafifo.Region
	Overlaps    [][2]int
}

type regionsRsp struct {
	Regions  []dmafifo.Region `json:"regions"`
	Overlaps [][2]int         `json:"overlaps"`
}

func (m *Monitor) listRegions(w http.ResponseWriter, r *http.Request) {
	block := m.findBlockOr404(w, mux.Vars(r)["name"])
	if block == nil {
		return
	}

	rsp := regionsRsp{
		Regions:  block.Regions(),
		Overlaps: block.Overlaps(),
	}
	if rsp.Overlaps == nil {
		rsp.Overlaps = [][2]int{}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) findArgOr4xx(
	w http.ResponseWriter,
	r *http.Request,
) proptree.Node {
	vars := mux.Vars(r)

	block := m.findBlockOr404(w, vars["name"])
	if block == nil {
		return nil
	}

	ch, err := strconv.Atoi(vars["channel"])
	if err != nil || ch < 0 || ch >= block.NumChannels() {
		writeError(w, http.StatusNotFound,
			fmt.Errorf("%w: %s", dmafifo.ErrInvalidChannel, vars["channel"]))
		return nil
	}

	arg := vars["arg"]
	if arg != dmafifo.ArgBaseAddr && arg != dmafifo.ArgDepth {
		writeError(w, http.StatusNotFound,
			fmt.Errorf("unknown argument %q", arg))
		return nil
	}

	node, err := m.tree.Node(block.ArgPath(ch, arg))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil
	}

	return node
}

type argRsp struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func (m *Monitor) getArg(w http.ResponseWriter, r *http.Request) {
	node := m.findArgOr4xx(w, r)
	if node == nil {
		return
	}

	value, err := node.Value()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, argRsp{Path: node.Path(), Value: value})
}

func (m *Monitor) setArg(w http.ResponseWriter, r *http.Request) {
	node := m.findArgOr4xx(w, r)
	if node == nil {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err = node.SetJSON(body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	m.getArg(w, r)
}

func (m *Monitor) listTree(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	writeJSON(w, m.tree.List(prefix))
}

func (m *Monitor) findBlockOr404(
	w http.ResponseWriter,
	name string,
) *dmafifo.Block {
	m.blocksLock.RLock()
	defer m.blocksLock.RUnlock()

	for _, b := range m.blocks {
		if b.Name() == name {
			return b
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Block not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	fmt.Fprintf(w, "Error: %s", err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
