package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dmafifo/dmafifo"
	"github.com/sarchlab/dmafifo/fifocore"
	"github.com/sarchlab/dmafifo/proptree"
	"github.com/sarchlab/dmafifo/simdev"
)

var _ = Describe("Monitor", func() {
	var (
		tree   *proptree.Tree
		dev    *simdev.Device
		blk    *dmafifo.Block
		m      *Monitor
		router http.Handler
	)

	do := func(method, url, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, url, strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		tree = proptree.New()
		dev = simdev.MakeBuilder().WithNumChannels(2).Build("Dev")
		m = NewMonitor(tree)

		bar := m.CreateProgressBar("DmaFIFO bring-up", 2)

		var err error
		blk, err = dmafifo.MakeBuilder().
			WithTransport(dev).
			WithTree(tree).
			WithNumChannels(2).
			WithCoreMaker(fifocore.MakeBuilder().WithPollInterval(0).Maker()).
			WithHook(bar).
			Build("DmaFIFO")
		Expect(err).NotTo(HaveOccurred())

		m.RegisterBlock(blk)
		router = m.Router()
	})

	It("should list blocks", func() {
		rec := do(http.MethodGet, "/api/list_blocks", "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`["DmaFIFO"]`))
	})

	It("should report regions", func() {
		rec := do(http.MethodGet, "/api/regions/DmaFIFO", "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{
			"regions": [
				{"BaseAddr": 0, "Depth": 33554432},
				{"BaseAddr": 33554432, "Depth": 33554432}
			],
			"overlaps": []
		}`))
	})

	It("should return 404 for unknown blocks", func() {
		rec := do(http.MethodGet, "/api/regions/Other", "")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should serialize a block", func() {
		rec := do(http.MethodGet, "/api/block/DmaFIFO", "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Valid(rec.Body.Bytes())).To(BeTrue())
	})

	It("should read an argument", func() {
		rec := do(http.MethodGet, "/api/arg/DmaFIFO/1/base_addr", "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{
			"path": "/blocks/DmaFIFO/args/1/base_addr/value",
			"value": 33554432
		}`))
	})

	It("should read an argument after a direct resize", func() {
		Expect(blk.Resize(0x100000, 0x20000, 1)).To(Succeed())

		rec := do(http.MethodGet, "/api/arg/DmaFIFO/1/depth", "")

		Expect(rec.Body.String()).To(MatchJSON(`{
			"path": "/blocks/DmaFIFO/args/1/depth/value",
			"value": 131072
		}`))
	})

	It("should resize a channel through an argument", func() {
		rec := do(http.MethodPut, "/api/arg/DmaFIFO/0/depth", "65536")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(blk.Region(0)).To(Equal(dmafifo.Region{
			BaseAddr: 0,
			Depth:    0x10000,
		}))

		base, depth, err := dev.Region(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(base).To(BeZero())
		Expect(depth).To(Equal(uint32(0x10000)))
	})

	It("should reject a rejected region", func() {
		rec := do(http.MethodPut, "/api/arg/DmaFIFO/0/depth", "12288")

		Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
		Expect(rec.Body.String()).To(ContainSubstring("power of 2"))
		Expect(blk.Depth(0)).To(Equal(uint32(dmafifo.DefaultSize)))
	})

	It("should reject malformed values", func() {
		rec := do(http.MethodPut, "/api/arg/DmaFIFO/0/base_addr", `"abc"`)

		Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
	})

	DescribeTable("unknown arguments",
		func(url string) {
			Expect(do(http.MethodGet, url, "").Code).
				To(Equal(http.StatusNotFound))
		},
		Entry("channel out of range", "/api/arg/DmaFIFO/2/depth"),
		Entry("channel not a number", "/api/arg/DmaFIFO/x/depth"),
		Entry("unknown name", "/api/arg/DmaFIFO/0/width"),
	)

	It("should list the tree", func() {
		rec := do(http.MethodGet, "/api/tree?prefix=/blocks/DmaFIFO/args/0", "")

		Expect(rec.Body.String()).To(MatchJSON(`[
			"/blocks/DmaFIFO/args/0/base_addr/value",
			"/blocks/DmaFIFO/args/0/depth/value"
		]`))
	})

	It("should track bring-up progress", func() {
		rec := do(http.MethodGet, "/api/progress", "")

		var bars []map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["name"]).To(Equal("DmaFIFO bring-up"))
		Expect(bars[0]["finished"]).To(BeNumerically("==", 2))
		Expect(bars[0]["in_progress"]).To(BeNumerically("==", 0))
	})

	It("should drop completed progress bars", func() {
		m.progressBarsLock.Lock()
		bar := m.progressBars[0]
		m.progressBarsLock.Unlock()

		m.CompleteProgressBar(bar)

		Expect(do(http.MethodGet, "/api/progress", "").Body.String()).
			To(MatchJSON(`[]`))
	})

	It("should report resources", func() {
		rec := do(http.MethodGet, "/api/resource", "")

		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve on a random port", func() {
		url, err := m.WithPortNumber(80).StartServer()
		Expect(err).NotTo(HaveOccurred())
		defer func() { Expect(m.StopServer()).To(Succeed()) }()

		rsp, err := http.Get(url + "/api/list_blocks")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})
})
