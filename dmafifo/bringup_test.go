package dmafifo

import (
	"bytes"
	"errors"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/dmafifo/fifocore"
	"github.com/sarchlab/dmafifo/proptree"
	"github.com/sarchlab/dmafifo/regaccess"
	"github.com/sarchlab/dmafifo/simdev"
)

var _ = Describe("Bring-up", func() {
	var (
		mockCtrl  *gomock.Controller
		transport *MockTransport
		tree      *proptree.Tree
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		transport = NewMockTransport(mockCtrl)
		tree = proptree.New()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should give two channels equal adjacent regions", func() {
		farm := newCoreFarm(mockCtrl, expectHealthyBringUp)

		blk, err := MakeBuilder().
			WithTransport(transport).
			WithTree(tree).
			WithNumChannels(2).
			WithCoreMaker(farm.maker).
			Build("DmaFIFO")

		Expect(err).NotTo(HaveOccurred())
		Expect(blk.NumChannels()).To(Equal(2))
		Expect(blk.Regions()).To(Equal([]Region{
			{BaseAddr: 0, Depth: 32 * 1024 * 1024},
			{BaseAddr: 32 * 1024 * 1024, Depth: 32 * 1024 * 1024},
		}))
		Expect(blk.Overlaps()).To(BeEmpty())
	})

	It("should expose the region in the tree", func() {
		farm := newCoreFarm(mockCtrl, expectHealthyBringUp)

		blk, err := MakeBuilder().
			WithTransport(transport).
			WithTree(tree).
			WithNumChannels(2).
			WithCoreMaker(farm.maker).
			Build("DmaFIFO")
		Expect(err).NotTo(HaveOccurred())

		Expect(blk.ArgPath(1, ArgBaseAddr)).
			To(Equal("/blocks/DmaFIFO/args/1/base_addr/value"))

		base, err := proptree.Access[int64](tree, blk.ArgPath(1, ArgBaseAddr))
		Expect(err).NotTo(HaveOccurred())
		Expect(base.Get()).To(Equal(int64(DefaultSize)))

		depth, err := proptree.Access[int64](tree, blk.ArgPath(1, ArgDepth))
		Expect(err).NotTo(HaveOccurred())
		Expect(depth.Get()).To(Equal(int64(DefaultSize)))
	})

	It("should place arguments under a custom root", func() {
		farm := newCoreFarm(mockCtrl, expectHealthyBringUp)

		blk, err := MakeBuilder().
			WithTransport(transport).
			WithTree(tree).
			WithCoreMaker(farm.maker).
			WithArgRoot("/mboards/0/xbar/DmaFIFO_0/args").
			Build("DmaFIFO")
		Expect(err).NotTo(HaveOccurred())

		Expect(tree.Exists("/mboards/0/xbar/DmaFIFO_0/args/0/depth/value")).
			To(BeTrue())
		Expect(blk.ArgPath(0, ArgDepth)).
			To(Equal("/mboards/0/xbar/DmaFIFO_0/args/0/depth/value"))
	})

	It("should fail with the code of an extended self-test", func() {
		farm := newCoreFarm(mockCtrl, func(ch int, core *MockCore) {
			if ch == 0 {
				expectHealthyBringUp(ch, core)
				return
			}

			core.EXPECT().Resize(uint32(DefaultSize), uint32(DefaultSize))
			core.EXPECT().ExtBISTSupported().Return(true).AnyTimes()
			core.EXPECT().RunBIST().Return(uint32(5), nil)
		})

		blk, err := MakeBuilder().
			WithTransport(transport).
			WithTree(tree).
			WithNumChannels(3).
			WithCoreMaker(farm.maker).
			Build("DmaFIFO")

		Expect(blk).To(BeNil())
		Expect(err).To(MatchError(ErrBISTFailed))
		Expect(err).To(MatchError(ContainSubstring("code: 5")))

		var bistErr *BISTError
		Expect(errors.As(err, &bistErr)).To(BeTrue())
		Expect(bistErr.Channel).To(Equal(1))
		Expect(bistErr.Code).To(Equal(uint32(5)))
		Expect(bistErr.Extended).To(BeTrue())

		By("not bringing up the channels after the failing one")
		Expect(farm.cores).To(HaveLen(2))

		By("removing the arguments of the channels that came up")
		Expect(tree.List("/blocks/DmaFIFO")).To(BeEmpty())
	})

	It("should fail on a legacy self-test failure", func() {
		farm := newCoreFarm(mockCtrl, func(ch int, core *MockCore) {
			core.EXPECT().Resize(gomock.Any(), gomock.Any())
			core.EXPECT().ExtBISTSupported().Return(false).AnyTimes()
			core.EXPECT().RunBIST().Return(uint32(1), nil)
		})

		_, err := MakeBuilder().
			WithTransport(transport).
			WithTree(tree).
			WithCoreMaker(farm.maker).
			Build("DmaFIFO")

		var bistErr *BISTError
		Expect(errors.As(err, &bistErr)).To(BeTrue())
		Expect(bistErr.Extended).To(BeFalse())
		Expect(err.Error()).NotTo(ContainSubstring("code"))
	})

	It("should pass a legacy self-test without reading throughput", func() {
		farm := newCoreFarm(mockCtrl, func(ch int, core *MockCore) {
			core.EXPECT().Resize(uint32(0), uint32(DefaultSize)).Times(3)
			core.EXPECT().ExtBISTSupported().Return(false).AnyTimes()
			core.EXPECT().RunBIST().Return(uint32(0), nil)
		})

		_, err := MakeBuilder().
			WithTransport(transport).
			WithTree(tree).
			WithCoreMaker(farm.maker).
			Build("DmaFIFO")

		Expect(err).NotTo(HaveOccurred())
	})

	It("should fail if the self-test cannot run", func() {
		farm := newCoreFarm(mockCtrl, func(ch int, core *MockCore) {
			core.EXPECT().Resize(gomock.Any(), gomock.Any())
			core.EXPECT().ExtBISTSupported().Return(true).AnyTimes()
			core.EXPECT().RunBIST().Return(uint32(0), fifocore.ErrBISTTimeout)
		})

		_, err := MakeBuilder().
			WithTransport(transport).
			WithTree(tree).
			WithCoreMaker(farm.maker).
			Build("DmaFIFO")

		Expect(err).To(MatchError(fifocore.ErrBISTTimeout))
	})

	It("should fail if the default region is rejected", func() {
		rejected := errors.New("rejected")
		farm := newCoreFarm(mockCtrl, func(ch int, core *MockCore) {
			core.EXPECT().Resize(gomock.Any(), gomock.Any()).Return(rejected)
		})

		_, err := MakeBuilder().
			WithTransport(transport).
			WithTree(tree).
			WithCoreMaker(farm.maker).
			Build("DmaFIFO")

		Expect(err).To(MatchError(rejected))
	})

	It("should fail if a core cannot be made", func() {
		noCore := errors.New("no core")

		_, err := MakeBuilder().
			WithTransport(transport).
			WithTree(tree).
			WithCoreMaker(func(regaccess.Iface, uint32, uint32) (fifocore.Core, error) {
				return nil, noCore
			}).
			Build("DmaFIFO")

		Expect(err).To(MatchError(noCore))
	})

	It("should fail if the arguments already exist", func() {
		_, err := proptree.Create[int64](tree, "/blocks/DmaFIFO/args/0/base_addr/value")
		Expect(err).NotTo(HaveOccurred())

		farm := newCoreFarm(mockCtrl, func(ch int, core *MockCore) {
			core.EXPECT().Resize(gomock.Any(), gomock.Any())
			core.EXPECT().ExtBISTSupported().Return(true).AnyTimes()
			core.EXPECT().RunBIST().Return(uint32(0), nil)
			core.EXPECT().BISTThroughput().Return(1e9, nil)
		})

		_, err = MakeBuilder().
			WithTransport(transport).
			WithTree(tree).
			WithCoreMaker(farm.maker).
			Build("DmaFIFO")

		Expect(err).To(MatchError(proptree.ErrPathExists))
		Expect(tree.List("/blocks/DmaFIFO")).To(Equal([]string{
			"/blocks/DmaFIFO/args/0/base_addr/value",
		}))
	})

	It("should refuse default regions past the address space", func() {
		farm := newCoreFarm(mockCtrl, func(ch int, core *MockCore) {
			core.EXPECT().Resize(gomock.Any(), gomock.Any()).AnyTimes()
			core.EXPECT().ExtBISTSupported().Return(false).AnyTimes()
			core.EXPECT().RunBIST().Return(uint32(0), nil)
		})

		_, err := MakeBuilder().
			WithTransport(transport).
			WithTree(tree).
			WithNumChannels(129).
			WithCoreMaker(farm.maker).
			Build("DmaFIFO")

		Expect(err).To(MatchError(ContainSubstring("channel 128")))
		Expect(farm.cores).To(HaveLen(128))
	})

	It("should panic without a transport", func() {
		Expect(func() {
			_, _ = MakeBuilder().WithTree(tree).Build("DmaFIFO")
		}).To(Panic())
	})

	It("should log the self-tests", func() {
		farm := newCoreFarm(mockCtrl, expectHealthyBringUp)
		buf := new(bytes.Buffer)

		_, err := MakeBuilder().
			WithTransport(transport).
			WithTree(tree).
			WithCoreMaker(farm.maker).
			WithHook(NewLogHook(log.New(buf, "", 0))).
			Build("DmaFIFO")
		Expect(err).NotTo(HaveOccurred())

		Expect(buf.String()).To(ContainSubstring("Running BIST for FIFO 0... "))
		Expect(buf.String()).
			To(ContainSubstring("BIST passed (Throughput: 1600 MB/s)"))
	})

	DescribeTable("bring-up on simulated hardware",
		func(n int, legacy bool) {
			devBuilder := simdev.MakeBuilder().
				WithNumChannels(n).
				WithCapacity(uint64(n) * DefaultSize)
			if legacy {
				devBuilder = devBuilder.WithLegacyBIST()
			}

			dev := devBuilder.Build("Dev")

			blk, err := MakeBuilder().
				WithTransport(dev).
				WithTree(tree).
				WithNumChannels(n).
				WithCoreMaker(fifocore.MakeBuilder().WithPollInterval(0).Maker()).
				Build("DmaFIFO")
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < n; i++ {
				Expect(blk.Region(i)).To(Equal(Region{
					BaseAddr: uint32(i) * DefaultSize,
					Depth:    DefaultSize,
				}))

				base, depth, err := dev.Region(i)
				Expect(err).NotTo(HaveOccurred())
				Expect(base).To(Equal(uint32(i) * DefaultSize))
				Expect(depth).To(Equal(uint32(DefaultSize)))
			}
		},
		Entry("one channel", 1, false),
		Entry("two channels", 2, false),
		Entry("five channels", 5, false),
		Entry("three legacy channels", 3, true),
	)

	It("should stop on a simulated extended failure with code 5", func() {
		dev := simdev.MakeBuilder().WithNumChannels(2).Build("Dev")
		dev.InjectBISTError(1, 5)

		blk, err := MakeBuilder().
			WithTransport(dev).
			WithTree(tree).
			WithNumChannels(2).
			WithCoreMaker(fifocore.MakeBuilder().WithPollInterval(0).Maker()).
			Build("DmaFIFO")

		Expect(blk).To(BeNil())

		var bistErr *BISTError
		Expect(errors.As(err, &bistErr)).To(BeTrue())
		Expect(bistErr.Code).To(Equal(uint32(5)))
		Expect(bistErr.Channel).To(Equal(1))
		Expect(tree.List("/")).To(BeEmpty())
	})

	It("should bring up on the same tree once a fault is cleared", func() {
		dev := simdev.MakeBuilder().WithNumChannels(2).Build("Dev")
		builder := MakeBuilder().
			WithTransport(dev).
			WithTree(tree).
			WithNumChannels(2).
			WithCoreMaker(fifocore.MakeBuilder().WithPollInterval(0).Maker())

		dev.InjectBISTError(1, 5)
		_, err := builder.Build("DmaFIFO")
		Expect(err).To(MatchError(ErrBISTFailed))

		dev.InjectBISTError(1, 0)
		blk, err := builder.Build("DmaFIFO")
		Expect(err).NotTo(HaveOccurred())
		Expect(tree.List("/blocks/DmaFIFO/args")).To(HaveLen(4))

		By("resizing only through the new block")
		depth, err := proptree.Access[int64](tree, blk.ArgPath(0, ArgDepth))
		Expect(err).NotTo(HaveOccurred())
		Expect(depth.Set(0x10000)).To(Succeed())
		Expect(blk.Depth(0)).To(Equal(uint32(0x10000)))

		_, hwDepth, err := dev.Region(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(hwDepth).To(Equal(uint32(0x10000)))
	})

	It("should stop on a simulated legacy failure", func() {
		dev := simdev.MakeBuilder().
			WithNumChannels(2).
			WithLegacyBIST().
			Build("Dev")
		dev.InjectDataCorruption(0, true)

		_, err := MakeBuilder().
			WithTransport(dev).
			WithTree(tree).
			WithNumChannels(2).
			WithCoreMaker(fifocore.MakeBuilder().WithPollInterval(0).Maker()).
			Build("DmaFIFO")

		Expect(err).To(MatchError(ErrBISTFailed))
	})
})
