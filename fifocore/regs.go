package fifocore

// settings registers, relative to the settings base

const (
	SRBaseAddr   = 0x00 // region base address (W)
	SRAddrMask   = 0x04 // region address mask, ^(depth-1) (W)
	SRFifoCtrl   = 0x08 // FIFO control (W)
	SRBISTCtrl   = 0x0c // self-test control (W)
	SRBISTConfig = 0x10 // self-test packet count and size (W)
)

// readback registers, relative to the readback base

const (
	RBFifoStatus     = 0x00 // FIFO status (R32)
	RBBISTStatus     = 0x04 // self-test status (R32)
	RBBISTXferCount  = 0x08 // bytes moved by the last self-test (R64)
	RBBISTCycleCount = 0x10 // bus cycles used by the last self-test (R64)
	RBBusClkRate     = 0x18 // bus clock rate in Hz (R32)
)

// SRFifoCtrl bits

const (
	FifoCtrlClear = 1 << 0 // hold the FIFO in reset and drop its content
)

// SRBISTCtrl bits

const (
	BISTCtrlGo = 1 << 0 // start a self-test
)

// RBFifoStatus bits

const (
	FifoStatusExtBIST = 1 << 0 // self-test reports codes and counters
)

// RBBISTStatus bits

const (
	BISTStatusRunning = 1 << 0
	BISTStatusDone    = 1 << 1
	BISTStatusFailed  = 1 << 2

	BISTStatusCodeShift = 8
)

// SRBISTConfig fields

const (
	BISTConfigPacketsMask    = 0xffff
	BISTConfigPktSizeShift   = 16
	BISTConfigWordByteSize   = 8
	DefaultBISTPackets       = 16
	DefaultBISTPktSizeInWord = 512
)

// EncodeBISTConfig packs a packet count and a packet size in bytes into the
// SRBISTConfig layout.
func EncodeBISTConfig(packets, packetByteSize uint32) uint32 {
	words := packetByteSize / BISTConfigWordByteSize
	return (packets & BISTConfigPacketsMask) | words<<BISTConfigPktSizeShift
}

// DecodeBISTConfig unpacks an SRBISTConfig value into a packet count and a
// packet size in bytes.
func DecodeBISTConfig(v uint32) (packets, packetByteSize uint32) {
	packets = v & BISTConfigPacketsMask
	packetByteSize = (v >> BISTConfigPktSizeShift) * BISTConfigWordByteSize

	return packets, packetByteSize
}
