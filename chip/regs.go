package chip

// Register offsets (spec §6 — bit-exact, these are the addresses the chip
// actually decodes).
const (
	regCCR    = 0x08
	regMARH   = 0x10
	regMARM   = 0x12
	regMARL   = 0x14
	regOBCR   = 0x20
	regEEPCR  = 0x22
	regMBIR   = 0x24
	regGRR    = 0x26
	regWFCR   = 0x2A
	regPMECR  = 0x2C
	regGSR    = 0x30
	regCIDER  = 0xC0
	regTXCR   = 0x70
	regTXMIR  = 0x78
	regRXCR1  = 0x74
	regRXCR2  = 0x76
	regRXFHSR = 0x7C
	regRXFHBCR = 0x7E
	regTXQCR  = 0x80
	regRXQCR  = 0x82
	regTXFDPR = 0x84
	regRXFDPR = 0x86
	regRXFCTR = 0x9C
	regIER    = 0x90
	regISR    = 0x92
	regMAHTR0 = 0xA0
	regMAHTR1 = 0xA2
	regMAHTR2 = 0xA4
	regMAHTR3 = 0xA6
	regP1CR   = 0xF4
	regP1SR   = 0xF8
	regIACR   = 0xC8
	regIADHR  = 0xD0
	regIADLR  = 0xD2
)

// CIDER: chip identification (spec §6: value 0x887x, mask 0xFFF0).
const (
	ciderIDMask  = 0xFFF0
	ciderIDValue = 0x8870
)

// GRR: global reset register (spec §4.B: kind ∈ {global, qmu_only}).
const (
	grrGlobal = 0 // bit position: global soft reset
	grrQMU    = 1 // bit position: QMU-only soft reset
)

// ResetKind selects which GRR reset bit to pulse.
type ResetKind int

const (
	ResetGlobal ResetKind = iota
	ResetQMUOnly
)

// RXFDPR: the only write-only bit spec-mandated bit-exact (EMS, bit 11
// selects big-endian — spec §4.B, §6).
const (
	rxfdprEMS   = 11
	rxfdprRXFPAI = 9 // RX pointer auto-increment
)

// TXFDPR: TX FIFO data pointer register.
const (
	txfdprTXFPAI = 14 // TX pointer auto-increment
)

// TXCR: transmit control register bits used at init (spec §4.B).
const (
	txcrTXE   = 0 // transmit enable
	txcrTXCE  = 1 // CRC enable
	txcrTXPE  = 2 // pad enable
	txcrTXFCE = 3 // frame check (length field) enable
)

// RXCR1: receive control register 1 bits used at init (spec §4.B).
const (
	rxcr1RXE      = 0 // receive enable
	rxcr1RXAE     = 2 // all-multicast
	rxcr1RXINVF   = 1
	rxcr1RXUE     = 9  // unicast enable (MAC-match)
	rxcr1RXME     = 4  // multicast enable
	rxcr1RXBE     = 5  // broadcast enable
	rxcr1RXFCE    = 6  // flow control enable
	rxcr1RXPAFMA  = 10 // MAC address filtering, perfect match
	rxcr1RXMAFMA  = 11
)

// RXCR2: receive control register 2 bits used at init (spec §4.B).
const (
	rxcr2SSROV  = 0 // single-frame store, release-on-overrun
	rxcr2UDPCE  = 1
	rxcr2TCPCE  = 2
	rxcr2IPCE   = 3
	rxcr2RXIUFCEZ = 4
	rxcr2RXBurstLenShift = 5
	rxcr2RXBurstLenMask  = 0x7
)

// RXQCR: RX queue command register bits (spec §4.B, §4.D).
const (
	rxqcrRRXEF = 0 // release RX error frame (discard)
	rxqcrSDA   = 3 // start DMA access
	rxqcrADRFE = 4 // auto-dequeue RX frame enable
	rxqcrRXFCTE = 5 // RX frame count threshold enable
	rxqcrRXIPHTOE = 6
	rxqcrRXDTTS  = 7
)

// RXQCR: 4-byte header alignment select (2 bits, spec §4.B: "two-dummy-byte
// pre-frame pad").
const (
	rxqcrRXDBCTShift = 8
	rxqcrRXDBCTMask  = 0x3
	rxdbctTwoBytePad = 0x2
)

// TXQCR: TX queue command register bits (spec §4.B, §4.C).
const (
	txqcrMETFE = 0 // manual enqueue TXQ frame enable: kicks transmission
	txqcrTXQMAM = 1
	txqcrAETFE  = 2
)

// TX control word (spec §4.C): control word = TX_IC | (frame_id++ & TX_FID).
const (
	txICBit  = 15 // interrupt-on-completion
	txFIDMask = 0x3F
)

// ISR/IER event bits (spec §4.E, §6), in the ordering the worker must
// observe them (link-change, TX, RX, overrun, link-up).
const (
	irqLCIS = 5  // link change
	irqTXIS = 14 // TX done
	irqRXIS = 13 // RX
	irqRXOIS = 11 // RX overrun
	irqLDIS  = 3  // link-up detect
)

// RX frame header status bits (spec §4.D).
const (
	rxfhsrValid     = 15 // frame-valid bit
	rxfhsrICMP      = 12
	rxfhsrIPErr     = 11
	rxfhsrTCP       = 10
	rxfhsrUDP       = 9
	rxfhsrL4Err     = 1 // L4 checksum error (stand-in bit for UDPFCS/TCPFCS/IPFCS groups)
	rxfhsrBroadcast = 7
	rxfhsrMulticast = 6
	rxfhsrUnicast   = 5
	rxfhsrMII       = 4 // MII error
	rxfhsrTooLong   = 3
	rxfhsrRunt      = 2
	rxfhsrCRC       = 0

	rxfhbcrByteCountMask = 0x0FFF
)

const frameErrorMask = (1 << rxfhsrMII) | (1 << rxfhsrTooLong) | (1 << rxfhsrRunt) | (1 << rxfhsrCRC) | (1 << rxfhsrL4Err)

// P1SR: PHY1 special control/status, link info (spec §4.E worker loop).
const (
	p1srLinkGood = 5
	p1srSpeed100 = 10
	p1srDuplexFull = 9
)

// P1CR: duplex/autoneg control.
const (
	p1crForceDuplex  = 5
	p1crRestartAN    = 13
)
