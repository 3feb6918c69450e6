package serial

// Status is the synchronization status seen by a Parser.
type Status int

const (
	// StatusSyncing means the peer's sequence is not known yet.
	StatusSyncing Status = 0
	// StatusReady means frames from the peer are accepted.
	StatusReady Status = 0x01
	// StatusReceiving means a sync exchange or a frame is half way.
	StatusReceiving Status = 0x02
)

// IsReady indicates frames are accepted.
func (s Status) IsReady() bool {
	return s&StatusReady != 0
}

// IsReceiving indicates a sync exchange or a frame is incomplete.
func (s Status) IsReceiving() bool {
	return s&StatusReceiving != 0
}

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusSyncing:
		return "syncing"
	case StatusReady:
		return "ready"
	case StatusReady | StatusReceiving:
		return "receiving"
	default:
		return "syncing+"
	}
}

// Result is the outcome of feeding a Parser.
type Result struct {
	// Sync is the sync byte to send back with the local sequence, or 0.
	Sync   byte
	Status Status
	Frame  *Frame
}

type parseState int

const (
	waitSync parseState = iota
	waitReqSeq
	waitAckSeq
	waitFrameSeq
	waitAckCheck
	waitKind
	waitLen
	waitData
)

// Parser decodes the inbound byte stream one byte at a time.
// The zero value is waiting for the peer to sync.
type Parser struct {
	peerSeq Seq
	state   parseState
	frame   *Frame
	recvLen int
}

// Status gets the current status.
func (p *Parser) Status() Status {
	switch {
	case p.state == waitSync:
		return StatusSyncing
	case p.state == waitFrameSeq:
		return StatusReady
	case p.state > waitFrameSeq:
		return StatusReady | StatusReceiving
	default:
		return StatusSyncing | StatusReceiving
	}
}

// Reset drops any partial frame and requests a sync.
func (p *Parser) Reset() Result {
	p.frame = nil
	return p.result(p.resync())
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) Result {
	return p.result(p.parseByte(b))
}

// Timeout is called when no byte arrived in time. A pending sync
// request is repeated and a partial frame is dropped.
func (p *Parser) Timeout() Result {
	if p.state == waitFrameSeq {
		return p.result(0, nil)
	}
	return p.result(p.resync())
}

func (p *Parser) result(sync byte, frame *Frame) Result {
	return Result{Sync: sync, Status: p.Status(), Frame: frame}
}

func (p *Parser) parseByte(b byte) (byte, *Frame) {
	switch p.state {
	case waitSync:
		switch b {
		case syncREQ:
			p.state = waitReqSeq
		case syncACK:
			p.state = waitAckSeq
		}
	case waitReqSeq:
		if seq := Seq(b); seq.IsValid() {
			p.peerSeq, p.state = seq, waitFrameSeq
			return syncACK, nil
		}
		return p.resync()
	case waitAckSeq:
		if seq := Seq(b); seq.IsValid() {
			p.peerSeq, p.state = seq, waitFrameSeq
			return 0, nil
		}
		return p.resync()
	case waitFrameSeq:
		switch {
		case b == syncREQ:
			p.state = waitReqSeq
		case b == syncACK:
			p.state = waitAckCheck
		case Seq(b) != p.peerSeq:
			return p.resync()
		default:
			p.frame = &Frame{Seq: p.peerSeq}
			p.peerSeq = p.peerSeq.Next()
			p.state = waitKind
		}
	case waitAckCheck:
		if Seq(b) != p.peerSeq {
			return p.resync()
		}
		p.state = waitFrameSeq
	case waitKind:
		p.frame.Kind = b & kindMask
		switch l := int(b>>4) & 7; l {
		case 0:
			return p.frameReady()
		case shortLenLimit:
			p.state = waitLen
		default:
			p.frame.Data, p.recvLen = make([]byte, l), 0
			p.state = waitData
		}
	case waitLen:
		if b > MaxDataLength {
			return p.resync()
		}
		if b == 0 {
			return p.frameReady()
		}
		p.frame.Data, p.recvLen = make([]byte, b), 0
		p.state = waitData
	case waitData:
		p.frame.Data[p.recvLen] = b
		if p.recvLen++; p.recvLen >= len(p.frame.Data) {
			return p.frameReady()
		}
	}
	return 0, nil
}

func (p *Parser) resync() (byte, *Frame) {
	p.state, p.frame = waitSync, nil
	return syncREQ, nil
}

func (p *Parser) frameReady() (byte, *Frame) {
	p.state = waitFrameSeq
	f := p.frame
	p.frame = nil
	return 0, f
}
