package busif

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	log "gopkg.in/inconshreveable/log15.v2"
)

var logger log.Logger

// InitializeLogger wires the package logger, following the ambient
// convention used across this module.
func InitializeLogger(parent log.Logger) { logger = parent.New("module", "busif") }

// frameSize is the fixed message size of the hobby digital-command-system
// bus. Every command this adapter sends, and every event it
// receives, is exactly this many bytes; a read that returns more than one
// frameSize worth of bytes has coalesced multiple frames and must be split.
const frameSize = 13

const (
	opPower          byte = 0x01
	opTurnoutState   byte = 0x02
	opLocoSpeed      byte = 0x03
	opLocoDirection  byte = 0x04
	opLocoFunction   byte = 0x05
	opQueryLocos     byte = 0x06
	opQueryDirection byte = 0x07

	evtFeedback  byte = 0x81
	evtSpeed     byte = 0x82
	evtDirection byte = 0x83
	evtLocoList  byte = 0x84
)

var turnoutStateCode = map[string]byte{
	"normal":   0,
	"reversed": 1,
	"left":     2,
	"right":    3,
}

// FrameAdapter implements CommandInterface over a 13-byte fixed-frame
// transport (io.ReadWriteCloser — a serial port, TCP socket, or any stream the
// caller already opened), honoring the abstract contract.
type FrameAdapter struct {
	conn io.ReadWriteCloser

	mu    sync.Mutex
	cbs   []Callback
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewFrameAdapter wraps an already-open stream. Connect starts the
// background reader; Disconnect stops it and closes the stream.
func NewFrameAdapter(conn io.ReadWriteCloser) *FrameAdapter {
	return &FrameAdapter{conn: conn}
}

// Connect starts the background frame reader goroutine.
func (a *FrameAdapter) Connect() error {
	a.mu.Lock()
	if a.done != nil {
		a.mu.Unlock()
		return fmt.Errorf("busif: already connected")
	}
	a.done = make(chan struct{})
	a.mu.Unlock()

	a.wg.Add(1)
	go a.readLoop()
	return nil
}

// Disconnect stops the reader and closes the underlying stream.
func (a *FrameAdapter) Disconnect() error {
	a.mu.Lock()
	if a.done == nil {
		a.mu.Unlock()
		return nil
	}
	close(a.done)
	a.mu.Unlock()

	err := a.conn.Close()
	a.wg.Wait()
	return err
}

// Register adds a callback invoked for every decoded bus event, from the
// reader goroutine.
func (a *FrameAdapter) Register(cb Callback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cbs = append(a.cbs, cb)
}

// Execute encodes cmd into one 13-byte frame and writes it.
func (a *FrameAdapter) Execute(cmd Command) error {
	frame := make([]byte, frameSize)
	switch c := cmd.(type) {
	case PowerCommand:
		frame[0] = opPower
		if c.On {
			frame[1] = 1
		}
	case TurnoutSetStateCommand:
		frame[0] = opTurnoutState
		state, ok := turnoutStateCode[c.State]
		if !ok {
			return fmt.Errorf("busif: unknown turnout state %q", c.State)
		}
		frame[1] = state
		if c.Power {
			frame[2] = 1
		}
		for i, addr := range c.Addresses {
			if i >= 4 {
				break
			}
			binary.BigEndian.PutUint16(frame[3+i*2:], uint16(addr))
		}
	case LocomotiveSetSpeedCommand:
		frame[0] = opLocoSpeed
		binary.BigEndian.PutUint16(frame[1:], uint16(c.Address))
		frame[3] = byte(c.Step)
	case LocomotiveSetDirectionCommand:
		frame[0] = opLocoDirection
		binary.BigEndian.PutUint16(frame[1:], uint16(c.Address))
	case LocomotiveFunctionCommand:
		frame[0] = opLocoFunction
		binary.BigEndian.PutUint16(frame[1:], uint16(c.Address))
		frame[3] = byte(c.Index)
		if c.Value {
			frame[4] = 1
		}
	case QueryLocomotivesCommand:
		frame[0] = opQueryLocos
	case QueryDirectionCommand:
		frame[0] = opQueryDirection
		binary.BigEndian.PutUint16(frame[1:], uint16(c.Address))
	default:
		return fmt.Errorf("busif: unsupported command %T", cmd)
	}

	_, err := a.conn.Write(frame)
	return err
}

// readLoop pulls bytes off the stream and decodes every complete frameSize
// chunk, handling reads that coalesce more than one frame.
func (a *FrameAdapter) readLoop() {
	defer a.wg.Done()
	r := bufio.NewReaderSize(a.conn, 4*frameSize)
	buf := make([]byte, frameSize)
	for {
		select {
		case <-a.done:
			return
		default:
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			if logger != nil {
				logger.Error("frame read failed", "error", err)
			}
			return
		}
		a.dispatch(buf)
	}
}

func (a *FrameAdapter) dispatch(frame []byte) {
	var ev Event
	switch frame[0] {
	case evtFeedback:
		ev = Event{
			Kind:      EventFeedback,
			DeviceID:  fmt.Sprintf("%d", binary.BigEndian.Uint16(frame[1:])),
			ContactID: int(frame[3]),
			Detected:  frame[4] != 0,
		}
	case evtSpeed:
		ev = Event{
			Kind:    EventSpeed,
			Address: int(binary.BigEndian.Uint16(frame[1:])),
			Step:    int(frame[3]),
		}
	case evtDirection:
		ev = Event{
			Kind:    EventDirection,
			Address: int(binary.BigEndian.Uint16(frame[1:])),
		}
	case evtLocoList:
		count := int(frame[1])
		if count > 5 {
			count = 5
		}
		addrs := make([]int, count)
		for i := 0; i < count; i++ {
			addrs[i] = int(binary.BigEndian.Uint16(frame[2+i*2:]))
		}
		ev = Event{Kind: EventLocomotivesDiscovered, Addresses: addrs}
	default:
		if logger != nil {
			logger.Warn("unrecognized frame opcode", "opcode", frame[0])
		}
		return
	}

	a.mu.Lock()
	cbs := append([]Callback{}, a.cbs...)
	a.mu.Unlock()
	for _, cb := range cbs {
		cb(ev)
	}
}
