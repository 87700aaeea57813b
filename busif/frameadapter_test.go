package busif

import (
	"io"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

// loopback is a minimal io.ReadWriteCloser over an in-memory pipe, letting
// tests write raw frames and read back whatever Execute sends.
type loopback struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	in   *io.PipeReader
	inW  *io.PipeWriter
}

func newLoopback() *loopback {
	pr, pw := io.Pipe()
	ir, iw := io.Pipe()
	return &loopback{r: pr, w: pw, in: ir, inW: iw}
}

func (l *loopback) Read(p []byte) (int, error)  { return l.r.Read(p) }
func (l *loopback) Write(p []byte) (int, error) { return l.inW.Write(p) }
func (l *loopback) Close() error {
	l.r.Close()
	l.w.Close()
	l.in.Close()
	l.inW.Close()
	return nil
}

// injectFrame pushes one frame into the adapter's read side, as if it were
// received from the bus.
func (l *loopback) injectFrame(frame []byte) { l.w.Write(frame) }

// sent reads one frame off the side Execute wrote to.
func (l *loopback) sent() []byte {
	buf := make([]byte, frameSize)
	io.ReadFull(l.in, buf)
	return buf
}

func TestFrameAdapterExecuteEncodesTurnoutCommand(t *testing.T) {
	Convey("Given a connected frame adapter", t, func() {
		lb := newLoopback()
		a := NewFrameAdapter(lb)
		So(a.Connect(), ShouldBeNil)
		defer a.Disconnect()

		Convey("Execute writes one 13-byte frame per command", func() {
			go a.Execute(TurnoutSetStateCommand{Addresses: []int{5}, State: "reversed"})
			frame := lb.sent()
			So(len(frame), ShouldEqual, frameSize)
			So(frame[0], ShouldEqual, opTurnoutState)
			So(frame[1], ShouldEqual, byte(1))
		})

		Convey("an unknown turnout state is rejected", func() {
			err := a.Execute(TurnoutSetStateCommand{Addresses: []int{5}, State: "sideways"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestFrameAdapterDecodesFeedbackEvents(t *testing.T) {
	Convey("Given a connected frame adapter with a registered callback", t, func() {
		lb := newLoopback()
		a := NewFrameAdapter(lb)
		events := make(chan Event, 4)
		a.Register(func(e Event) { events <- e })
		So(a.Connect(), ShouldBeNil)
		defer a.Disconnect()

		Convey("a single injected frame yields one decoded event", func() {
			frame := make([]byte, frameSize)
			frame[0] = evtFeedback
			frame[3] = 7
			frame[4] = 1
			lb.injectFrame(frame)

			select {
			case ev := <-events:
				So(ev.Kind, ShouldEqual, EventFeedback)
				So(ev.ContactID, ShouldEqual, 7)
				So(ev.Detected, ShouldBeTrue)
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for event")
			}
		})

		Convey("a locomotive list frame decodes its addresses", func() {
			frame := make([]byte, frameSize)
			frame[0] = evtLocoList
			frame[1] = 2
			frame[2] = 0x00
			frame[3] = 0x03
			frame[4] = 0x00
			frame[5] = 0x07
			lb.injectFrame(frame)

			select {
			case ev := <-events:
				So(ev.Kind, ShouldEqual, EventLocomotivesDiscovered)
				So(ev.Addresses, ShouldResemble, []int{3, 7})
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for event")
			}
		})

		Convey("two frames coalesced in one write still yield two events", func() {
			frames := make([]byte, frameSize*2)
			frames[0] = evtFeedback
			frames[4] = 1
			frames[frameSize] = evtFeedback
			frames[frameSize+3] = 2

			lb.injectFrame(frames)

			for i := 0; i < 2; i++ {
				select {
				case <-events:
				case <-time.After(time.Second):
					t.Fatal("timed out waiting for event")
				}
			}
		})
	})
}
