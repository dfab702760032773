// Package eventpump drains the DRM and udev monitor file descriptors and
// turns page-flip completions and hotplug notifications into an ordered
// stream of typed events, mirroring the poll-then-decode shape of
// drm.c's event loop and queue.Runner's ctx/cancel/logger-driven goroutine
// loop.
package eventpump

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tmarsh-oss/go-drmoutput/internal/constants"
	"github.com/tmarsh-oss/go-drmoutput/internal/logging"
	"github.com/tmarsh-oss/go-drmoutput/internal/uapi"
)

// PageFlipFunc is called synchronously, from the pump's own goroutine, the
// moment a FLIP_COMPLETE record is decoded for a CRTC the caller has
// registered — before the corresponding render Event is queued. Callers
// wire this to Output.HandlePageFlip.
type PageFlipFunc func(connectorID uint32)

// RescanFunc is called after a udev "change" event for a DRM-subsystem
// device is observed and HotplugDebounce has elapsed with no further such
// events. The event's device path is not compared with the pump's own GPU,
// so a change on any DRM device schedules a rescan. Callers wire this to a
// re-inventory (C2) + matcher (C3) pass and return the connector ids it
// added and removed, which the pump enqueues as the matching
// display-added/display-removed events.
type RescanFunc func() (added, removed []uint32)

// Pump polls the DRM fd and a udev monitor fd in non-blocking mode each
// tick, decoding ready events into a max-heap that Output-facing
// consumers drain with GetEvent.
type Pump struct {
	mu   sync.Mutex
	heap eventHeap

	drmFD  int
	udevFD int

	crtcToConnector map[uint32]uint32

	onPageFlip PageFlipFunc
	onRescan   RescanFunc

	logger *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	debounce     time.Duration
	pendingRescan bool
	rescanTimer  *time.Timer
}

// New constructs a Pump. udevFD may be -1 if no udev monitor is available
// (hotplug detection is then the caller's responsibility via periodic
// re-scan). onPageFlip/onRescan may be nil.
func New(ctx context.Context, drmFD, udevFD int, logger *logging.Logger, onPageFlip PageFlipFunc, onRescan RescanFunc) *Pump {
	if logger == nil {
		logger = logging.Default()
	}
	cctx, cancel := context.WithCancel(ctx)
	return &Pump{
		drmFD:           drmFD,
		udevFD:          udevFD,
		crtcToConnector: make(map[uint32]uint32),
		onPageFlip:      onPageFlip,
		onRescan:        onRescan,
		logger:          logger,
		ctx:             cctx,
		cancel:          cancel,
		done:            make(chan struct{}),
		debounce:        constants.HotplugDebounce,
	}
}

// RegisterCRTC records which connector a CRTC is currently driving, so a
// decoded FLIP_COMPLETE (keyed by CrtcID) can be translated into the
// connector id Output.HandlePageFlip-equivalent callers expect.
func (p *Pump) RegisterCRTC(crtcID, connectorID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.crtcToConnector[crtcID] = connectorID
}

// UnregisterCRTC drops a CRTC's connector mapping, e.g. on disconnect.
func (p *Pump) UnregisterCRTC(crtcID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.crtcToConnector, crtcID)
}

// Start launches the pump's background poll loop.
func (p *Pump) Start() {
	go p.loop()
}

// Stop cancels the poll loop and waits for it to exit.
func (p *Pump) Stop() {
	p.cancel()
	<-p.done
}

func (p *Pump) loop() {
	defer close(p.done)
	ticker := time.NewTicker(constants.PollIdleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.Drain()
		}
	}
}

// Drain polls both file descriptors in non-blocking mode and decodes every
// ready record, looping until poll reports nothing left — mirroring
// wlr_drm_get_event's "while (poll(fds, 2, 0) > 0)" shape.
func (p *Pump) Drain() {
	for {
		fds := p.pollFds()
		if len(fds) == 0 {
			return
		}
		n, err := unix.Poll(fds, 0)
		if err != nil || n <= 0 {
			return
		}
		progressed := false
		for _, fd := range fds {
			if fd.Revents&unix.POLLIN == 0 {
				continue
			}
			progressed = true
			if int(fd.Fd) == p.drmFD {
				p.handleDRMEvents()
			} else if int(fd.Fd) == p.udevFD {
				p.handleUdevEvent()
			}
		}
		if !progressed {
			return
		}
	}
}

func (p *Pump) pollFds() []unix.PollFd {
	var fds []unix.PollFd
	if p.drmFD >= 0 {
		fds = append(fds, unix.PollFd{Fd: int32(p.drmFD), Events: unix.POLLIN})
	}
	if p.udevFD >= 0 {
		fds = append(fds, unix.PollFd{Fd: int32(p.udevFD), Events: unix.POLLIN})
	}
	return fds
}

// drmEventReadBuf is sized generously for a batch of vblank/flip records;
// drm.c's equivalent reads in a loop off a blocking fd, but a non-blocking
// single read draining whatever the kernel has queued is equivalent here.
const drmEventReadBuf = 4096

func (p *Pump) handleDRMEvents() {
	buf := make([]byte, drmEventReadBuf)
	n, err := unix.Read(p.drmFD, buf)
	if err != nil || n <= 0 {
		return
	}
	buf = buf[:n]

	headerSize := int(unsafe.Sizeof(uapi.DrmEvent{}))
	for len(buf) >= headerSize {
		var hdr uapi.DrmEvent
		hdr.Type = byteOrder.Uint32(buf[0:4])
		hdr.Length = byteOrder.Uint32(buf[4:8])
		if hdr.Length < uint32(headerSize) || int(hdr.Length) > len(buf) {
			return
		}
		record := buf[:hdr.Length]
		p.decodeDRMEvent(hdr, record)
		buf = buf[hdr.Length:]
	}
}

func (p *Pump) decodeDRMEvent(hdr uapi.DrmEvent, record []byte) {
	switch hdr.Type {
	case uapi.EventFlipComplete, uapi.EventVblank:
		vblankHeaderSize := int(unsafe.Sizeof(uapi.DrmEventVblank{}))
		if len(record) < vblankHeaderSize {
			return
		}
		crtcID := byteOrder.Uint32(record[vblankHeaderSize-4 : vblankHeaderSize])
		p.emitPageFlip(crtcID)
	default:
		// Unrecognised event types (e.g. CRTC sequence) are not core to
		// the output pipeline; ignored rather than treated as an error.
	}
}

func (p *Pump) emitPageFlip(crtcID uint32) {
	p.mu.Lock()
	connectorID, ok := p.crtcToConnector[crtcID]
	p.mu.Unlock()
	if !ok {
		p.logger.Debugf("eventpump: flip-complete for unregistered crtc %d", crtcID)
		return
	}

	if p.onPageFlip != nil {
		p.onPageFlip(connectorID)
	}

	if err := p.pushEvent(Event{Kind: KindRender, ConnectorID: connectorID}); err != nil {
		// Allocation failure silently drops the event (spec §4.9): a
		// later frame will produce another render event.
		p.logger.Warnf("eventpump: dropping render event for connector %d: %v", connectorID, err)
	}
}

func (p *Pump) handleUdevEvent() {
	action, devnode, err := readUdevEvent(p.udevFD)
	if err != nil {
		p.logger.Debugf("eventpump: udev read failed: %v", err)
		return
	}
	if action != "change" || devnode == "" {
		return
	}
	p.scheduleRescan()
}

// scheduleRescan coalesces a burst of udev "change" events into a single
// re-inventory, HotplugDebounce after the last one observed.
func (p *Pump) scheduleRescan() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rescanTimer != nil {
		p.rescanTimer.Stop()
	}
	p.rescanTimer = time.AfterFunc(p.debounce, p.runRescan)
}

func (p *Pump) runRescan() {
	if p.onRescan == nil {
		return
	}
	added, removed := p.onRescan()
	for _, id := range removed {
		if err := p.pushEvent(Event{Kind: KindDisplayRemoved, ConnectorID: id}); err != nil {
			p.logger.Warnf("eventpump: dropping display-removed event for connector %d: %v", id, err)
		}
	}
	for _, id := range added {
		if err := p.pushEvent(Event{Kind: KindDisplayAdded, ConnectorID: id}); err != nil {
			p.logger.Warnf("eventpump: dropping display-added event for connector %d: %v", id, err)
		}
	}
}

func (p *Pump) pushEvent(ev Event) (err error) {
	if ev.Kind == KindNone {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eventpump: allocation failure pushing event: %v", r)
		}
	}()
	p.mu.Lock()
	defer p.mu.Unlock()
	heap.Push(&p.heap, ev)
	return nil
}

// GetEvent pops the highest-priority queued event. It returns false when
// the heap is empty, matching get_event's contract: the caller may then
// sleep or do other work.
func (p *Pump) GetEvent() (Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.heap.Len() == 0 {
		return Event{Kind: KindNone}, false
	}
	ev := heap.Pop(&p.heap).(Event)
	return ev, true
}

// Pending reports how many events are currently queued.
func (p *Pump) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heap.Len()
}
