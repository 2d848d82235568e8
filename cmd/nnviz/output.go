package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorgonia/nnviz"
	"github.com/gorgonia/nnviz/network"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

type snapshotter interface {
	Snapshot() nnviz.Snapshot
}

// Encoder pushes every state change to every connected browser over a websocket, as a JSON
// snapshot. Text messages from a browser are protocol commands. A renderer reports a finished
// animation with "done <transition>".
type Encoder struct {
	in chan<- string

	sync.Mutex
	clients map[chan []byte]struct{}
}

var upgrader = websocket.Upgrader{} // use default options

func (enc *Encoder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("upgrade:", err)
		return
	}
	defer c.Close()
	snaps := enc.subscribe()
	defer enc.unsubscribe(snaps)

	go func() {
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			for _, line := range strings.Split(string(msg), "\n") {
				select {
				case enc.in <- line:
				case <-r.Context().Done():
					return
				}
			}
		}
	}()

	for {
		var b []byte
		select {
		case b = <-snaps:
		case <-r.Context().Done():
			return
		}
		if err = c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Println("write:", err)
			return
		}
	}
}

// NewEncoder creates an Encoder that forwards browser commands into in.
func NewEncoder(in chan<- string) *Encoder {
	return &Encoder{
		in:      in,
		clients: make(map[chan []byte]struct{}),
	}
}

// subscribe registers a connection. Every snapshot encoded from now on is queued for it.
func (enc *Encoder) subscribe() chan []byte {
	snaps := make(chan []byte, snapQueue)
	enc.Lock()
	enc.clients[snaps] = struct{}{}
	enc.Unlock()
	return snaps
}

func (enc *Encoder) unsubscribe(snaps chan []byte) {
	enc.Lock()
	delete(enc.clients, snaps)
	enc.Unlock()
}

// snapQueue is how many snapshots a connection may fall behind.
const snapQueue = 16

// Encode never blocks. A snapshot is dropped for a browser that does not keep up.
func (enc *Encoder) Encode(ms network.MetaState) error {
	s, ok := ms.(snapshotter)
	if !ok {
		return errors.Errorf("%T cannot be snapshotted", ms)
	}
	b, err := json.Marshal(s.Snapshot())
	if err != nil {
		return errors.WithStack(err)
	}
	enc.Lock()
	defer enc.Unlock()
	for snaps := range enc.clients {
		select {
		case snaps <- b:
		default:
		}
	}
	return nil
}

// Flush ...
func (enc *Encoder) Flush() error { return nil }

// pacer stands in for a renderer: it acknowledges every layer transition once the pacing delay has passed.
type pacer struct {
	in       chan<- string
	last     network.Transition
	running  int32
	finished chan struct{}
}

func newPacer(in chan<- string) *pacer {
	return &pacer{
		in:       in,
		finished: make(chan struct{}, 1),
	}
}

func (p *pacer) Encode(ms network.MetaState) error {
	if ms.Phase() == network.Idle {
		if atomic.SwapInt32(&p.running, 0) == 1 {
			select {
			case p.finished <- struct{}{}:
			default:
			}
		}
		return nil
	}
	atomic.StoreInt32(&p.running, 1)
	t := ms.Transition()
	if t == p.last {
		return nil
	}
	p.last = t
	cmd := fmt.Sprintf("done %d", t)
	time.AfterFunc(ms.TickDelay(), func() { p.in <- cmd })
	return nil
}

func (p *pacer) Flush() error { return nil }

// wait blocks until the current run, if any, has finished or the timeout passes.
func (p *pacer) wait(timeout time.Duration) {
	if atomic.LoadInt32(&p.running) == 0 {
		return
	}
	select {
	case <-p.finished:
	case <-time.After(timeout):
	}
}
