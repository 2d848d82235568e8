package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorgonia/nnviz"
	"github.com/gorgonia/nnviz/encoding/gif"
	"github.com/gorgonia/nnviz/encoding/mjpeg"
	"github.com/gorgonia/nnviz/engine"
	"github.com/gorgonia/nnviz/protocol"
)

const version = "0.1.0"

var (
	name       = flag.String("name", "nnviz", "name of the network, shown in captions")
	epochs     = flag.Int("epochs", 10, "maximum epochs of a run")
	lr         = flag.Float64("lr", 0.1, "learning rate")
	target     = flag.Float64("target", 1, "target output")
	fanout     = flag.String("fanout", "replicate", "what a layer hands forward: replicate or collapse")
	delay      = flag.Duration("delay", nnviz.DefaultTickDelay, "pacing of a layer transition")
	auto       = flag.Bool("auto", false, "acknowledge every layer transition after the pacing delay")
	crosscheck = flag.Bool("crosscheck", false, "cross check every forward pass with the expression graph")
	addr       = flag.String("http", "", "serve the websocket at /ws and the mjpeg stream at /stream on this address")
	gifOut     = flag.String("gif", "", "write an animated gif of the runs to this file")
	csvOut     = flag.String("csv", "", "write the training log of the last run to this file")
)

func main() {
	flag.Parse()
	fo, ok := engine.ParseFanOut(*fanout)
	if !ok {
		log.Fatalf("Unknown fan out %q", *fanout)
	}
	d := nnviz.New(nnviz.Options{
		Name: *name,
		Train: engine.Config{
			LearningRate: float32(*lr),
			TargetY:      float32(*target),
			MaxEpochs:    *epochs,
			FanOut:       fo,
		},
		TickDelay:  *delay,
		CrossCheck: *crosscheck,
	})

	e := protocol.New(d, "nnviz", version, nil)
	in, out := e.Start()

	if *gifOut != "" {
		f, err := os.Create(*gifOut)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		d.AddEncoder(gif.NewGifEncoder(f))
	}

	var p *pacer
	if *auto {
		p = newPacer(in)
		d.AddEncoder(p)
	}

	if *addr != "" {
		ws := NewEncoder(in)
		mj := mjpeg.NewEncoder()
		defer mj.Close()
		d.AddEncoder(ws)
		d.AddEncoder(mj)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/ws", ws)
			mux.Handle("/stream", mj)
			log.Printf("http://%v", *addr)
			if err := http.ListenAndServe(*addr, mux); err != nil {
				log.Println(err)
			}
		}()
	}

	finished := make(chan struct{})
	go func() {
		for resp := range out {
			fmt.Print(resp)
		}
		close(finished)
	}()

	lines := make(chan string)
	go scan(lines)
	loop(lines, in, p, finished)
	shutdown(d)
}

// loop forwards lines to the engine until the engine stops, either on "quit" or after
// lines is closed. It never waits on lines once the engine has stopped.
func loop(lines <-chan string, in chan<- string, p *pacer, finished <-chan struct{}) {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				drain(in, p, finished)
				<-finished
				return
			}
			select {
			case in <- line:
			case <-finished:
				return
			}
		case <-finished:
			return
		}
	}
}

// scan sends every line of stdin to lines and closes it at EOF.
func scan(lines chan<- string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		log.Println(err)
	}
	close(lines)
}

// drain lets a paced run finish after stdin is exhausted, then quits the engine.
func drain(in chan<- string, p *pacer, finished <-chan struct{}) {
	if p != nil {
		// the engine only takes a line once it is done with the previous one
		select {
		case in <- "":
		case <-finished:
			return
		}
		p.wait(time.Duration(*epochs) * 10 * nnviz.MaxTickDelay)
	}
	select {
	case in <- "quit":
	case <-finished:
	}
}

// shutdown runs after the protocol engine has stopped, so d is no longer shared.
func shutdown(d *nnviz.Driver) {
	if *csvOut != "" {
		if err := d.Dump(*csvOut); err != nil {
			log.Printf("%+v", err)
		}
	}
	if err := d.Flush(); err != nil {
		log.Printf("%+v", err)
	}
}
