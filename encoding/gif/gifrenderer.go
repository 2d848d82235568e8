package gif

import (
	"image"
	"image/gif"
	"io"
	"time"

	"github.com/gorgonia/nnviz/encoding/frame"
	"github.com/gorgonia/nnviz/network"
	"github.com/pkg/errors"
)

// holdDelay is how long the final frame of a finished run stays up, in 1/100s.
const holdDelay = 300

// Encoder accumulates one frame per state change into an animated GIF. It implements nnviz.OutputEncoder.
type Encoder struct {
	io.Writer
	r   *frame.Renderer
	out *gif.GIF

	// frames are only collected while a run is active, plus the one that ends it
	running bool
}

// NewGifEncoder creates an Encoder that writes into w on Flush.
func NewGifEncoder(w io.Writer) *Encoder {
	return &Encoder{
		Writer: w,
		r:      frame.NewRenderer(),
		out:    &gif.GIF{LoopCount: -1},
	}
}

// Encode a state.
func (enc *Encoder) Encode(ms network.MetaState) error {
	idle := ms.Phase() == network.Idle
	if idle && !enc.running {
		return nil
	}
	enc.running = !idle

	im := enc.r.Render(ms)
	delay := int(ms.TickDelay() / (10 * time.Millisecond))
	if idle {
		delay = holdDelay
	}
	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, delay)
	return nil
}

// Frames returns the number of frames collected so far.
func (enc *Encoder) Frames() int { return len(enc.out.Image) }

// Flush writes the gif into the writer
func (enc *Encoder) Flush() error {
	if enc.Writer == nil {
		return errors.New("gif: no writer")
	}
	if len(enc.out.Image) == 0 {
		return errors.New("gif: no frames to write")
	}
	// frames differ in size when the topology changes between runs
	b := image.Rectangle{}
	for _, im := range enc.out.Image {
		b = b.Union(im.Bounds())
	}
	enc.out.Config = image.Config{ColorModel: frame.Palette, Width: b.Dx(), Height: b.Dy()}
	return errors.WithStack(gif.EncodeAll(enc.Writer, enc.out))
}
