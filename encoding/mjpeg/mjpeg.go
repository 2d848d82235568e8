package mjpeg

import (
	"bytes"
	"image/jpeg"
	"net/http"
	"sync"

	"github.com/gorgonia/nnviz/encoding/frame"
	"github.com/gorgonia/nnviz/network"
	"github.com/mattn/go-mjpeg"
	"github.com/pkg/errors"
)

var bufPool = &sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

func borrowBuf() *bytes.Buffer { return bufPool.Get().(*bytes.Buffer) }

func returnBuf(b *bytes.Buffer) {
	b.Reset()
	bufPool.Put(b)
}

// Encoder streams every state change as a JPEG frame of an MJPEG stream. It implements nnviz.OutputEncoder.
type Encoder struct {
	sync.Mutex
	r      *frame.Renderer
	stream *mjpeg.Stream
	opts   *jpeg.Options
}

func (enc *Encoder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	enc.stream.ServeHTTP(w, r)
}

// NewEncoder creates an Encoder.
func NewEncoder() *Encoder {
	return &Encoder{
		r:      frame.NewRenderer(),
		stream: mjpeg.NewStream(),
		opts:   &jpeg.Options{Quality: 90},
	}
}

// Encode a state.
func (enc *Encoder) Encode(ms network.MetaState) error {
	enc.Lock()
	im := enc.r.Render(ms)
	enc.Unlock()

	b := borrowBuf()
	defer returnBuf(b)
	if err := jpeg.Encode(b, im, enc.opts); err != nil {
		return errors.Wrap(err, "Unable to encode frame")
	}
	// the stream hands the slice to its watchers as is
	bs := make([]byte, b.Len())
	copy(bs, b.Bytes())
	return errors.WithStack(enc.stream.Update(bs))
}

func (enc *Encoder) Flush() error { return nil }

// Close ends the stream.
func (enc *Encoder) Close() error { return errors.WithStack(enc.stream.Close()) }
