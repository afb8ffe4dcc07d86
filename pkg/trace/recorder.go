package trace

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/golang/glog"
	"github.com/google/uuid"
)

// Recorder writes Events to a stream. It implements firmata.Tracer and
// is safe for concurrent use.
type Recorder struct {
	Session string

	w       io.Writer
	encoder *cbor.Encoder
	lock    sync.Mutex
	failed  bool
	now     func() time.Time
}

// NewRecorder creates a Recorder with a new session id.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{
		Session: uuid.NewString(),
		w:       w,
		encoder: encMode.NewEncoder(w),
		now:     time.Now,
	}
}

// Create opens path for appending and records into it.
func Create(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return NewRecorder(f), nil
}

// TraceRead records bytes read from the device.
func (r *Recorder) TraceRead(data []byte) {
	r.record(DirectionIn, data)
}

// TraceWrite records bytes written to the device.
func (r *Recorder) TraceWrite(data []byte) {
	r.record(DirectionOut, data)
}

func (r *Recorder) record(dir Direction, data []byte) {
	ev := Event{
		Timestamp: r.now(),
		Session:   r.Session,
		Direction: dir,
		Data:      append([]byte(nil), data...),
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.encoder == nil {
		return
	}
	if err := r.encoder.Encode(ev); err != nil && !r.failed {
		r.failed = true
		glog.Warningf("trace: %v", err)
	}
}

// Close stops recording and closes the underlying writer if it's a Closer.
func (r *Recorder) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.encoder == nil {
		return nil
	}
	r.encoder = nil
	if closer, ok := r.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// GlogTracer logs traffic with glog at verbosity 3.
type GlogTracer struct{}

// TraceRead implements firmata.Tracer.
func (GlogTracer) TraceRead(data []byte) {
	if glog.V(3) {
		glog.Infof("RCV % x", data)
	}
}

// TraceWrite implements firmata.Tracer.
func (GlogTracer) TraceWrite(data []byte) {
	if glog.V(3) {
		glog.Infof("SND % x", data)
	}
}

// Tracers fans out to multiple tracers.
type Tracers []interface {
	TraceRead([]byte)
	TraceWrite([]byte)
}

// TraceRead implements firmata.Tracer.
func (t Tracers) TraceRead(data []byte) {
	for _, tracer := range t {
		tracer.TraceRead(data)
	}
}

// TraceWrite implements firmata.Tracer.
func (t Tracers) TraceWrite(data []byte) {
	for _, tracer := range t {
		tracer.TraceWrite(data)
	}
}
