package tesswrap

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/johbar/tesseract-purego/pkg/mmappool"
	"github.com/johbar/tesseract-purego/pkg/tessdata"
)

// State is the lifecycle state of a native engine instance.
type State int32

const (
	// StateCreated: the native engine exists but has no language data loaded.
	StateCreated State = iota
	// StateInitialized: language data is loaded; images, variables and recognition are allowed.
	StateInitialized
	// StateDestroyed is terminal. The native handle has been deleted.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

const (
	defaultBufferSize = 4 << 20
	defaultBufferPool = 2
)

var instanceIDs atomic.Uint64

// instance owns exactly one native TessBaseAPI. All fields are guarded by mu,
// and mu is held for the whole of every native call on handle.
type instance struct {
	mu      sync.Mutex
	id      uint64
	backend Backend
	handle  Handle
	state   State
	owners  int

	datapath string
	language string
	oem      OcrEngineMode

	// vars holds every value set since Init, baseline the values at the last checkpoint
	// and prior the values changed variables had before, for Restore.
	vars     map[string]string
	baseline map[string]string
	prior    map[string]priorValue
	basePSM  PageSegMode

	hasImage   bool
	recognized bool
	imgWidth   int
	imgHeight  int
	// image is the copy the native engine reads from; off-heap when the pool could map it
	image    []byte
	imagePin *runtime.Pinner

	iters map[liveIterator]struct{}

	pool          *mmappool.Mempool
	ownsPool      bool
	maxImageBytes int
	log           *slog.Logger
}

// Engine is a handle to a native Tesseract engine.
//
// An Engine and its clones (see [Engine.Clone]) share one native instance.
// Every method locks the instance for the duration of that single call, so calls
// from different goroutines never overlap and complete in lock acquisition order.
// Configuration (variables, page segmentation mode, language) is shared: a variable
// set through one clone is visible through all of them. For independent instances
// that recognize in parallel use [github.com/johbar/tesseract-purego/pkg/tesspool].
//
// Close must be called on every clone; the native instance is destroyed exactly
// once, when the last one is closed. An Engine that becomes unreachable without
// being closed releases its share through a runtime cleanup.
type Engine struct {
	ref     *owner
	cleanup runtime.Cleanup
}

// owner is one logical owner of an instance. It is separate from Engine so
// the runtime cleanup does not keep the Engine reachable.
type owner struct {
	in     *instance
	closed atomic.Bool
}

func (o *owner) release() error {
	if !o.closed.CompareAndSwap(false, true) {
		return nil
	}
	return o.in.release()
}

type options struct {
	log           *slog.Logger
	pool          *mmappool.Mempool
	maxImageBytes int
}

// Option configures [New].
type Option func(*options)

// WithLogger sets the logger used for lifecycle events. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithBufferPool makes the engine copy images into buffers from p, which may be shared by many engines.
// By default every native instance maps its own small pool.
func WithBufferPool(p *mmappool.Mempool) Option {
	return func(o *options) {
		o.pool = p
	}
}

// WithMaxImageBytes rejects images whose BytesPerLine*Height exceeds n. Zero means no limit.
func WithMaxImageBytes(n int) Option {
	return func(o *options) {
		o.maxImageBytes = n
	}
}

// New creates a native engine in [StateCreated]. Call [Engine.Init] before using it.
func New(b Backend, opts ...Option) (*Engine, error) {
	const op = "New"
	if b == nil {
		return nil, opError(op, ErrEngineCreationFailed, "no backend")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.New(slog.DiscardHandler)
	}
	in := &instance{
		id:            instanceIDs.Add(1),
		backend:       b,
		owners:        1,
		iters:         make(map[liveIterator]struct{}),
		pool:          o.pool,
		maxImageBytes: o.maxImageBytes,
	}
	in.log = o.log.With("engine", in.id)
	err := in.native(op, func() {
		in.handle = b.Create()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineCreationFailed, err)
	}
	if in.handle == 0 {
		return nil, opError(op, ErrEngineCreationFailed, "TessBaseAPICreate returned NULL")
	}
	if in.pool == nil {
		in.pool = mmappool.New(defaultBufferSize, defaultBufferPool, o.log)
		in.ownsPool = true
	}
	in.log.Debug("Engine created")
	return newEngine(in), nil
}

func newEngine(in *instance) *Engine {
	e := &Engine{ref: &owner{in: in}}
	e.cleanup = runtime.AddCleanup(e, func(o *owner) {
		if err := o.release(); err != nil {
			o.in.log.Error("Releasing leaked engine failed", "err", err)
		}
	}, e.ref)
	return e
}

// Clone returns a new handle to the same native instance. It does not re-run initialization.
// The clone must be closed independently.
func (e *Engine) Clone() (*Engine, error) {
	in, err := e.acquire("Clone", false)
	if err != nil {
		return nil, err
	}
	in.owners++
	in.mu.Unlock()
	return newEngine(in), nil
}

// Close releases this handle. The native instance is destroyed when the last handle is closed.
// Closing a handle twice is a no-op.
func (e *Engine) Close() error {
	if e == nil || e.ref == nil {
		return nil
	}
	e.cleanup.Stop()
	return e.ref.release()
}

// State reports the lifecycle state of the shared native instance, or
// [StateDestroyed] if this handle has been closed.
func (e *Engine) State() State {
	if e == nil || e.ref == nil || e.ref.closed.Load() {
		return StateDestroyed
	}
	in := e.ref.in
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// Owners reports how many open handles share the native instance.
func (e *Engine) Owners() int {
	if e == nil || e.ref == nil || e.ref.closed.Load() {
		return 0
	}
	in := e.ref.in
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.owners
}

// acquire locks the instance for one call and checks the lifecycle state before
// anything reaches the native layer. On success the caller must unlock in.mu.
func (e *Engine) acquire(op string, needInit bool) (*instance, error) {
	if e == nil || e.ref == nil || e.ref.closed.Load() {
		return nil, opError(op, ErrEngineClosed, "")
	}
	in := e.ref.in
	in.mu.Lock()
	switch {
	case in.state == StateDestroyed:
		in.mu.Unlock()
		return nil, opError(op, ErrEngineClosed, "")
	case needInit && in.state != StateInitialized:
		in.mu.Unlock()
		return nil, opError(op, ErrNotInitialized, "call Init first")
	}
	return in, nil
}

// native runs one boundary call and turns a panic of the backend into ErrNativeCall.
func (in *instance) native(op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			in.log.Error("Native call panicked", "op", op, "panic", r)
			err = opError(op, ErrNativeCall, "%v", r)
		}
	}()
	fn()
	return nil
}

func (in *instance) release() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.owners--
	if in.owners > 0 {
		in.log.Debug("Engine handle released", "owners", in.owners)
		return nil
	}
	return in.destroyLocked()
}

func (in *instance) destroyLocked() error {
	if in.state == StateDestroyed {
		return nil
	}
	in.closeIteratorsLocked(ErrEngineClosed)
	h := in.handle
	in.handle = 0
	in.state = StateDestroyed
	err := in.native("Close", func() {
		in.backend.Delete(h)
	})
	in.dropImageLocked()
	if in.ownsPool {
		in.pool.Free()
	}
	in.log.Debug("Engine destroyed")
	return err
}

// Init loads the model data for language (e.g. "eng" or "deu+eng") from datapath
// using the default engine mode.
func (e *Engine) Init(datapath, language string) error {
	return e.InitWithOEM(datapath, language, OEM_DEFAULT)
}

// InitWithOEM loads model data with the given engine mode. An empty datapath is resolved
// with [tessdata.Resolve]. Missing directories and language files are reported before
// the native engine is asked to load anything. Initializing an initialized engine
// replaces its languages and drops the current image.
func (e *Engine) InitWithOEM(datapath, language string, oem OcrEngineMode) error {
	const op = "Init"
	in, err := e.acquire(op, false)
	if err != nil {
		return err
	}
	defer in.mu.Unlock()
	if language == "" {
		return opError(op, ErrInitializationFailed, "no language given")
	}
	if !oem.Valid() {
		return opError(op, ErrInitializationFailed, "invalid engine mode %d", oem)
	}
	if strings.ContainsRune(datapath, 0) || strings.ContainsRune(language, 0) {
		return opError(op, ErrInitializationFailed, "datapath or language contains a NUL byte")
	}
	if datapath == "" {
		datapath = tessdata.Resolve()
	}
	if err := tessdata.Verify(datapath, language); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrInitializationFailed, err)
	}

	if err := in.resetLocked(op); err != nil {
		return err
	}
	var status int32
	err = in.native(op, func() {
		status = in.backend.Init(in.handle, datapath, language, oem)
	})
	if err != nil {
		in.state = StateCreated
		return fmt.Errorf("%w: %w", ErrInitializationFailed, err)
	}
	if status != 0 {
		in.state = StateCreated
		in.log.Warn("Tesseract could not be initialized", "datapath", datapath, "lang", language, "status", status)
		return opError(op, ErrInitializationFailed, "native status %d for language %q in %s", status, language, datapath)
	}
	in.state = StateInitialized
	in.datapath = datapath
	in.language = language
	in.oem = oem
	in.vars = make(map[string]string)
	if err := in.checkpointLocked(op); err != nil {
		return err
	}
	in.log.Debug("Engine initialized", "datapath", datapath, "lang", language, "oem", oem)
	return nil
}

// End unloads the model data. The engine returns to [StateCreated] and must be initialized again.
func (e *Engine) End() error {
	const op = "End"
	in, err := e.acquire(op, false)
	if err != nil {
		return err
	}
	defer in.mu.Unlock()
	in.invalidateLocked()
	err = in.native(op, func() {
		in.backend.End(in.handle)
	})
	in.dropImageLocked()
	in.state = StateCreated
	return err
}

// Clear frees the image and the recognition results but keeps the model data.
func (e *Engine) Clear() error {
	const op = "Clear"
	in, err := e.acquire(op, true)
	if err != nil {
		return err
	}
	defer in.mu.Unlock()
	return in.resetLocked(op)
}

// invalidateLocked discards recognition results and the iterators walking them.
func (in *instance) invalidateLocked() {
	in.closeIteratorsLocked(ErrIteratorInvalidated)
	in.recognized = false
}

// resetLocked invalidates results and, if an image is set, makes the native
// engine forget it before the retained buffer is released.
func (in *instance) resetLocked(op string) error {
	in.invalidateLocked()
	if !in.hasImage {
		return nil
	}
	err := in.native(op, func() {
		in.backend.Clear(in.handle)
	})
	in.dropImageLocked()
	return err
}

func (in *instance) dropImageLocked() {
	in.hasImage = false
	in.imgWidth, in.imgHeight = 0, 0
	in.releaseBufferLocked(in.image, in.imagePin)
	in.image, in.imagePin = nil, nil
}

func (in *instance) releaseBufferLocked(buf []byte, pin *runtime.Pinner) {
	if pin != nil {
		pin.Unpin()
		return
	}
	if buf != nil {
		in.pool.Put(buf)
	}
}

// liveIterator is a ResultIterator or PageIterator still holding a native iterator.
type liveIterator interface {
	finishLocked(err error)
}

// closeIteratorsLocked deletes every live native iterator, before the results they point into go away.
func (in *instance) closeIteratorsLocked(reason error) {
	for it := range in.iters {
		it.finishLocked(opError("iterator", reason, ""))
	}
}
