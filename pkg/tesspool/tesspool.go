// Package tesspool keeps a fixed number of independently initialized engines.
//
// Unlike [tesswrap.Engine.Clone], which shares one native instance, every engine
// of a Pool owns its own instance, so borrowers recognize in parallel. A borrowed
// engine belongs to one borrower until it is returned. Variables and the page segmentation
// mode a borrower sets are local to that instance and undone on return, whether the pool
// configures them or not (see [tesswrap.Engine.Restore]). [Pool.SetVariable] changes the
// configuration of every instance from its next borrow on.
package tesspool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	pool "github.com/jolestar/go-commons-pool/v2"
	"github.com/johbar/tesseract-purego/pkg/mmappool"
	"github.com/johbar/tesseract-purego/pkg/tesswrap"
)

var ErrNotPooled = errors.New("tesspool: engine does not belong to this pool")

// Config describes how every engine of a pool is created and configured.
type Config struct {
	Backend   tesswrap.Backend
	Datapath  string
	Languages string
	// OEM defaults to OEM_DEFAULT.
	OEM *tesswrap.OcrEngineMode
	// Variables are set after Init. Borrowers' changes to any variable are undone on return.
	Variables map[string]string
	// PageSegMode is applied with the variables if not nil; otherwise engines keep the mode
	// they had after Init.
	PageSegMode *tesswrap.PageSegMode
	// Size is the maximum number of engines; defaults to 1.
	Size          int
	MaxImageBytes int
	// BufferPool, if set, is shared by all engines for their image copies.
	BufferPool *mmappool.Mempool
	Logger     *slog.Logger
}

type settings struct {
	gen  uint64
	vars map[string]string
	psm  *tesswrap.PageSegMode
}

// Pool hands out initialized engines.
type Pool struct {
	cfg  Config
	objs *pool.ObjectPool
	log  *slog.Logger

	mu      sync.Mutex
	current settings
	applied map[*tesswrap.Engine]uint64
}

// New creates the pool and one engine, so an unusable configuration is reported immediately.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("%w: no backend", tesswrap.ErrEngineCreationFailed)
	}
	if cfg.Size < 1 {
		cfg.Size = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.OEM == nil {
		oem := tesswrap.OEM_DEFAULT
		cfg.OEM = &oem
	}
	p := &Pool{
		cfg: cfg,
		log: cfg.Logger.With("pool", cfg.Languages),
		current: settings{
			gen:  1,
			vars: maps.Clone(cfg.Variables),
			psm:  cfg.PageSegMode,
		},
		applied: make(map[*tesswrap.Engine]uint64),
	}
	pc := pool.NewDefaultPoolConfig()
	pc.MaxTotal = cfg.Size
	pc.MaxIdle = cfg.Size
	pc.BlockWhenExhausted = true
	pc.TestOnBorrow = true
	p.objs = pool.NewObjectPool(ctx, (*factory)(p), pc)
	if err := p.objs.AddObject(ctx); err != nil {
		p.objs.Close(ctx)
		return nil, err
	}
	p.log.Debug("Engine pool created", "size", cfg.Size)
	return p, nil
}

// Get borrows an engine, waiting until one is free or ctx is done.
// The engine must be given back with [Pool.Put] or [Pool.Invalidate].
func (p *Pool) Get(ctx context.Context) (*tesswrap.Engine, error) {
	obj, err := p.objs.BorrowObject(ctx)
	if err != nil {
		return nil, fmt.Errorf("borrowing engine: %w", err)
	}
	return obj.(*tesswrap.Engine), nil
}

// Put returns an engine. Its image is cleared and its configuration restored.
func (p *Pool) Put(ctx context.Context, e *tesswrap.Engine) error {
	if err := p.objs.ReturnObject(ctx, e); err != nil {
		return fmt.Errorf("%w: %w", ErrNotPooled, err)
	}
	return nil
}

// Invalidate destroys a borrowed engine instead of returning it.
func (p *Pool) Invalidate(ctx context.Context, e *tesswrap.Engine) error {
	return p.objs.InvalidateObject(ctx, e)
}

// Do runs fn with a borrowed engine. An engine whose backend panicked is destroyed
// rather than returned.
func (p *Pool) Do(ctx context.Context, fn func(*tesswrap.Engine) error) error {
	e, err := p.Get(ctx)
	if err != nil {
		return err
	}
	ferr := fn(e)
	if errors.Is(ferr, tesswrap.ErrNativeCall) {
		p.log.Warn("Discarding engine after native failure", "err", ferr)
		return errors.Join(ferr, p.Invalidate(ctx, e))
	}
	// a timed-out borrower may still have a recognition running; Put waits for it
	return errors.Join(ferr, p.Put(context.WithoutCancel(ctx), e))
}

// SetVariable changes the configuration of all engines. Idle engines pick the change up
// when they are next borrowed; borrowed ones when they are returned and borrowed again.
// The variable is checked against a borrowed engine first.
func (p *Pool) SetVariable(ctx context.Context, name, value string) error {
	e, err := p.Get(ctx)
	if err != nil {
		return err
	}
	defer p.Put(context.WithoutCancel(ctx), e)
	if err := e.SetVariable(name, value); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current.vars == nil {
		p.current.vars = make(map[string]string)
	}
	vars := maps.Clone(p.current.vars)
	vars[name] = value
	p.current = settings{gen: p.current.gen + 1, vars: vars, psm: p.current.psm}
	return nil
}

// Variables returns a copy of the configured variables.
func (p *Pool) Variables() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.current.vars)
}

// Stats describes the pool's occupancy.
type Stats struct {
	Size      int `json:"size"`
	Active    int `json:"active"`
	Idle      int `json:"idle"`
	Destroyed int `json:"destroyed"`
}

func (p *Pool) Stats() Stats {
	return Stats{
		Size:      p.cfg.Size,
		Active:    p.objs.GetNumActive(),
		Idle:      p.objs.GetNumIdle(),
		Destroyed: p.objs.GetDestroyedCount(),
	}
}

// Close destroys idle engines. Engines still borrowed are destroyed when returned.
func (p *Pool) Close(ctx context.Context) {
	p.objs.Close(ctx)
}

// sync brings e to the current configuration and makes that its checkpoint,
// unless it already is at the current generation.
func (p *Pool) sync(e *tesswrap.Engine) error {
	p.mu.Lock()
	cur := p.current
	applied := p.applied[e]
	p.mu.Unlock()
	if applied == cur.gen {
		return nil
	}
	if err := e.SetVariables(cur.vars); err != nil {
		return err
	}
	if cur.psm != nil {
		if err := e.SetPageSegMode(*cur.psm); err != nil {
			return err
		}
	}
	if err := e.Checkpoint(); err != nil {
		return err
	}
	p.mu.Lock()
	p.applied[e] = cur.gen
	p.mu.Unlock()
	return nil
}

// factory implements pool.PooledObjectFactory.
type factory Pool

func (f *factory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	p := (*Pool)(f)
	opts := []tesswrap.Option{tesswrap.WithLogger(p.cfg.Logger), tesswrap.WithMaxImageBytes(p.cfg.MaxImageBytes)}
	if p.cfg.BufferPool != nil {
		opts = append(opts, tesswrap.WithBufferPool(p.cfg.BufferPool))
	}
	e, err := tesswrap.New(p.cfg.Backend, opts...)
	if err != nil {
		return nil, err
	}
	if err := e.InitWithOEM(p.cfg.Datapath, p.cfg.Languages, *p.cfg.OEM); err != nil {
		e.Close()
		return nil, err
	}
	if err := p.sync(e); err != nil {
		e.Close()
		return nil, err
	}
	p.log.Debug("Pooled engine created")
	return pool.NewPooledObject(e), nil
}

func (f *factory) DestroyObject(ctx context.Context, obj *pool.PooledObject) error {
	p := (*Pool)(f)
	e := obj.Object.(*tesswrap.Engine)
	p.mu.Lock()
	delete(p.applied, e)
	p.mu.Unlock()
	p.log.Debug("Pooled engine destroyed")
	return e.Close()
}

func (f *factory) ValidateObject(ctx context.Context, obj *pool.PooledObject) bool {
	return obj.Object.(*tesswrap.Engine).State() == tesswrap.StateInitialized
}

func (f *factory) ActivateObject(ctx context.Context, obj *pool.PooledObject) error {
	return (*Pool)(f).sync(obj.Object.(*tesswrap.Engine))
}

func (f *factory) PassivateObject(ctx context.Context, obj *pool.PooledObject) error {
	e := obj.Object.(*tesswrap.Engine)
	if err := e.Clear(); err != nil {
		return err
	}
	// whatever the borrower changed goes, including variables the pool never configured
	if err := e.Restore(); err != nil {
		return err
	}
	return (*Pool)(f).sync(e)
}
