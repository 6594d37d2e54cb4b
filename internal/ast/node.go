package ast

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/inoxlang/evalx/internal/scope"
	"github.com/inoxlang/evalx/internal/sourcecode"
	cmap "github.com/orcaman/concurrent-map/v2"
)

type NodeSpan = sourcecode.NodeSpan

type Flags uint32

const (
	FLAG_LITERAL Flags = 1 << iota
	FLAG_IDENTIFIER
	FLAG_OPERATOR
	FLAG_ASSIGNMENT
	FLAG_DEEP_PROPERTY
	FLAG_COLLECTION
	FLAG_STRONG_TYPING
	FLAG_DISCARD
	FLAG_DEOPTIMIZED
	FLAG_NULL_SAFE
	FLAG_END_OF_STATEMENT
	FLAG_NON_EXECUTABLE
	FLAG_METHOD
	FLAG_THIS_REF
	FLAG_INTERPRETED
)

type Node interface {
	Base() *NodeBase
}

type NodeBase struct {
	Span  sourcecode.NodeSpan
	flags atomic.Uint32

	EgressType reflect.Type

	// Literal holds the value of literal nodes, nodes created for interpreted evaluation keep a reference
	// to their parser context in it.
	Literal any

	Accessor AccessorCache

	Next Node
}

func (n *NodeBase) Base() *NodeBase {
	return n
}

func (n *NodeBase) Flags() Flags {
	return Flags(n.flags.Load())
}

func (n *NodeBase) HasFlag(f Flags) bool {
	return Flags(n.flags.Load())&f == f
}

func (n *NodeBase) SetFlag(f Flags) {
	for {
		old := n.flags.Load()
		if n.flags.CompareAndSwap(old, old|uint32(f)) {
			return
		}
	}
}

func (n *NodeBase) ClearFlag(f Flags) {
	for {
		old := n.flags.Load()
		if n.flags.CompareAndSwap(old, old&^uint32(f)) {
			return
		}
	}
}

func (n *NodeBase) IsLiteral() bool {
	return n.HasFlag(FLAG_LITERAL)
}

// An Accessor reads and writes a value located by a property path, an index, a call or a constructor.
type Accessor interface {
	GetValue(ctx, this any, vars scope.Factory) (any, error)
	SetValue(ctx, this any, vars scope.Factory, value any) (any, error)

	// KnownEgressType returns the static type of the values returned by the accessor, nil if unknown.
	KnownEgressType() reflect.Type
}

type AccessorState uint8

const (
	UNCOMPILED AccessorState = iota
	COMPILED
	DEOPTIMIZED
)

func (s AccessorState) String() string {
	switch s {
	case COMPILED:
		return "compiled"
	case DEOPTIMIZED:
		return "deoptimized"
	}
	return "uncompiled"
}

type accessorCell struct {
	state    AccessorState
	accessor Accessor
}

// AccessorCache is the accessor slot of a node. It is read without locking, the transition from
// the specialized accessor to the safe accessor is made while holding the node lock.
type AccessorCache struct {
	cell atomic.Pointer[accessorCell]
	lock sync.Mutex
}

func (c *AccessorCache) Load() (Accessor, AccessorState) {
	cell := c.cell.Load()
	if cell == nil {
		return nil, UNCOMPILED
	}
	return cell.accessor, cell.state
}

// Install sets the accessor of an uncompiled node, if another goroutine won the race its accessor is returned.
func (c *AccessorCache) Install(accessor Accessor) Accessor {
	cell := &accessorCell{state: COMPILED, accessor: accessor}
	if c.cell.CompareAndSwap(nil, cell) {
		return accessor
	}
	return c.cell.Load().accessor
}

// Deoptimize replaces the specialized accessor by the accessor returned by makeSafe. If the node has
// already been deoptimized the existing safe accessor is returned and makeSafe is not called.
func (c *AccessorCache) Deoptimize(makeSafe func() Accessor) Accessor {
	c.lock.Lock()
	defer c.lock.Unlock()

	if cell := c.cell.Load(); cell != nil && cell.state == DEOPTIMIZED {
		return cell.accessor
	}

	safe := makeSafe()
	c.cell.Store(&accessorCell{state: DEOPTIMIZED, accessor: safe})
	return safe
}

func (c *AccessorCache) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.cell.Store(nil)
}

// TypeCache caches one accessor per concrete type, keys are type identifiers.
type TypeCache struct {
	once    sync.Once
	entries cmap.ConcurrentMap[uintptr, Accessor]
}

func (c *TypeCache) init() {
	c.once.Do(func() {
		c.entries = cmap.NewWithCustomShardingFunction[uintptr, Accessor](func(key uintptr) uint32 {
			return uint32(key>>4) ^ uint32(key>>32)
		})
	})
}

func (c *TypeCache) Get(typeID uintptr) (Accessor, bool) {
	c.init()
	return c.entries.Get(typeID)
}

func (c *TypeCache) Set(typeID uintptr, accessor Accessor) {
	c.init()
	c.entries.Set(typeID, accessor)
}

// SetIfAbsent stores accessor if there is no entry for typeID and returns the entry.
func (c *TypeCache) SetIfAbsent(typeID uintptr, accessor Accessor) Accessor {
	c.init()
	if c.entries.SetIfAbsent(typeID, accessor) {
		return accessor
	}
	existing, _ := c.entries.Get(typeID)
	return existing
}

func (c *TypeCache) Count() int {
	c.init()
	return c.entries.Count()
}
