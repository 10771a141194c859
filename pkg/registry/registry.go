package registry

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MultiDragon/libpuns/pkg/wire"
)

// NodeFactory builds a Node for an object addressed by oid once its
// class number has been resolved against the registry. Server and
// client code bind their own factories per class number via
// Registry.BindServerClass / BindClientClass.
type NodeFactory func(director Director, oid wire.ObjectID, def *ClassDef) *Node

// Registry is the process-wide, write-once table of class definitions.
// Both directors build one at startup from identical Configure calls;
// §8's signature-match invariant depends on them producing the same
// bytes independent of call order, which is why Signature sorts by
// class number rather than trusting map iteration or registration
// order.
type Registry struct {
	mu      sync.RWMutex
	classes map[uint16]*ClassDef
	server  map[uint16]NodeFactory
	client  map[uint16]NodeFactory
	frozen  bool
}

// New returns an empty, mutable Registry.
func New() *Registry {
	return &Registry{
		classes: make(map[uint16]*ClassDef),
		server:  make(map[uint16]NodeFactory),
		client:  make(map[uint16]NodeFactory),
	}
}

// Configure registers class classNumber with the given fields, in
// order. If extends names one or more already-configured classes,
// their full field lists are prepended, in the order given, before
// fields — matching the flattening-by-reference MsgRegistry.configure
// performs instead of a runtime MRO walk. A class number may only be
// configured once.
func (r *Registry) Configure(classNumber uint16, fields []FieldDef, extends ...uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("registry: Configure(%d) called after Freeze", classNumber)
	}
	if _, exists := r.classes[classNumber]; exists {
		return fmt.Errorf("registry: class %d already configured", classNumber)
	}

	def := newClassDef(classNumber)
	for _, parentNum := range extends {
		parent, ok := r.classes[parentNum]
		if !ok {
			return fmt.Errorf("registry: class %d extends unconfigured class %d", classNumber, parentNum)
		}
		if err := def.appendFields(parent.fields); err != nil {
			return err
		}
	}
	if err := def.appendFields(fields); err != nil {
		return err
	}

	def.configured = true
	r.classes[classNumber] = def
	return nil
}

// Lookup returns the compiled class definition for classNumber.
func (r *Registry) Lookup(classNumber uint16) (*ClassDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.classes[classNumber]
	return def, ok
}

// Freeze prevents further Configure calls. The CLI's demo registry
// calls it once its class declarations are loaded, so a stray Configure
// later in the process (e.g. from a misordered init) fails loudly
// instead of silently changing the signature mid-run.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Signature computes the SHA-256 digest of the registry's class
// layout: classes sorted by class number, each rendered as
// "<num>: S-<field signatures>", joined by newlines. Client and server
// must produce identical bytes for the handshake's compatibility check
// to pass.
func (r *Registry) Signature() [32]byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nums := make([]uint16, 0, len(r.classes))
	for n := range r.classes {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	lines := make([]string, len(nums))
	for i, n := range nums {
		lines[i] = fmt.Sprintf("%d: %s", n, r.classes[n].signature())
	}
	return sha256.Sum256([]byte(strings.Join(lines, "\n")))
}

// BindServerClass associates classNumber with the factory the server
// uses to instantiate nodes of that class.
func (r *Registry) BindServerClass(classNumber uint16, factory NodeFactory) {
	r.mu.Lock()
	r.server[classNumber] = factory
	r.mu.Unlock()
}

// BindClientClass associates classNumber with the factory the client
// uses to instantiate nodes of that class.
func (r *Registry) BindClientClass(classNumber uint16, factory NodeFactory) {
	r.mu.Lock()
	r.client[classNumber] = factory
	r.mu.Unlock()
}

// NewServerNode instantiates a node of classNumber using the factory
// bound by BindServerClass.
func (r *Registry) NewServerNode(director Director, oid wire.ObjectID, classNumber uint16) (*Node, error) {
	return r.newNode(director, oid, classNumber, r.server)
}

// NewClientNode instantiates a node of classNumber using the factory
// bound by BindClientClass.
func (r *Registry) NewClientNode(director Director, oid wire.ObjectID, classNumber uint16) (*Node, error) {
	return r.newNode(director, oid, classNumber, r.client)
}

func (r *Registry) newNode(director Director, oid wire.ObjectID, classNumber uint16, factories map[uint16]NodeFactory) (*Node, error) {
	r.mu.RLock()
	def, ok := r.classes[classNumber]
	factory, hasFactory := factories[classNumber]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("registry: class %d is not configured", classNumber)
	}
	if !hasFactory {
		return nil, fmt.Errorf("registry: class %d has no bound node factory", classNumber)
	}
	return factory(director, oid, def), nil
}
