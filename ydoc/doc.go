package ydoc

import (
	"fmt"
	"math/rand/v2"

	"github.com/taylorza/go-lfsr"
)

// Doc is a replicated document: a struct store of blocks, a registry of
// root shared types, and the transaction machinery that batches mutations.
//
// A Doc is single-threaded cooperative: mutate it from one execution
// context at a time.
type Doc struct {
	clientID int
	gc       bool

	store *structStore
	share map[string]*Branch

	transaction *Transaction
	cleanups    []*Transaction

	beforeTransaction       hooks[func(*Transaction)]
	beforeObserverCalls     hooks[func(*Transaction)]
	afterTransaction        hooks[func(*Transaction)]
	afterTransactionCleanup hooks[func(*Transaction)]
	update                  hooks[func(update []byte, tx *Transaction)]
}

// Options configures a new Doc.
type Options struct {
	// ClientID forces the client identifier; zero picks a random one.
	ClientID int

	// DisableGC keeps deleted content as full tombstones instead of
	// collapsing it.
	DisableGC bool
}

// New creates an empty document.
func New(opts *Options) *Doc {
	if opts == nil {
		opts = &Options{}
	}

	clientID := opts.ClientID
	if clientID == 0 {
		clientID = <-clientIDs
	} else if clientID < 0 {
		panic("ydoc: client id must be positive")
	}

	return &Doc{
		clientID: clientID,
		gc:       !opts.DisableGC,
		store:    newStructStore(),
		share:    map[string]*Branch{},
	}
}

// ClientID returns this replica's client identifier.
func (d *Doc) ClientID() int {
	return d.clientID
}

// clientIDs yields process-unique random positive 31-bit integers.
var clientIDs = newClientIDGenerator()

func newClientIDGenerator() <-chan int {
	gen := lfsr.NewLfsr32(rand.Uint32())
	out := make(chan int)

	go func() {
		for {
			id, restarted := gen.Next()
			if restarted {
				panic("generated ~32 bits of client ids")
			}

			if id == 0 || id&0x80000000 == 0x80000000 {
				continue // don't allow zero or anything with top bit
			}

			out <- int(id)
		}
	}()

	return out
}

// rootBranch returns the root type registered under name, creating it if
// needed. A root first referenced by a remote update has no kind yet; the
// first typed accessor upgrades it in place.
func (d *Doc) rootBranch(name string, kind branchKind) *Branch {
	b := d.share[name]
	if b == nil {
		b = newBranch(kind)
		b.alias = name
		b.doc = d
		d.share[name] = b
		return b
	}

	if b.kind == branchGeneric {
		b.kind = kind
	} else if kind != branchGeneric && b.kind != kind {
		panic(fmt.Sprintf("ydoc: root %q already has a different type", name))
	}
	return b
}

// GetText returns the root Text registered under name.
func (d *Doc) GetText(name string) *Text {
	return &Text{d.rootBranch(name, branchText)}
}

// GetArray returns the root Array registered under name.
func (d *Doc) GetArray(name string) *Array {
	return &Array{d.rootBranch(name, branchArray)}
}

// GetMap returns the root Map registered under name.
func (d *Doc) GetMap(name string) *Map {
	return &Map{d.rootBranch(name, branchMap)}
}

// GetXmlFragment returns the root XmlFragment registered under name.
func (d *Doc) GetXmlFragment(name string) *XmlFragment {
	return &XmlFragment{d.rootBranch(name, branchXmlFragment)}
}

// OnUpdate registers fn to receive the encoded update message of every
// transaction that changed the document. The returned func unregisters it.
func (d *Doc) OnUpdate(fn func(update []byte, tx *Transaction)) (off func()) {
	return d.update.add(fn)
}

// OnBeforeTransaction registers fn to run when a transaction opens.
func (d *Doc) OnBeforeTransaction(fn func(*Transaction)) (off func()) {
	return d.beforeTransaction.add(fn)
}

// OnBeforeObserverCalls registers fn to run after a transaction's mutations
// but before its observers.
func (d *Doc) OnBeforeObserverCalls(fn func(*Transaction)) (off func()) {
	return d.beforeObserverCalls.add(fn)
}

// OnAfterTransaction registers fn to run after a transaction's observers.
func (d *Doc) OnAfterTransaction(fn func(*Transaction)) (off func()) {
	return d.afterTransaction.add(fn)
}

// OnAfterTransactionCleanup registers fn to run after the gc and merge
// passes.
func (d *Doc) OnAfterTransactionCleanup(fn func(*Transaction)) (off func()) {
	return d.afterTransactionCleanup.add(fn)
}

// Destroy drops all document-level handlers; observers registered on shared
// types are kept. The document data stays readable.
func (d *Doc) Destroy() {
	d.beforeTransaction = hooks[func(*Transaction)]{}
	d.beforeObserverCalls = hooks[func(*Transaction)]{}
	d.afterTransaction = hooks[func(*Transaction)]{}
	d.afterTransactionCleanup = hooks[func(*Transaction)]{}
	d.update = hooks[func([]byte, *Transaction)]{}
}

// hooks is an ordered handler list with removal.
type hooks[F any] struct {
	entries []hookEntry[F]
	nextID  int
}

type hookEntry[F any] struct {
	id int
	fn F
}

func (h *hooks[F]) add(fn F) (off func()) {
	h.nextID++
	id := h.nextID
	h.entries = append(h.entries, hookEntry[F]{id: id, fn: fn})

	return func() {
		for i, e := range h.entries {
			if e.id == id {
				h.entries = append(h.entries[:i:i], h.entries[i+1:]...)
				return
			}
		}
	}
}

func (h *hooks[F]) empty() bool {
	return len(h.entries) == 0
}

// call invokes every handler in registration order; invoke adapts the
// handler to its arguments.
func (h *hooks[F]) call(invoke func(F)) {
	for _, e := range h.entries {
		invoke(e.fn)
	}
}
