package ysync

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/samthor/ycrdt/queue"
	"github.com/samthor/ycrdt/ydoc"
)

const (
	// DefaultMaxMessageSize is the maximum sync message size we accept.
	DefaultMaxMessageSize = 1 << 20

	// DefaultRateLimit is the number of messages per second we allow.
	DefaultRateLimit = 200

	// DefaultRateBurst is the maximum burst of messages we allow.
	DefaultRateBurst = 200
)

// SocketOpts configures the WebSocket handler.
type SocketOpts struct {
	// MaxMessageSize is the maximum sync message size we accept.
	// Defaults to DefaultMaxMessageSize if zero.
	MaxMessageSize int

	// RateLimit is the number of messages per second we allow.
	// Defaults to DefaultRateLimit if zero.
	RateLimit int

	// RateBurst is the maximum burst of messages we allow.
	// Defaults to DefaultRateBurst if zero.
	RateBurst int
}

func (o *SocketOpts) setDefaults() {
	if o.MaxMessageSize == 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}
	if o.RateLimit == 0 {
		o.RateLimit = DefaultRateLimit
	}
	if o.RateBurst == 0 {
		o.RateBurst = DefaultRateBurst
	}
}

// Room ties one document to any number of connected peers. Every update
// applied to the document, local or remote, is broadcast to all of them;
// replicas absorb their own updates as no-ops.
//
// The document must only be accessed through the Room (or under With)
// while the Room is serving.
type Room struct {
	mu  sync.Mutex
	doc *ydoc.Doc
	q   queue.Queue[[]byte]
	off func()
}

// NewRoom wraps doc for serving.
func NewRoom(doc *ydoc.Doc) *Room {
	r := &Room{doc: doc, q: queue.New[[]byte]()}
	r.off = doc.OnUpdate(func(update []byte, tx *ydoc.Transaction) {
		r.q.Push(EncodeUpdate(update))
	})
	return r
}

// With runs fn with exclusive access to the room's document.
func (r *Room) With(fn func(doc *ydoc.Doc)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.doc)
}

// Close stops broadcasting document updates.
func (r *Room) Close() {
	r.off()
}

// apply feeds one inbound message to the document.
func (r *Room) apply(msg []byte, origin any) (reply []byte, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReadSyncMessage(msg, r.doc, origin)
}

// Handler returns an http.Handler that upgrades requests to WebSocket
// connections speaking the sync protocol.
// This always sets InsecureSkipVerify, you should wrap this with something
// that checks the origin.
func (r *Room) Handler(opts *SocketOpts) http.Handler {
	var o SocketOpts
	if opts != nil {
		o = *opts
	}
	o.setDefaults()

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c, err := websocket.Accept(w, req, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return // websocket.Accept already writes an error response if it fails.
		}
		c.SetReadLimit(int64(o.MaxMessageSize))

		// Don't use the http.Request context; the read loop owns shutdown.
		eg, ctx := errgroup.WithContext(context.Background())
		limiter := rate.NewLimiter(rate.Limit(o.RateLimit), o.RateBurst)

		// Ask the peer for everything we're missing.
		r.mu.Lock()
		hello := EncodeSyncStep1(r.doc)
		r.mu.Unlock()
		if err := c.Write(ctx, websocket.MessageBinary, hello); err != nil {
			c.Close(websocket.StatusInternalError, "")
			return
		}

		l := r.q.Join(ctx)
		origin := c

		eg.Go(func() error {
			for {
				typ, msg, err := c.Read(ctx)
				if err != nil {
					return err
				}
				if typ != websocket.MessageBinary {
					return websocket.CloseError{Code: websocket.StatusUnsupportedData, Reason: "unexpected message type"}
				}
				if !limiter.Allow() {
					return websocket.CloseError{Code: websocket.StatusPolicyViolation, Reason: "rate limit exceeded"}
				}

				reply, err := r.apply(msg, origin)
				if err != nil {
					return websocket.CloseError{Code: websocket.StatusInvalidFramePayloadData, Reason: "bad sync message"}
				}
				if reply != nil {
					if err := c.Write(ctx, websocket.MessageBinary, reply); err != nil {
						return err
					}
				}
			}
		})

		eg.Go(func() error {
			for msg := range l.Iter() {
				if err := c.Write(ctx, websocket.MessageBinary, msg); err != nil {
					return err
				}
			}
			return nil
		})

		err = eg.Wait()

		closeErr := websocket.CloseError{Code: websocket.StatusNormalClosure}
		if errors.As(err, &closeErr) {
			// keep the peer's reason
		} else if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("sync conn for %s failed: %v", req.URL.Path, err)
			closeErr.Code = websocket.StatusInternalError
			closeErr.Reason = ""
		}
		c.Close(closeErr.Code, closeErr.Reason)
	})
}
