package ysync

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/samthor/ycrdt/queue"
	"github.com/samthor/ycrdt/ydoc"
)

// Client keeps a local document in sync with a served Room over a
// WebSocket connection.
type Client struct {
	mu   sync.Mutex
	doc  *ydoc.Doc
	conn *websocket.Conn

	cancel context.CancelCauseFunc
	done   chan struct{}
	err    error
	off    func()
}

// Dial connects doc to the sync endpoint at url. The document syncs in the
// background until Close is called or the connection fails; local
// transactions must not run concurrently with the connection's apply path,
// so mutate the document from one goroutine.
func Dial(ctx context.Context, url string, doc *ydoc.Doc) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancelCause(context.Background())
	cl := &Client{
		doc:    doc,
		conn:   conn,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	q := queue.New[[]byte]()
	cl.off = doc.OnUpdate(func(update []byte, tx *ydoc.Transaction) {
		if tx.Origin != cl {
			q.Push(EncodeUpdate(update))
		}
	})

	// Ask the server for everything we're missing; it asks us the same.
	cl.mu.Lock()
	hello := EncodeSyncStep1(doc)
	cl.mu.Unlock()
	if err := conn.Write(runCtx, websocket.MessageBinary, hello); err != nil {
		cl.off()
		conn.Close(websocket.StatusInternalError, "")
		cancel(err)
		close(cl.done)
		return nil, err
	}

	eg, egCtx := errgroup.WithContext(runCtx)
	l := q.Join(egCtx)

	eg.Go(func() error {
		for {
			typ, msg, err := conn.Read(egCtx)
			if err != nil {
				return err
			}
			if typ != websocket.MessageBinary {
				return websocket.CloseError{Code: websocket.StatusUnsupportedData, Reason: "unexpected message type"}
			}
			if err := cl.apply(msg); err != nil {
				return err
			}
		}
	})

	eg.Go(func() error {
		for msg := range l.Iter() {
			if err := conn.Write(egCtx, websocket.MessageBinary, msg); err != nil {
				return err
			}
		}
		return nil
	})

	go func() {
		err := eg.Wait()
		cl.off()
		conn.Close(websocket.StatusNormalClosure, "")
		cl.err = err
		cancel(err)
		close(cl.done)
	}()

	return cl, nil
}

func (cl *Client) apply(msg []byte) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	reply, err := ReadSyncMessage(msg, cl.doc, cl)
	if err != nil {
		return err
	}
	if reply != nil {
		return cl.conn.Write(context.Background(), websocket.MessageBinary, reply)
	}
	return nil
}

// Done is closed once the connection has shut down.
func (cl *Client) Done() <-chan struct{} {
	return cl.done
}

// Err returns the connection failure, if any, once Done is closed.
func (cl *Client) Err() error {
	return cl.err
}

// Close tears the connection down.
func (cl *Client) Close() {
	cl.cancel(nil)
	<-cl.done
}
