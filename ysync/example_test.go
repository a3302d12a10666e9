package ysync_test

import (
	"net/http"

	"github.com/samthor/ycrdt/ydoc"
	"github.com/samthor/ycrdt/ysync"
)

// Example hosts a document for collaborative editing over WebSockets.
func Example() {
	doc := ydoc.New(nil)
	room := ysync.NewRoom(doc)

	mux := http.NewServeMux()
	mux.Handle("/sync", room.Handler(nil))

	err := ysync.ListenAndServe(&ysync.ListenAndServeOpts{Handler: mux})
	_ = err
}
