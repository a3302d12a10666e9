package ysync

import (
	"net/http"
	"os"
	"strconv"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// ListenAndServe hosts a sync handler in a sensibly default way.
//
// By default, it serves on the env PORT or port 8080 and supports H2C.
func ListenAndServe(opts *ListenAndServeOpts) error {
	if opts == nil {
		opts = &ListenAndServeOpts{}
	}

	addr := opts.Addr
	if addr == "" {
		port, _ := strconv.Atoi(os.Getenv("PORT"))
		if port <= 0 {
			port = 8080
		}

		host := "localhost"
		if opts.ServeAll {
			host = ""
		}

		addr = host + ":" + strconv.Itoa(port)
	}

	handler := opts.Handler
	if handler == nil {
		handler = http.DefaultServeMux
	}

	h2s := &http2.Server{}
	handler = h2c.NewHandler(handler, h2s)

	s := http.Server{Addr: addr, Handler: handler}
	return s.ListenAndServe()
}

// ListenAndServeOpts configures ListenAndServe.
type ListenAndServeOpts struct {
	// Addr is the address to listen on.
	// If not passed, looks for the PORT env var or defaults to port 8080,
	// on localhost unless ServeAll is set.
	Addr string

	// ServeAll hosts the server on all addresses (vs localhost) if Addr is
	// unspecified.
	ServeAll bool

	// Handler is the handler to serve, typically a Room's.
	// If nil, uses [http.DefaultServeMux].
	Handler http.Handler
}
