// Package tunnel implements the CONNECT tunnel: an opaque bidirectional
// byte pump between the client connection and the dialed origin
// connection, used once the proxy has sent its 200 response to a CONNECT
// request.
package tunnel

import (
	"io"
	"net"
	"sync"
)

// scratchSize is the per-direction copy buffer, matching the original's
// select()-based SocketTunnel, which read in 16 KiB bursts
// (recv(16*1024)).
const scratchSize = 16 * 1024

// Run pumps bytes in both directions between a and b until either side
// reaches EOF or errors, then closes both connections. It blocks until
// both copy goroutines have finished.
func Run(a, b net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)

	ended := make(chan struct{}, 2)
	go func() { pump(&wg, b, a); ended <- struct{}{} }()
	go func() { pump(&wg, a, b); ended <- struct{}{} }()

	// The first direction to finish ends the tunnel; closing both
	// connections unblocks the other pump's read.
	<-ended
	_ = a.Close()
	_ = b.Close()

	wg.Wait()
}

func pump(wg *sync.WaitGroup, dst, src net.Conn) {
	defer wg.Done()
	buf := make([]byte, scratchSize)
	_, _ = io.CopyBuffer(dst, src, buf)
	// Half-close the destination's write side so its peer sees EOF; Run
	// may already have closed dst, in which case the error is ignored.
	if tc, ok := dst.(interface{ CloseWrite() error }); ok {
		_ = tc.CloseWrite()
	}
}
