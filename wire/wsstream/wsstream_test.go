package wsstream

import (
	"errors"
	"sync"
	"testing"

	"github.com/coreward/relkv/rowtype"
	"github.com/coreward/relkv/wire"
	"github.com/gorilla/websocket"
)

// pipeConn connects a Send call directly to a Receive call in the same
// process, standing in for a real *websocket.Conn pair.
type pipeConn struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  [][]byte
	closed bool
}

func newPipeConn() *pipeConn {
	c := &pipeConn{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *pipeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := append([]byte(nil), data...)
	c.queue = append(c.queue, cp)
	c.cond.Signal()
	return nil
}

func (c *pipeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.queue) == 0 && !c.closed {
		c.cond.Wait()
	}
	if len(c.queue) == 0 {
		return 0, nil, errors.New("wsstream test: connection closed")
	}
	msg := c.queue[0]
	c.queue = c.queue[1:]
	return websocket.BinaryMessage, msg, nil
}

func (c *pipeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cond.Broadcast()
}

func TestSendReceiveRoundTrip(t *testing.T) {
	conn := newPipeConn()
	cols := []rowtype.Column{{Name: "id", Type: rowtype.TypeInt64}}

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- Send(conn, func(w *wire.Writer) error {
			if err := w.WriteRow(cols, []byte("one")); err != nil {
				return err
			}
			return w.WriteRow(cols, []byte("two"))
		})
	}()

	var got []string
	recvErr := Receive(conn, func(columns []rowtype.Column, body []byte) error {
		if len(columns) != 1 || columns[0].Name != "id" {
			t.Fatalf("columns = %+v", columns)
		}
		got = append(got, string(body))
		return nil
	})
	conn.Close()

	if err := <-sendErr; err != nil {
		t.Fatal(err)
	}
	if recvErr != nil {
		t.Fatal(recvErr)
	}
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("got = %v, want [one two]", got)
	}
}

func TestSendSurfacesProduceErrorAsRemoteError(t *testing.T) {
	conn := newPipeConn()

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- Send(conn, func(w *wire.Writer) error {
			return errors.New("boom")
		})
	}()

	recvErr := Receive(conn, func(columns []rowtype.Column, body []byte) error {
		t.Fatal("expected no rows before the error")
		return nil
	})
	conn.Close()

	<-sendErr
	remote, ok := recvErr.(*wire.RemoteError)
	if !ok {
		t.Fatalf("recvErr = %v (%T), want *wire.RemoteError", recvErr, recvErr)
	}
	if remote.Message != "boom" {
		t.Fatalf("message = %q, want boom", remote.Message)
	}
}
