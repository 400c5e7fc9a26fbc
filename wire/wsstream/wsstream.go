// Package wsstream adapts the remote pipe protocol to a WebSocket
// connection: each wire frame sequence for one scan is carried as a
// sequence of binary WebSocket messages, using io.Pipe to bridge the
// synchronous wire.Writer/Reader frame API onto the connection's
// message-at-a-time read/write methods.
//
// Uses github.com/gorilla/websocket, generalized from broadcasting JSON
// progress messages to carrying one binary wire frame stream per
// row-scan connection.
package wsstream

import (
	"io"

	"github.com/coreward/relkv/rowtype"
	"github.com/coreward/relkv/wire"
	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn this package depends on, so
// tests can substitute a fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
}

// Send streams rows from produce over conn as the remote pipe protocol,
// one WebSocket binary message per frame buffer flush, until produce
// reports no more rows or returns an error (surfaced via
// wire.Writer.WriteException).
func Send(conn Conn, produce func(w *wire.Writer) error) error {
	pr, pw := io.Pipe()
	writer := wire.NewWriter(pw)

	done := make(chan error, 1)
	go func() {
		err := produce(writer)
		if err != nil {
			_ = writer.WriteException(err.Error())
		} else {
			err = writer.WriteEndOfStream()
		}
		pw.CloseWithError(io.EOF)
		done <- err
	}()

	buf := make([]byte, 32*1024)
	for {
		n, err := pr.Read(buf)
		if n > 0 {
			if werr := conn.WriteMessage(websocket.BinaryMessage, append([]byte(nil), buf[:n]...)); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	return <-done
}

// Receive drains conn as a sequence of binary WebSocket messages forming
// one remote-pipe-protocol stream, invoking onRow for each decoded row
// until the end-of-stream frame arrives.
func Receive(conn Conn, onRow func(columns []rowtype.Column, body []byte) error) error {
	pr, pw := io.Pipe()

	go func() {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			if _, werr := pw.Write(data); werr != nil {
				pw.CloseWithError(werr)
				return
			}
		}
	}()

	reader := wire.NewReader(pr)
	for {
		columns, body, end, err := reader.ReadRow()
		if err != nil {
			pr.Close()
			if err == io.EOF {
				return nil
			}
			return err
		}
		if end {
			pr.Close()
			return nil
		}
		if err := onRow(columns, body); err != nil {
			pr.Close()
			return err
		}
	}
}
