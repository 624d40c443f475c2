// Package bridge mirrors order lifecycle events onto NATS subjects so
// out-of-process consumers (strategy monitors, reconcilers) can follow the
// emulator without a bus connection.
package bridge

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/codec"
	"main/internal/schema"
)

// Bridge publishes flattened order event records.
type Bridge struct {
	conn          *nats.Conn
	subjectPrefix string
	buf           []byte
}

// Connect dials the NATS server. An empty prefix defaults to "emulator".
func Connect(url, subjectPrefix string) (*Bridge, error) {
	if subjectPrefix == "" {
		subjectPrefix = "emulator"
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats").With("url", url)
	}
	return &Bridge{conn: conn, subjectPrefix: subjectPrefix}, nil
}

// Close flushes and closes the connection.
func (b *Bridge) Close() {
	if b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		logs.Errorf("bridge: drain nats, err: %+v", err)
	}
}

// OnOrderEvent is a bus subscription handler mirroring one event out.
func (b *Bridge) OnOrderEvent(msg any) {
	evt, ok := msg.(schema.OrderEvent)
	if !ok {
		return
	}
	rec := codec.EventRecordFrom(evt)
	b.buf = codec.EncodeOrderEvent(b.buf, rec)

	subject := fmt.Sprintf("%s.orders.%d", b.subjectPrefix, rec.StrategyID)
	if err := b.conn.Publish(subject, b.buf); err != nil {
		logs.Errorf("bridge: publish %s, err: %+v", subject, err)
	}
}
