package nats

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func TestDrainWaitsForClose(t *testing.T) {
	ns, err := server.NewServer(&server.Options{DontListen: true, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatal(err)
	}
	ns.Start()
	t.Cleanup(ns.Shutdown)
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	var prevCalled atomic.Bool
	nc, err := nats.Connect("", nats.InProcessServer(ns),
		nats.ClosedHandler(func(*nats.Conn) { prevCalled.Store(true) }))
	if err != nil {
		t.Fatal(err)
	}
	sub, err := nc.Subscribe("work", func(m *nats.Msg) {
		time.Sleep(50 * time.Millisecond)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()
	for range 3 {
		if err := nc.Publish("work", nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	if err := Drain(nc, 5*time.Second); err != nil {
		t.Fatal(err)
	}
	if !nc.IsClosed() {
		t.Error("connection not closed after Drain")
	}
	if !prevCalled.Load() {
		t.Error("closed handler set at connect time was not called")
	}
}
