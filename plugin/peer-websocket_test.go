package plugin_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	Tp "github.com/maroda/teachtiles/plugin"
)

func TestPeerHub_Broadcast(t *testing.T) {
	hub := Tp.NewPeerHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	t.Run("Not ready without peers", func(t *testing.T) {
		if hub.Ready() {
			t.Error("hub ready with no peers")
		}
		assertError(t, hub.Send([]byte{60, 0, 0, 0, 1}), Tp.ErrNotReady)
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := Tp.NewPeerClient(context.Background(), url)
	defer client.Close()

	waitFor(t, "hub to see the peer", hub.Ready)
	waitFor(t, "client to connect", client.Connected)

	t.Run("Peer receives the packet", func(t *testing.T) {
		want := []byte{72, 0, 0, 0x03, 0xE8}
		assertError(t, hub.Send(want), nil)

		select {
		case got := <-client.Packets():
			if !bytes.Equal(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for peer packet")
		}
	})

	t.Run("Hub forgets a peer that leaves", func(t *testing.T) {
		client.Close()
		waitFor(t, "hub to drop the peer", func() bool { return !hub.Ready() })
		assertInt(t, hub.Count(), 0)
	})
}

func TestPeerClient_CloseWhileDialing(t *testing.T) {
	client := Tp.NewPeerClient(context.Background(), "ws://127.0.0.1:1/peer")
	done := make(chan struct{})
	go func() {
		client.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while redialing")
	}
	if client.Connected() {
		t.Error("client reports connected")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
