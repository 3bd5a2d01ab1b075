package network

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"

	"lanrace/protocol"
)

func TestDirectoryObserveAndExpire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := NewDirectory(clock, 3*time.Second)

	d.Observe(protocol.RoomAnnounce{RoomID: "BBBBBB", RoomName: "Zed", IP: "10.0.0.9", Port: 5000}, nil)
	d.Observe(protocol.RoomAnnounce{RoomID: "AAAAAA", RoomName: "Alpha", Port: 5001}, net.ParseIP("10.0.0.3"))
	d.Observe(protocol.RoomAnnounce{RoomName: "no id"}, nil)

	got := d.ListRooms()
	want := []RoomInfo{
		{RoomID: "AAAAAA", Name: "Alpha", IP: "10.0.0.3", Port: 5001},
		{RoomID: "BBBBBB", Name: "Zed", IP: "10.0.0.9", Port: 5000},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(RoomInfo{}, "LastSeen")); diff != "" {
		t.Fatalf("ListRooms mismatch (-want +got):\n%s", diff)
	}
	if got[0].Addr() != "10.0.0.3:5001" {
		t.Fatalf("Addr = %q", got[0].Addr())
	}

	clock.Advance(2 * time.Second)
	d.Observe(protocol.RoomAnnounce{RoomID: "BBBBBB", RoomName: "Zed", IP: "10.0.0.9", Port: 5000}, nil)
	clock.Advance(2 * time.Second)

	rooms := d.ListRooms()
	if len(rooms) != 1 || rooms[0].RoomID != "BBBBBB" {
		t.Fatalf("rooms after expiry = %+v", rooms)
	}
}

func TestRoomTTLDropsHostsThatStopAnnouncing(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := NewDirectory(clock, RoomTTL)
	live := protocol.RoomAnnounce{RoomID: "LIVEAA", RoomName: "live", IP: "10.0.0.1", Port: 5000}
	gone := protocol.RoomAnnounce{RoomID: "GONEAA", RoomName: "gone", IP: "10.0.0.2", Port: 5000}

	d.Observe(live, nil)
	d.Observe(gone, nil)
	// The live host keeps announcing through a full discovery window.
	for elapsed := time.Duration(0); elapsed < protocol.DiscoverWindow; elapsed += protocol.AnnounceInterval {
		clock.Advance(protocol.AnnounceInterval)
		d.Observe(live, nil)
	}

	rooms := d.ListRooms()
	if len(rooms) != 1 || rooms[0].RoomID != "LIVEAA" {
		t.Fatalf("rooms = %+v, want only the host still announcing", rooms)
	}
}

func TestNewRoomID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := NewRoomID()
		if len(id) != 6 {
			t.Fatalf("room id %q has length %d", id, len(id))
		}
		for _, r := range id {
			if !strings.ContainsRune(codeChars, r) {
				t.Fatalf("room id %q has char %q outside the code alphabet", id, r)
			}
		}
		seen[id] = true
	}
	if len(seen) < 45 {
		t.Fatalf("only %d distinct ids out of 50", len(seen))
	}
}

func TestAnnounceLoopStampsAndRepeats(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sent := make(chan protocol.RoomAnnounce, 8)
	send := func(b []byte) error {
		msg, err := protocol.Decode(b)
		if err != nil {
			t.Errorf("beacon does not decode: %v", err)
			return err
		}
		sent <- msg.(protocol.RoomAnnounce)
		return nil
	}
	done := make(chan error, 1)
	room := protocol.RoomAnnounce{RoomID: "ABC234", RoomName: "Room", IP: "10.0.0.2", Port: 5000}
	go func() {
		done <- announceLoop(ctx, clock, protocol.AnnounceInterval, room, send)
	}()

	next := func() protocol.RoomAnnounce {
		t.Helper()
		select {
		case a := <-sent:
			return a
		case <-time.After(time.Second):
			t.Fatalf("no beacon sent")
		}
		return protocol.RoomAnnounce{}
	}
	first := next()
	clock.Advance(protocol.AnnounceInterval)
	second := next()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("announceLoop: %v", err)
	}
	if first.RoomID != "ABC234" || first.Port != 5000 {
		t.Fatalf("beacon = %+v", first)
	}
	if got := second.TS - first.TS; got < 0.49 || got > 0.51 {
		t.Fatalf("ts advanced by %v, want 0.5", got)
	}
}

func TestObserveLineIgnoresGameTraffic(t *testing.T) {
	d := NewDirectory(clockwork.NewFakeClock(), 0)
	observeLine(d, []byte(`{"type":"map_select","map":1}`), nil)
	observeLine(d, []byte(`garbage`), nil)
	observeLine(d, []byte(`{"type":"room_announce","room_id":"QWERTY","port":7}`), net.ParseIP("192.168.1.4"))
	rooms := d.ListRooms()
	if len(rooms) != 1 || rooms[0].IP != "192.168.1.4" {
		t.Fatalf("rooms = %+v", rooms)
	}
}
