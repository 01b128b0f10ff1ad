package ws

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.rooms == nil {
		t.Error("NewHub() rooms map is nil")
	}
}

func TestHub_Online_UnknownRoom(t *testing.T) {
	hub := NewHub()
	if online := hub.Online(uuid.New()); online != 0 {
		t.Errorf("Online() for unknown room = %d, want 0", online)
	}
}

func TestRoomHub_RegisterAndRemove(t *testing.T) {
	hub := NewHub()
	rh := newRoomHub(hub, uuid.New())

	c := &Client{hub: hub, send: make(chan []byte, 8), userID: uuid.New(), uname: "tester"}
	if !rh.register(c) {
		t.Fatal("register() = false for live client")
	}
	if !rh.joined(c) {
		t.Error("joined() = false after register")
	}
	if rh.online.Load() != 1 {
		t.Errorf("online = %d, want 1", rh.online.Load())
	}

	rh.remove(c)
	if rh.joined(c) {
		t.Error("joined() = true after remove")
	}
	if rh.online.Load() != 0 {
		t.Errorf("online = %d, want 0", rh.online.Load())
	}
	if c.room != nil {
		t.Error("client room not cleared after remove")
	}
}

func TestRoomHub_RegisterRejectsClosedClient(t *testing.T) {
	hub := NewHub()
	rh := newRoomHub(hub, uuid.New())

	c := &Client{hub: hub, send: make(chan []byte, 8)}
	hub.mu.Lock()
	condemnLocked(c)
	hub.mu.Unlock()

	if rh.register(c) {
		t.Error("register() = true for condemned client")
	}
	if rh.joined(c) {
		t.Error("condemned client added to membership set")
	}
}

func TestRoomHub_BroadcastExceptSender(t *testing.T) {
	hub := NewHub()
	rh := newRoomHub(hub, uuid.New())

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = &Client{hub: hub, send: make(chan []byte, 8), userID: uuid.New()}
		rh.register(clients[i])
	}

	msg := []byte(`{"type":"player:joined"}`)
	rh.broadcast(msg, clients[0])

	select {
	case got := <-clients[0].send:
		t.Errorf("excluded client received broadcast: %s", got)
	default:
	}
	for _, c := range clients[1:] {
		select {
		case got := <-c.send:
			if string(got) != string(msg) {
				t.Errorf("broadcast payload = %s, want %s", got, msg)
			}
		default:
			t.Error("member did not receive broadcast")
		}
	}
}

func TestRoomHub_BroadcastEvictsSlowClient(t *testing.T) {
	hub := NewHub()
	rh := newRoomHub(hub, uuid.New())

	slow := &Client{hub: hub, send: make(chan []byte)} // no buffer, never read
	ok := &Client{hub: hub, send: make(chan []byte, 8)}
	rh.register(slow)
	rh.register(ok)

	rh.broadcast([]byte(`{"type":"token:moved"}`), nil)

	if rh.joined(slow) {
		t.Error("slow client still a member after full send buffer")
	}
	if !slow.closed {
		t.Error("slow client send channel not condemned")
	}
	if !rh.joined(ok) {
		t.Error("healthy client evicted")
	}
}

func TestRoomHub_ExclusiveMembershipAcrossRooms(t *testing.T) {
	hub := NewHub()
	roomA := uuid.New()
	rhA := newRoomHub(hub, roomA)
	hub.rooms[roomA] = rhA

	c := &Client{hub: hub, send: make(chan []byte, 8)}
	rhA.register(c)

	rhB := newRoomHub(hub, uuid.New())
	rhB.register(c)

	if c.room != rhB {
		t.Error("client room pointer not moved to the new room")
	}
	// The detach for the old room is queued on its action channel.
	select {
	case act := <-rhA.actions:
		if act.kind != actionDetach || act.client != c {
			t.Errorf("queued action = %+v, want detach for client", act)
		}
	default:
		t.Error("no detach queued for the previous room")
	}
}
