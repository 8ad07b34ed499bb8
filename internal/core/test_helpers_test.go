package core

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/vovakirdan/brandchat-server/internal/bus"
	"github.com/vovakirdan/brandchat-server/internal/store"
	"github.com/vovakirdan/brandchat-server/internal/store/sqlite"
)

type fixture struct {
	ctx   context.Context
	st    *sqlite.SQLiteStore
	bus   *bus.MemoryBus
	gate  *Gate
	svc   *Service
	conns int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	b := bus.NewMemoryBus(nil)
	return &fixture{
		ctx:  context.Background(),
		st:   st,
		bus:  b,
		gate: NewGate(st, b, nil),
		svc:  NewService(st, b, Options{}, nil),
	}
}

// brandUser creates a user owning a brand with an active subscription.
func (f *fixture) brandUser(t *testing.T, name string) (*store.User, *store.Brand) {
	t.Helper()

	user, err := f.st.CreateUser(f.ctx, &store.User{Email: name + "@example.com", Fullname: name, IsActive: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	brand, err := f.st.CreateBrand(f.ctx, user.ID, name)
	if err != nil {
		t.Fatalf("create brand: %v", err)
	}
	now := time.Now()
	if _, err := f.st.CreateSubscription(f.ctx, brand.ID, now.Add(-time.Hour), now.Add(24*time.Hour), true); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	return user, brand
}

func (f *fixture) operator(t *testing.T, name string) *store.User {
	t.Helper()

	user, err := f.st.CreateUser(f.ctx, &store.User{Email: name + "@example.com", Fullname: name, IsStaff: true, IsActive: true})
	if err != nil {
		t.Fatalf("create operator: %v", err)
	}
	return user
}

func (f *fixture) room(t *testing.T, kind store.RoomKind, participants ...int64) *store.Room {
	t.Helper()

	room, err := f.st.CreateRoom(f.ctx, kind, participants)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func (f *fixture) connect(t *testing.T, kind ConsumerKind, user *store.User) *Session {
	t.Helper()

	f.conns++
	client := NewClient(fmt.Sprintf("conn-%d", f.conns), 256)
	s, err := f.gate.Admit(f.ctx, kind, user, []string{kind.Subprotocol()}, client)
	if err != nil {
		t.Fatalf("admit %s: %v", kind, err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func (f *fixture) join(t *testing.T, s *Session, roomID int64) {
	t.Helper()

	if _, err := f.svc.JoinRoom(f.ctx, s, roomID); err != nil {
		t.Fatalf("join room %d: %v", roomID, err)
	}
}

type frame struct {
	Action         string          `json:"action"`
	RequestID      json.RawMessage `json:"request_id"`
	ResponseStatus int             `json:"response_status"`
	Data           json.RawMessage `json:"data"`
	Errors         []string        `json:"errors"`
}

func mustFrame(t *testing.T, s *Session) frame {
	t.Helper()

	select {
	case payload := <-s.Client.Events:
		var f frame
		if err := json.Unmarshal(payload, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for frame on %s", s.Client.ID())
	}
	return frame{}
}

func mustSilent(t *testing.T, s *Session) {
	t.Helper()

	select {
	case payload := <-s.Client.Events:
		t.Fatalf("unexpected frame on %s: %s", s.Client.ID(), payload)
	default:
	}
}

func mustStatus(t *testing.T, err error, status int) {
	t.Helper()

	ce, ok := AsCoreError(err)
	if !ok {
		t.Fatalf("expected domain error with status %d, got %v", status, err)
	}
	if ce.Status != status {
		t.Fatalf("expected status %d, got %d (%s)", status, ce.Status, ce.Message)
	}
}
