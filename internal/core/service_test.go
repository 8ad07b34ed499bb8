package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vovakirdan/brandchat-server/internal/bus"
	"github.com/vovakirdan/brandchat-server/internal/proto"
	"github.com/vovakirdan/brandchat-server/internal/store"
)

func TestGateAdmission(t *testing.T) {
	f := newFixture(t)
	user, _ := f.brandUser(t, "acme")
	op := f.operator(t, "staff")

	lapsed, err := f.st.CreateUser(f.ctx, &store.User{Email: "lapsed@example.com", IsActive: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	brand, err := f.st.CreateBrand(f.ctx, lapsed.ID, "lapsed")
	if err != nil {
		t.Fatalf("create brand: %v", err)
	}
	if _, err := f.st.CreateSubscription(f.ctx, brand.ID, time.Now().Add(-48*time.Hour), time.Now().Add(-time.Hour), true); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	brandless, err := f.st.CreateUser(f.ctx, &store.User{Email: "nobrand@example.com", IsActive: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	tests := []struct {
		name    string
		kind    ConsumerKind
		user    *store.User
		offered []string
		want    error
	}{
		{"anonymous user", ConsumerUser, nil, []string{"chat"}, ErrUnauthenticated},
		{"anonymous operator", ConsumerOperator, nil, []string{"admin-chat"}, ErrUnauthenticated},
		{"user without brand", ConsumerUser, brandless, []string{"chat"}, ErrRejected},
		{"lapsed subscription", ConsumerUser, lapsed, []string{"chat"}, ErrRejected},
		{"user on operator endpoint", ConsumerOperator, user, []string{"admin-chat"}, ErrRejected},
		{"wrong subprotocol", ConsumerUser, user, []string{"admin-chat"}, ErrRejected},
		{"no subprotocol", ConsumerOperator, op, nil, ErrRejected},
		{"user admitted", ConsumerUser, user, []string{"chat"}, nil},
		{"operator admitted", ConsumerOperator, op, []string{"admin-chat"}, nil},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(fmt.Sprintf("gate-%d", i), 4)
			s, err := f.gate.Admit(f.ctx, tt.kind, tt.user, tt.offered, client)
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("admit: %v", err)
			}
			defer s.Close(f.ctx)
			if s.Room() != nil {
				t.Fatalf("new session must be unjoined")
			}
		})
	}
}

func TestOperatorSessionJoinsOperatorsGroup(t *testing.T) {
	f := newFixture(t)
	op := f.operator(t, "staff")

	s := f.connect(t, ConsumerOperator, op)
	if members := f.bus.Members(bus.OperatorsGroup); len(members) != 1 || members[0] != s.Client.ID() {
		t.Fatalf("unexpected operators group: %v", members)
	}

	s.Close(f.ctx)
	s.Close(f.ctx)
	if members := f.bus.Members(bus.OperatorsGroup); len(members) != 0 {
		t.Fatalf("operators group must be empty after close: %v", members)
	}
}

func TestJoinLeaveStateMachine(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.brandUser(t, "alice")
	bob, _ := f.brandUser(t, "bob")
	carol, _ := f.brandUser(t, "carol")
	room := f.room(t, store.RoomKindMatch, alice.ID, bob.ID)
	other := f.room(t, store.RoomKindMatch, alice.ID, carol.ID)

	s := f.connect(t, ConsumerUser, alice)
	outsider := f.connect(t, ConsumerUser, carol)

	if _, err := f.svc.LeaveRoom(f.ctx, s); err == nil {
		t.Fatalf("leave while unjoined must fail")
	} else {
		mustStatus(t, err, 403)
	}

	_, err := f.svc.JoinRoom(f.ctx, outsider, room.ID)
	mustStatus(t, err, 403)

	got, err := f.svc.JoinRoom(f.ctx, s, room.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if got.RoomID != room.ID {
		t.Fatalf("expected room id %d, got %d", room.ID, got.RoomID)
	}
	if members := f.bus.Members(bus.RoomGroup(room.ID)); len(members) != 1 || members[0] != s.Client.ID() {
		t.Fatalf("unexpected room group: %v", members)
	}

	for _, id := range []int64{room.ID, other.ID} {
		_, err := f.svc.JoinRoom(f.ctx, s, id)
		mustStatus(t, err, 403)
	}
	if s.Room().ID != room.ID {
		t.Fatalf("a failed join must not change the joined room")
	}

	left, err := f.svc.LeaveRoom(f.ctx, s)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if left.Response != fmt.Sprintf("Leaved room %d successfully!", room.ID) {
		t.Fatalf("unexpected leave response: %q", left.Response)
	}
	if members := f.bus.Members(bus.RoomGroup(room.ID)); len(members) != 0 {
		t.Fatalf("room group must be empty after leave: %v", members)
	}

	f.join(t, s, other.ID)
	s.Close(f.ctx)
	if members := f.bus.Members(bus.RoomGroup(other.ID)); len(members) != 0 {
		t.Fatalf("room group must be empty after close: %v", members)
	}
}

func TestOperatorMayJoinAnyRoom(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.brandUser(t, "alice")
	bob, _ := f.brandUser(t, "bob")
	room := f.room(t, store.RoomKindMatch, alice.ID, bob.ID)
	op := f.connect(t, ConsumerOperator, f.operator(t, "staff"))

	f.join(t, op, room.ID)

	_, err := f.svc.LeaveRoom(f.ctx, op)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	_, err = f.svc.JoinRoom(f.ctx, op, 4242)
	mustStatus(t, err, 404)
}

func TestCreateMessageInMatchRoom(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.brandUser(t, "alice")
	bob, _ := f.brandUser(t, "bob")
	carol, _ := f.brandUser(t, "carol")
	room := f.room(t, store.RoomKindMatch, alice.ID, bob.ID)
	side := f.room(t, store.RoomKindMatch, alice.ID, carol.ID)

	a := f.connect(t, ConsumerUser, alice)
	b := f.connect(t, ConsumerUser, bob)
	c := f.connect(t, ConsumerUser, carol)
	op := f.connect(t, ConsumerOperator, f.operator(t, "staff"))
	f.join(t, a, room.ID)
	f.join(t, b, room.ID)
	f.join(t, c, side.ID)

	msg, err := f.svc.CreateMessage(f.ctx, a, "hi", nil)
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	if msg.Text != "hi" || msg.Room != room.ID || msg.User == nil || *msg.User != alice.ID {
		t.Fatalf("unexpected payload: %+v", msg)
	}

	fr := mustFrame(t, b)
	if fr.Action != proto.ActionCreateMessage || fr.ResponseStatus != 201 || len(fr.RequestID) != 0 {
		t.Fatalf("unexpected notification: %+v", fr)
	}
	var got proto.MessagePayload
	if err := json.Unmarshal(fr.Data, &got); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got.ID != msg.ID || got.Text != "hi" {
		t.Fatalf("unexpected message: %+v", got)
	}

	mustSilent(t, a)
	mustSilent(t, b)
	mustSilent(t, c)
	mustSilent(t, op)
}

func TestCreateMessageValidation(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.brandUser(t, "alice")
	bob, _ := f.brandUser(t, "bob")
	room := f.room(t, store.RoomKindMatch, alice.ID, bob.ID)
	a := f.connect(t, ConsumerUser, alice)

	_, err := f.svc.CreateMessage(f.ctx, a, "hi", nil)
	mustStatus(t, err, 403)

	f.join(t, a, room.ID)

	_, err = f.svc.CreateMessage(f.ctx, a, "   ", nil)
	mustStatus(t, err, 400)

	long := make([]rune, DefaultMaxTextLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.svc.CreateMessage(f.ctx, a, string(long), nil)
	mustStatus(t, err, 400)

	_, err = f.svc.CreateMessage(f.ctx, a, "file", []int64{777})
	mustStatus(t, err, 400)

	att, err := f.st.CreateAttachment(f.ctx, "uploads/a.png")
	if err != nil {
		t.Fatalf("create attachment: %v", err)
	}
	msg, err := f.svc.CreateMessage(f.ctx, a, "", []int64{att.ID})
	if err != nil {
		t.Fatalf("attachment-only message: %v", err)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].File != "uploads/a.png" {
		t.Fatalf("unexpected attachments: %+v", msg.Attachments)
	}
}

func TestBlacklistForbidsWrites(t *testing.T) {
	f := newFixture(t)
	alice, aliceBrand := f.brandUser(t, "alice")
	bob, bobBrand := f.brandUser(t, "bob")
	room := f.room(t, store.RoomKindMatch, alice.ID, bob.ID)
	a := f.connect(t, ConsumerUser, alice)
	f.join(t, a, room.ID)

	msg, err := f.svc.CreateMessage(f.ctx, a, "before", nil)
	if err != nil {
		t.Fatalf("create message: %v", err)
	}

	if err := f.st.Block(f.ctx, bobBrand.ID, aliceBrand.ID); err != nil {
		t.Fatalf("block: %v", err)
	}

	_, err = f.svc.CreateMessage(f.ctx, a, "after", nil)
	mustStatus(t, err, 403)
	_, err = f.svc.EditMessage(f.ctx, a, msg.ID, "edited")
	mustStatus(t, err, 403)
	_, err = f.svc.DeleteMessages(f.ctx, a, []int64{msg.ID})
	mustStatus(t, err, 403)
}

func TestWritesNeedABrandedInterlocutor(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.brandUser(t, "alice")
	brandless, err := f.st.CreateUser(f.ctx, &store.User{Email: "nobrand@example.com", IsActive: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	tests := []struct {
		name         string
		kind         store.RoomKind
		participants []int64
	}{
		{"match room alone", store.RoomKindMatch, []int64{alice.ID}},
		{"instant room alone", store.RoomKindInstant, []int64{alice.ID}},
		{"match room with brandless peer", store.RoomKindMatch, []int64{alice.ID, brandless.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := f.room(t, tt.kind, tt.participants...)
			a := f.connect(t, ConsumerUser, alice)
			f.join(t, a, room.ID)

			_, err := f.svc.CreateMessage(f.ctx, a, "hello?", nil)
			mustStatus(t, err, 403)
		})
	}
}

func TestSubscriptionRecheckedPerAction(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.brandUser(t, "alice")
	bob, _ := f.brandUser(t, "bob")
	room := f.room(t, store.RoomKindMatch, alice.ID, bob.ID)
	a := f.connect(t, ConsumerUser, alice)
	f.join(t, a, room.ID)

	// The subscription ends a day after it was created.
	f.svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	_, err := f.svc.CreateMessage(f.ctx, a, "hi", nil)
	mustStatus(t, err, 403)
	_, err = f.svc.Rooms(f.ctx, a, 1)
	mustStatus(t, err, 403)
	_, err = f.svc.RoomMessages(f.ctx, a, 1)
	mustStatus(t, err, 403)
	_, _, err = f.svc.SupportRoom(f.ctx, a)
	mustStatus(t, err, 403)

	if _, err := f.svc.LeaveRoom(f.ctx, a); err != nil {
		t.Fatalf("leave must not check the subscription: %v", err)
	}
}

func TestInstantRoomGate(t *testing.T) {
	f := newFixture(t)
	alice, aliceBrand := f.brandUser(t, "alice")
	bob, bobBrand := f.brandUser(t, "bob")
	room := f.room(t, store.RoomKindInstant, alice.ID, bob.ID)
	if err := f.st.CreateCoop(f.ctx, aliceBrand.ID, bobBrand.ID, room.ID, false); err != nil {
		t.Fatalf("create coop: %v", err)
	}

	a := f.connect(t, ConsumerUser, alice)
	b := f.connect(t, ConsumerUser, bob)
	f.join(t, a, room.ID)
	f.join(t, b, room.ID)

	_, err := f.svc.CreateMessage(f.ctx, b, "hello?", nil)
	mustStatus(t, err, 403)

	if _, err := f.svc.CreateMessage(f.ctx, a, "icebreaker", nil); err != nil {
		t.Fatalf("first message by initiator: %v", err)
	}
	if fr := mustFrame(t, b); fr.ResponseStatus != 201 {
		t.Fatalf("expected 201 notification, got %+v", fr)
	}

	_, err = f.svc.CreateMessage(f.ctx, a, "again", nil)
	mustStatus(t, err, 403)
	_, err = f.svc.CreateMessage(f.ctx, b, "reply", nil)
	mustStatus(t, err, 403)
	mustSilent(t, b)
}

func TestSupportRoomFanOutOncePerConnection(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.brandUser(t, "alice")
	a := f.connect(t, ConsumerUser, alice)
	watcher := f.connect(t, ConsumerOperator, f.operator(t, "watcher"))
	idle := f.connect(t, ConsumerOperator, f.operator(t, "idle"))

	support, created, err := f.svc.SupportRoom(f.ctx, a)
	if err != nil {
		t.Fatalf("support room: %v", err)
	}
	if !created || support.LastMessage != nil || len(support.Interlocutors) != 0 {
		t.Fatalf("unexpected new support room: %+v", support)
	}
	if a.Room() != nil {
		t.Fatalf("support room lookup must not join")
	}

	f.join(t, a, support.ID)
	f.join(t, watcher, support.ID)

	msg, err := f.svc.CreateMessage(f.ctx, a, "help", nil)
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	for _, s := range []*Session{watcher, idle} {
		if fr := mustFrame(t, s); fr.Action != proto.ActionCreateMessage {
			t.Fatalf("unexpected frame: %+v", fr)
		}
		mustSilent(t, s)
	}
	mustSilent(t, a)

	reply, err := f.svc.CreateMessage(f.ctx, watcher, "on it", nil)
	if err != nil {
		t.Fatalf("operator reply: %v", err)
	}
	mustFrame(t, a)
	mustFrame(t, idle)
	mustSilent(t, watcher)

	if _, err := f.svc.EditMessage(f.ctx, a, msg.ID, "help please"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	for _, s := range []*Session{watcher, idle} {
		if fr := mustFrame(t, s); fr.Action != proto.ActionEditMessage || fr.ResponseStatus != 200 {
			t.Fatalf("unexpected frame: %+v", fr)
		}
		mustSilent(t, s)
	}

	if _, err := f.svc.DeleteMessages(f.ctx, watcher, []int64{reply.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	fr := mustFrame(t, a)
	var deleted proto.DeletedPayload
	if err := json.Unmarshal(fr.Data, &deleted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if deleted.RoomID != support.ID || len(deleted.MessagesIDs) != 1 || deleted.MessagesIDs[0] != reply.ID {
		t.Fatalf("unexpected delete payload: %+v", deleted)
	}
	mustFrame(t, idle)
	mustSilent(t, watcher)

	again, created, err := f.svc.SupportRoom(f.ctx, a)
	if err != nil {
		t.Fatalf("support room: %v", err)
	}
	if created || again.ID != support.ID || again.LastMessage == nil {
		t.Fatalf("expected existing support room with last message, got %+v", again)
	}
}

func TestOperatorWritesOnlyInSupportRooms(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.brandUser(t, "alice")
	bob, _ := f.brandUser(t, "bob")
	room := f.room(t, store.RoomKindMatch, alice.ID, bob.ID)
	op := f.connect(t, ConsumerOperator, f.operator(t, "staff"))
	f.join(t, op, room.ID)

	_, err := f.svc.CreateMessage(f.ctx, op, "hello", nil)
	mustStatus(t, err, 403)

	own, created, err := f.svc.SupportRoom(f.ctx, op)
	if err != nil || !created {
		t.Fatalf("operator support room: created=%v err=%v", created, err)
	}
	if op.Room().ID != room.ID {
		t.Fatalf("support room lookup must keep the joined room")
	}
	if _, err := f.svc.LeaveRoom(f.ctx, op); err != nil {
		t.Fatalf("leave: %v", err)
	}
	f.join(t, op, own.ID)
	if _, err := f.svc.CreateMessage(f.ctx, op, "note to self", nil); err != nil {
		t.Fatalf("create in own support room: %v", err)
	}
}

func TestEditAndDeleteAreOwnerScoped(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.brandUser(t, "alice")
	bob, _ := f.brandUser(t, "bob")
	room := f.room(t, store.RoomKindMatch, alice.ID, bob.ID)
	a := f.connect(t, ConsumerUser, alice)
	b := f.connect(t, ConsumerUser, bob)
	f.join(t, a, room.ID)
	f.join(t, b, room.ID)

	first, err := f.svc.CreateMessage(f.ctx, a, "one", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := f.svc.CreateMessage(f.ctx, a, "two", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	foreign, err := f.svc.CreateMessage(f.ctx, b, "three", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	mustFrame(t, b)
	mustFrame(t, b)
	mustFrame(t, a)

	_, err = f.svc.EditMessage(f.ctx, a, foreign.ID, "mine now")
	mustStatus(t, err, 404)
	_, err = f.svc.EditMessage(f.ctx, a, 4242, "missing")
	mustStatus(t, err, 404)

	_, err = f.svc.DeleteMessages(f.ctx, a, []int64{first.ID, foreign.ID})
	mustStatus(t, err, 404)
	_, err = f.svc.DeleteMessages(f.ctx, a, []int64{first.ID, 4242})
	mustStatus(t, err, 404)
	mustSilent(t, b)

	count, err := f.st.CountMessages(f.ctx, room.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("failed deletes must not remove anything, have %d messages", count)
	}

	if _, err := f.svc.DeleteMessages(f.ctx, a, []int64{first.ID, second.ID}); err != nil {
		t.Fatalf("delete own messages: %v", err)
	}
	if fr := mustFrame(t, b); fr.Action != proto.ActionDeleteMessages {
		t.Fatalf("unexpected frame: %+v", fr)
	}
}

func TestDeleteMessagesDropsDuplicateIDs(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.brandUser(t, "alice")
	bob, _ := f.brandUser(t, "bob")
	room := f.room(t, store.RoomKindMatch, alice.ID, bob.ID)
	a := f.connect(t, ConsumerUser, alice)
	b := f.connect(t, ConsumerUser, bob)
	f.join(t, a, room.ID)
	f.join(t, b, room.ID)

	msg, err := f.svc.CreateMessage(f.ctx, a, "oops", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	mustFrame(t, b)

	reply, err := f.svc.DeleteMessages(f.ctx, a, []int64{msg.ID, msg.ID})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if fmt.Sprint(reply.MessagesIDs) != fmt.Sprint([]int64{msg.ID}) {
		t.Fatalf("expected de-duplicated reply ids, got %v", reply.MessagesIDs)
	}

	note := mustFrame(t, b)
	var deleted proto.DeletedPayload
	if err := json.Unmarshal(note.Data, &deleted); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	if fmt.Sprint(deleted.MessagesIDs) != fmt.Sprint([]int64{msg.ID}) || deleted.RoomID != room.ID {
		t.Fatalf("expected de-duplicated broadcast, got %+v", deleted)
	}
	mustSilent(t, b)
}

func TestRoomMessagesPagination(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.brandUser(t, "alice")
	bob, _ := f.brandUser(t, "bob")
	room := f.room(t, store.RoomKindMatch, alice.ID, bob.ID)
	a := f.connect(t, ConsumerUser, alice)
	f.join(t, a, room.ID)

	for i := 0; i < 110; i++ {
		if err := f.st.CreateMessage(f.ctx, &store.Message{RoomID: room.ID, UserID: alice.ID, Text: fmt.Sprint(i)}, nil); err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	first, err := f.svc.RoomMessages(f.ctx, a, 1)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	results := first.Results.([]*proto.MessagePayload)
	if first.Count != 110 || len(results) != 100 || first.Next == nil || *first.Next != 2 {
		t.Fatalf("unexpected page 1: count=%d len=%d next=%v", first.Count, len(results), first.Next)
	}
	if results[0].Text != "109" {
		t.Fatalf("expected newest first, got %q", results[0].Text)
	}

	second, err := f.svc.RoomMessages(f.ctx, a, 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if got := len(second.Results.([]*proto.MessagePayload)); got != 10 || second.Next != nil {
		t.Fatalf("unexpected page 2: len=%d next=%v", got, second.Next)
	}

	_, err = f.svc.RoomMessages(f.ctx, a, 3)
	mustStatus(t, err, 400)
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"", 1, true},
		{"null", 1, true},
		{"2", 2, true},
		{`"3"`, 3, true},
		{"-1", 0, false},
		{"0", 0, false},
		{`"abc"`, 0, false},
		{"1.5", 0, false},
		{"true", 0, false},
	}
	for _, tt := range tests {
		got, err := ParsePage(json.RawMessage(tt.raw))
		if tt.ok {
			if err != nil || got != tt.want {
				t.Fatalf("ParsePage(%q) = %d, %v; want %d", tt.raw, got, err, tt.want)
			}
			continue
		}
		mustStatus(t, err, 400)
	}
}

func TestRoomsListing(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.brandUser(t, "alice")
	bob, bobBrand := f.brandUser(t, "bob")
	carol, _ := f.brandUser(t, "carol")
	quiet := f.room(t, store.RoomKindMatch, alice.ID, carol.ID)
	busy := f.room(t, store.RoomKindMatch, alice.ID, bob.ID)
	f.room(t, store.RoomKindMatch, bob.ID, carol.ID)

	if err := f.st.CreateMessage(f.ctx, &store.Message{RoomID: busy.ID, UserID: bob.ID, Text: "hey"}, nil); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	a := f.connect(t, ConsumerUser, alice)
	page, err := f.svc.Rooms(f.ctx, a, 1)
	if err != nil {
		t.Fatalf("rooms: %v", err)
	}
	rooms := page.Results.([]*proto.RoomPayload)
	if page.Count != 2 || len(rooms) != 2 || page.Next != nil {
		t.Fatalf("unexpected page: count=%d len=%d", page.Count, len(rooms))
	}
	if rooms[0].ID != busy.ID || rooms[1].ID != quiet.ID {
		t.Fatalf("expected active room first, got %d, %d", rooms[0].ID, rooms[1].ID)
	}
	if rooms[0].LastMessage == nil || rooms[0].LastMessage.Text != "hey" {
		t.Fatalf("unexpected last message: %+v", rooms[0].LastMessage)
	}
	if len(rooms[0].Interlocutors) != 1 || rooms[0].Interlocutors[0].Brand == nil || rooms[0].Interlocutors[0].Brand.ID != bobBrand.ID {
		t.Fatalf("expected bob's brand as interlocutor: %+v", rooms[0].Interlocutors)
	}

	op := f.connect(t, ConsumerOperator, f.operator(t, "staff"))
	page, err = f.svc.Rooms(f.ctx, op, 1)
	if err != nil {
		t.Fatalf("operator rooms: %v", err)
	}
	rooms = page.Results.([]*proto.RoomPayload)
	if page.Count != 3 || len(rooms[0].Interlocutors) != 2 {
		t.Fatalf("operators see every room and every participant: count=%d", page.Count)
	}

	_, err = f.svc.Rooms(f.ctx, op, 2)
	mustStatus(t, err, 400)
}
