package http

import (
	"context"
	"encoding/json"
	"fmt"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/brandchat-server/internal/auth"
	"github.com/vovakirdan/brandchat-server/internal/bus"
	"github.com/vovakirdan/brandchat-server/internal/config"
	"github.com/vovakirdan/brandchat-server/internal/core"
	"github.com/vovakirdan/brandchat-server/internal/service/favorites"
	"github.com/vovakirdan/brandchat-server/internal/store"
	"github.com/vovakirdan/brandchat-server/internal/store/sqlite"
	"github.com/vovakirdan/brandchat-server/internal/uploads"
)

type testEnv struct {
	ctx  context.Context
	ts   *httptest.Server
	srv  *Server
	st   *sqlite.SQLiteStore
	bus  *bus.MemoryBus
	auth *auth.Service
	seq  int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	disabledLogger := zerolog.Nop()
	cfg := config.Default()
	cfg.UploadDir = t.TempDir()

	dir, err := uploads.NewDir(cfg.UploadDir)
	if err != nil {
		t.Fatalf("upload dir: %v", err)
	}

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})
	b := bus.NewMemoryBus(&disabledLogger)
	srv := NewServer(Deps{
		Auth:      authService,
		Gate:      core.NewGate(st, b, &disabledLogger),
		Chat:      core.NewService(st, b, core.Options{MaxTextLength: cfg.MaxTextLength, Files: dir}, &disabledLogger),
		Favorites: favorites.New(st),
		Store:     st,
		Uploads:   dir,
	}, cfg, &disabledLogger)

	ts := httptest.NewUnstartedServer(srv.Handler)
	ts.Config = srv.Server
	ts.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	t.Cleanup(ts.Close)

	return &testEnv{ctx: context.Background(), ts: ts, srv: srv, st: st, bus: b, auth: authService}
}

func (e *testEnv) brandUser(t *testing.T, name string) *store.User {
	t.Helper()

	user, err := e.st.CreateUser(e.ctx, &store.User{Email: name + "@example.com", Fullname: name, IsActive: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	brand, err := e.st.CreateBrand(e.ctx, user.ID, name)
	if err != nil {
		t.Fatalf("create brand: %v", err)
	}
	now := time.Now()
	if _, err := e.st.CreateSubscription(e.ctx, brand.ID, now.Add(-time.Hour), now.Add(24*time.Hour), true); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	return user
}

func (e *testEnv) operator(t *testing.T, name string) *store.User {
	t.Helper()

	user, err := e.st.CreateUser(e.ctx, &store.User{Email: name + "@example.com", Fullname: name, IsSuperuser: true, IsActive: true})
	if err != nil {
		t.Fatalf("create operator: %v", err)
	}
	return user
}

func (e *testEnv) room(t *testing.T, kind store.RoomKind, participants ...int64) *store.Room {
	t.Helper()

	room, err := e.st.CreateRoom(e.ctx, kind, participants)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func (e *testEnv) token(t *testing.T, userID int64) string {
	t.Helper()

	token, err := e.auth.IssueToken(userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) wsURL(path string) string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + path
}

// tryDial dials with the given subprotocol list and returns the HTTP status on failure.
func (e *testEnv) tryDial(path string, protocols ...string) (*websocket.Conn, int, error) {
	ctx, cancel := context.WithTimeout(e.ctx, 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, e.wsURL(path), &websocket.DialOptions{Subprotocols: protocols})
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return conn, status, err
}

func (e *testEnv) dial(t *testing.T, path string, protocols ...string) *websocket.Conn {
	t.Helper()

	conn, status, err := e.tryDial(path, protocols...)
	if err != nil {
		t.Fatalf("dial %s: status %d: %v", path, status, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func (e *testEnv) dialUser(t *testing.T, user *store.User) *websocket.Conn {
	t.Helper()
	return e.dial(t, "/ws/chat/", "chat", e.token(t, user.ID))
}

func (e *testEnv) dialOperator(t *testing.T, user *store.User) *websocket.Conn {
	t.Helper()
	return e.dial(t, "/ws/admin-chat/", "admin-chat", e.token(t, user.ID))
}

type frame struct {
	Action         string          `json:"action"`
	RequestID      json.RawMessage `json:"request_id"`
	ResponseStatus int             `json:"response_status"`
	Data           json.RawMessage `json:"data"`
	Errors         []string        `json:"errors"`
}

func send(t *testing.T, conn *websocket.Conn, req map[string]any) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func mustFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var f frame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// request sends an action and returns the reply, which must echo requestID.
func request(t *testing.T, conn *websocket.Conn, requestID string, req map[string]any) frame {
	t.Helper()

	req["request_id"] = requestID
	send(t, conn, req)
	f := mustFrame(t, conn)
	if string(f.RequestID) != fmt.Sprintf("%q", requestID) {
		t.Fatalf("expected reply to %q, got %+v", requestID, f)
	}
	return f
}

// mustSilent checks no notification is pending: the next frame must be the
// reply to a fresh marker request.
func (e *testEnv) mustSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	e.seq++
	marker := fmt.Sprintf("marker-%d", e.seq)
	send(t, conn, map[string]any{"action": "get_rooms", "request_id": marker})
	f := mustFrame(t, conn)
	if string(f.RequestID) != fmt.Sprintf("%q", marker) {
		t.Fatalf("unexpected frame before marker reply: %+v", f)
	}
}

func mustStatus(t *testing.T, f frame, status int) {
	t.Helper()

	if f.ResponseStatus != status {
		t.Fatalf("expected response_status %d, got %d (%v)", status, f.ResponseStatus, f.Errors)
	}
	if status >= stdhttp.StatusBadRequest {
		if string(f.Data) != "null" || len(f.Errors) == 0 {
			t.Fatalf("error replies carry errors and null data: %+v", f)
		}
	} else if f.Errors != nil {
		t.Fatalf("success replies carry null errors: %+v", f)
	}
}
