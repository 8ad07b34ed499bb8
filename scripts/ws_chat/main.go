package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/brandchat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("addr", "ws://localhost:8080", "server address")
	token := flag.String("token", "", "access token")
	room := flag.Int64("room", 0, "room to join on connect")
	operator := flag.Bool("operator", false, "connect to the operator endpoint")
	flag.Parse()

	if *token == "" {
		return errors.New("-token is required")
	}

	path, protocol := "/ws/chat/", proto.SubprotocolChat
	if *operator {
		path, protocol = "/ws/admin-chat/", proto.SubprotocolAdminChat
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	// The credential rides as the last offered subprotocol.
	conn, resp, err := websocket.Dial(ctx, *base+path, &websocket.DialOptions{
		Subprotocols: []string{protocol, *token},
	})
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial: status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	c := &client{conn: conn}
	if *room > 0 {
		if err := c.send(ctx, map[string]any{"action": proto.ActionJoinRoom, "room_id": *room}); err != nil {
			return err
		}
	}

	fmt.Printf("Connected to %s%s\n", *base, path)
	fmt.Println("Commands: /join ID, /leave, /rooms [PAGE], /history [PAGE], /support, /edit ID TEXT, /delete ID...")
	fmt.Println("Anything else is sent as a message. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	c.writeLoop(ctx)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

type client struct {
	conn *websocket.Conn
	seq  int
}

func (c *client) send(ctx context.Context, req map[string]any) error {
	c.seq++
	req["request_id"] = c.seq
	if err := wsjson.Write(ctx, c.conn, req); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame struct {
			Action         string          `json:"action"`
			RequestID      json.RawMessage `json:"request_id"`
			ResponseStatus int             `json:"response_status"`
			Data           json.RawMessage `json:"data"`
			Errors         []string        `json:"errors"`
		}
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		origin := "event"
		if len(frame.RequestID) > 0 {
			origin = "reply " + string(frame.RequestID)
		}
		if len(frame.Errors) > 0 {
			fmt.Printf("[%s] %s %d: %s\n", origin, frame.Action, frame.ResponseStatus, strings.Join(frame.Errors, "; "))
			continue
		}

		switch frame.Action {
		case proto.ActionCreateMessage, proto.ActionEditMessage:
			var msg proto.MessagePayload
			if err := json.Unmarshal(frame.Data, &msg); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			author := "system"
			if msg.User != nil {
				author = strconv.FormatInt(*msg.User, 10)
			}
			fmt.Printf("[%s] room %d #%d %s: %s\n", origin, msg.Room, msg.ID, author, msg.Text)
		default:
			fmt.Printf("[%s] %s %d: %s\n", origin, frame.Action, frame.ResponseStatus, frame.Data)
		}
	}
}

func (c *client) writeLoop(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			req, err := parseLine(text)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := c.send(ctx, req); err != nil {
				log.Print(err)
				return
			}
		}
	}
}

func parseLine(text string) (map[string]any, error) {
	if !strings.HasPrefix(text, "/") {
		return map[string]any{"action": proto.ActionCreateMessage, "text": text}, nil
	}

	fields := strings.Fields(text)
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	page := arg(1)
	if page == "" {
		page = "1"
	}

	switch fields[0] {
	case "/join":
		id, err := strconv.ParseInt(arg(1), 10, 64)
		if err != nil {
			return nil, errors.New("usage: /join ID")
		}
		return map[string]any{"action": proto.ActionJoinRoom, "room_id": id}, nil
	case "/leave":
		return map[string]any{"action": proto.ActionLeaveRoom}, nil
	case "/rooms":
		return map[string]any{"action": proto.ActionGetRooms, "page": page}, nil
	case "/history":
		return map[string]any{"action": proto.ActionGetRoomMessages, "page": page}, nil
	case "/support":
		return map[string]any{"action": proto.ActionGetSupportRoom}, nil
	case "/edit":
		id, err := strconv.ParseInt(arg(1), 10, 64)
		if err != nil || len(fields) < 3 {
			return nil, errors.New("usage: /edit ID TEXT")
		}
		return map[string]any{
			"action":      proto.ActionEditMessage,
			"msg_id":      id,
			"edited_text": strings.Join(fields[2:], " "),
		}, nil
	case "/delete":
		ids := make([]int64, 0, len(fields)-1)
		for _, f := range fields[1:] {
			id, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return nil, errors.New("usage: /delete ID...")
			}
			ids = append(ids, id)
		}
		return map[string]any{"action": proto.ActionDeleteMessages, "msg_id_list": ids}, nil
	default:
		return nil, fmt.Errorf("unknown command %s", fields[0])
	}
}
