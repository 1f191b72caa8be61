package source

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/txpipe/chainstream/internal/chain"
	"github.com/txpipe/chainstream/internal/model"
)

// wsFrame is the wire shape exchanged with a WebSocket-speaking upstream:
// a request/response envelope for intersect/tip calls, and unsolicited
// "event" frames streamed after intersection.
type wsFrame struct {
	Type  string          `json:"type"`
	Slot  uint64          `json:"slot,omitempty"`
	Hash  string          `json:"hash,omitempty"`
	Found bool            `json:"found,omitempty"`
	Kind  string          `json:"kind,omitempty"` // apply | undo | reset, for "event" frames
	Raw   string          `json:"raw,omitempty"`  // hex-encoded CBOR body
	Query json.RawMessage `json:"query,omitempty"`
}

// WSTransport implements chain.Transport over a single duplex WebSocket
// connection using gorilla/websocket's RPC/pubsub notification style.
type WSTransport struct {
	URL string

	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *WSTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.URL, nil)
	if err != nil {
		return fmt.Errorf("ws transport: dial %s: %w", t.URL, err)
	}
	t.conn = conn
	return nil
}

func (t *WSTransport) call(req wsFrame) (wsFrame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.WriteJSON(req); err != nil {
		return wsFrame{}, fmt.Errorf("ws transport: write: %w", err)
	}
	var resp wsFrame
	if err := t.conn.ReadJSON(&resp); err != nil {
		return wsFrame{}, fmt.Errorf("ws transport: read: %w", err)
	}
	return resp, nil
}

func (t *WSTransport) Tip(context.Context) (model.Point, error) {
	resp, err := t.call(wsFrame{Type: "tip"})
	if err != nil {
		return model.Point{}, err
	}
	return framePoint(resp)
}

func (t *WSTransport) FindIntersect(_ context.Context, candidates []model.Point) (model.Point, error) {
	payload, err := json.Marshal(candidates)
	if err != nil {
		return model.Point{}, fmt.Errorf("ws transport: encode candidates: %w", err)
	}
	resp, err := t.call(wsFrame{Type: "find_intersect", Query: payload})
	if err != nil {
		return model.Point{}, err
	}
	if !resp.Found {
		return model.Point{}, chain.ErrIntersectNotFound
	}
	return framePoint(resp)
}

func (t *WSTransport) IntersectOrigin(context.Context) (model.Point, error) {
	resp, err := t.call(wsFrame{Type: "intersect_origin"})
	if err != nil {
		return model.Point{}, err
	}
	return framePoint(resp)
}

func (t *WSTransport) IntersectTip(context.Context) (model.Point, error) {
	resp, err := t.call(wsFrame{Type: "intersect_tip"})
	if err != nil {
		return model.Point{}, err
	}
	return framePoint(resp)
}

func (t *WSTransport) NextSyncEvent(context.Context) (chain.SyncEvent, error) {
	t.mu.Lock()
	var resp wsFrame
	err := t.conn.ReadJSON(&resp)
	t.mu.Unlock()
	if err != nil {
		return chain.SyncEvent{}, fmt.Errorf("ws transport: read event: %w", err)
	}

	point, err := framePoint(resp)
	if err != nil {
		return chain.SyncEvent{}, err
	}

	var kind chain.SyncEventKind
	switch resp.Kind {
	case "apply":
		kind = chain.SyncApply
	case "undo":
		kind = chain.SyncUndo
	case "reset":
		kind = chain.SyncReset
	default:
		return chain.SyncEvent{}, fmt.Errorf("ws transport: unknown event kind %q", resp.Kind)
	}

	var rec model.Record
	if kind != chain.SyncReset {
		raw, err := decodeHexField(resp.Raw)
		if err != nil {
			return chain.SyncEvent{}, err
		}
		rec = model.NewCborBlockRecord(raw)
	}
	return chain.SyncEvent{Kind: kind, Point: point, Record: rec}, nil
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func framePoint(f wsFrame) (model.Point, error) {
	if f.Slot == 0 && f.Hash == "" {
		return model.Origin(), nil
	}
	hash, err := decodeHexField(f.Hash)
	if err != nil {
		return model.Point{}, err
	}
	return model.NewPoint(f.Slot, hash)
}

func decodeHexField(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	out, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("ws transport: decode hex: %w", err)
	}
	return out, nil
}
