package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelmesh.ai/internal/engine"
	"voxelmesh.ai/internal/protocol"
)

// Host is the part of the engine a viewer connection talks to.
type Host interface {
	Join() chan<- engine.JoinRequest
	Leave() chan<- string
	Inbox() chan<- engine.EditRequest
}

type Server struct {
	host Host
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(h Host, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		host: h,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 256 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out := s.handshake(conn)
		if sessionID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			if req, ok := s.decode(msg, out); ok {
				req.SessionID = sessionID
				s.host.Inbox() <- req
			}
		}

		// Cleanup.
		s.host.Leave() <- sessionID
	}
}

// decode turns one inbound frame into an engine request. Invalid EDIT and SELECT_FRAME
// messages are answered with a rejecting ACK here; anything else is ignored.
func (s *Server) decode(msg []byte, out chan []byte) (engine.EditRequest, bool) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return engine.EditRequest{}, false
	}
	if base.Type != protocol.TypeEdit && base.Type != protocol.TypeSelectFrame {
		return engine.EditRequest{}, false
	}
	if base.ProtocolVersion != protocol.Version {
		reject(out, "", protocol.ErrProtoBadRequest, "bad protocol_version")
		return engine.EditRequest{}, false
	}
	if err := protocol.ValidateAs(base.Type, msg); err != nil {
		reject(out, editID(msg), protocol.ErrBadRequest, err.Error())
		return engine.EditRequest{}, false
	}
	switch base.Type {
	case protocol.TypeEdit:
		var m protocol.EditMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			reject(out, editID(msg), protocol.ErrBadRequest, err.Error())
			return engine.EditRequest{}, false
		}
		return engine.EditRequest{Edit: &m}, true
	default:
		var m protocol.SelectFrameMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			reject(out, editID(msg), protocol.ErrBadRequest, err.Error())
			return engine.EditRequest{}, false
		}
		return engine.EditRequest{Select: &m}, true
	}
}

func editID(msg []byte) string {
	var m struct {
		EditID string `json:"edit_id"`
	}
	_ = json.Unmarshal(msg, &m)
	return m.EditID
}

func reject(out chan []byte, ackFor, code, message string) {
	b, err := json.Marshal(protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          ackFor,
		Accepted:        false,
		Code:            code,
		Message:         message,
	})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	name := strings.TrimSpace(hello.ViewerName)
	if name == "" {
		name = "viewer"
	}

	maxMeshes := hello.Capabilities.MaxMeshesPerTick
	if maxMeshes < 0 {
		maxMeshes = 0
	}
	out = make(chan []byte, 256)

	sessionID = uuid.NewString()
	respCh := make(chan engine.JoinResponse, 1)
	s.host.Join() <- engine.JoinRequest{
		SessionID:        sessionID,
		Name:             name,
		Edits:            hello.Capabilities.Edits,
		MaxMeshesPerTick: maxMeshes,
		Out:              out,
		Resp:             respCh,
	}
	resp := <-respCh

	// Send welcome immediately; FRAME and meshes follow on the next tick.
	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.host.Leave() <- sessionID
		return "", nil
	}
	s.log.Printf("viewer %s joined session=%s edits=%v", name, sessionID, hello.Capabilities.Edits)
	return sessionID, out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
