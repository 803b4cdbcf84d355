package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"plotbazaar.io/internal/protocol"
	"plotbazaar.io/internal/sim/world"
)

type Config struct {
	// EventsPerSecond and Burst bound the frames one connection may send.
	// A zero rate disables the limit.
	EventsPerSecond float64
	Burst           int

	// OutQueue is the per-connection buffer between the world and the writer.
	OutQueue int
}

type Server struct {
	world     *world.World
	log       zerolog.Logger
	cfg       Config
	validator *protocol.Validator

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, cfg Config, logger zerolog.Logger) (*Server, error) {
	v, err := protocol.NewValidator()
	if err != nil {
		return nil, err
	}
	if cfg.OutQueue <= 0 {
		cfg.OutQueue = 64
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	s := &Server{
		world:     w,
		log:       logger,
		cfg:       cfg,
		validator: v,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s, nil
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		playerID, out := s.handshake(r.Context(), conn)
		if playerID == "" {
			return
		}
		log := s.log.With().Str("player", playerID).Str("remote", r.RemoteAddr).Logger()
		log.Info().Msg("client connected")

		ctx, cancel := context.WithCancel(r.Context())
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

		var limiter *rate.Limiter
		if s.cfg.EventsPerSecond > 0 {
			limiter = rate.NewLimiter(rate.Limit(s.cfg.EventsPerSecond), s.cfg.Burst)
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug().Err(err).Msg("read failed")
				}
				cancel()
				break
			}
			ref := refOf(msg)
			if limiter != nil && !limiter.Allow() {
				reply(out, ref, protocol.ErrRateLimit, "slow down")
				continue
			}
			base, err := s.validator.Validate(msg)
			if err != nil {
				log.Debug().Err(err).Str("type", base.Type).Msg("frame rejected")
				reply(out, ref, protocol.ErrProtoBadRequest, err.Error())
				continue
			}
			env, ok := envelope(playerID, base.Type, msg)
			if !ok {
				reply(out, ref, protocol.ErrProtoBadRequest, "unexpected "+base.Type)
				continue
			}
			select {
			case s.world.Inbox() <- env:
			case <-ctx.Done():
			default:
				reply(out, ref, protocol.ErrWorldBusy, "world is busy, try again")
			}
		}

		// Cleanup.
		s.world.Leave() <- playerID
		log.Info().Msg("client disconnected")
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (playerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := s.validator.Validate(msg)
	if err != nil || base.Type != protocol.TypeHello {
		reason := "expected HELLO"
		if err != nil && base.Type == protocol.TypeHello {
			reason = err.Error()
		}
		closeWith(conn, websocket.ClosePolicyViolation, reason)
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.Name == "" {
		hello.Name = hello.PlayerID
	}

	out = make(chan []byte, s.cfg.OutQueue)
	respCh := make(chan world.JoinResponse, 1)
	req := world.JoinRequest{PlayerID: hello.PlayerID, Name: hello.Name, Out: out, Resp: respCh}
	select {
	case s.world.Join() <- req:
	case <-ctx.Done():
		return "", nil
	}
	var resp world.JoinResponse
	select {
	case resp = <-respCh:
	case <-ctx.Done():
		return "", nil
	}
	if resp.Code != "" {
		_ = writeJSON(conn, result("", resp.Code, resp.Message))
		closeWith(conn, websocket.ClosePolicyViolation, resp.Code)
		return "", nil
	}

	// WELCOME goes out before anything the world queued for this player.
	if err := writeJSON(conn, resp.Welcome); err != nil {
		return "", nil
	}
	return resp.Welcome.PlayerID, out
}

// envelope decodes an already validated frame into a world action.
func envelope(playerID, typ string, msg []byte) (world.ActionEnvelope, bool) {
	env := world.ActionEnvelope{PlayerID: playerID}
	switch typ {
	case protocol.TypeMutate:
		var m protocol.MutateMsg
		if json.Unmarshal(msg, &m) != nil {
			return env, false
		}
		env.Mutate = &m
	case protocol.TypeCmd:
		var c protocol.CmdMsg
		if json.Unmarshal(msg, &c) != nil {
			return env, false
		}
		env.Cmd = &c
	case protocol.TypeMoveTo:
		var m protocol.MoveToMsg
		if json.Unmarshal(msg, &m) != nil {
			return env, false
		}
		env.MoveTo = &m
	default:
		return env, false
	}
	return env, true
}

func refOf(msg []byte) string {
	var r struct {
		Ref string `json:"ref"`
	}
	_ = json.Unmarshal(msg, &r)
	return r.Ref
}

func result(ref, code, msg string) protocol.ResultMsg {
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Ref:             ref,
		OK:              false,
		Code:            code,
		Message:         msg,
	}
}

// reply queues a failed RESULT behind whatever the world already sent. It
// drops the frame when the queue is full.
func reply(out chan []byte, ref, code, msg string) {
	b, err := json.Marshal(result(ref, code, msg))
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	}
	return nil
}
