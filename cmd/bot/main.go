package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"plotbazaar.io/internal/logging"
	"plotbazaar.io/internal/protocol"
)

// bot is a scripted market client: it joins as one player, plays a script of
// moves, commands and mutations, and logs every frame the server sends.
func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		id     = flag.String("id", "bot", "player id")
		name   = flag.String("name", "", "display name (defaults to id)")
		script = flag.String("script", "-", "script file, - for stdin")
		linger = flag.Duration("linger", time.Second, "how long to keep reading after the script ends")
		pace   = flag.Duration("pace", 100*time.Millisecond, "pause between script lines")
	)
	flag.Parse()

	logger := logging.Component(logging.NewRuntime(), "bot").With().Str("player", *id).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *url, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("dial")
	}
	defer conn.Close()

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, PlayerID: *id, Name: *name}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatal().Err(err).Msg("send HELLO")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		readFrames(conn, logger)
	}()

	in := io.Reader(os.Stdin)
	if *script != "-" {
		f, err := os.Open(*script)
		if err != nil {
			logger.Fatal().Err(err).Msg("open script")
		}
		defer f.Close()
		in = f
	}
	if err := play(ctx, conn, in, *pace, logger); err != nil {
		logger.Error().Err(err).Msg("script aborted")
	}

	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(*linger):
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
}

func play(ctx context.Context, conn *websocket.Conn, in io.Reader, pace time.Duration, logger zerolog.Logger) error {
	sc := bufio.NewScanner(in)
	n := 0
	for sc.Scan() {
		n++
		st, ok, err := parseLine(sc.Text(), "s"+strconv.Itoa(n))
		if err != nil {
			logger.Warn().Err(err).Int("line", n).Msg("skipping line")
			continue
		}
		if !ok {
			continue
		}
		wait := pace
		if st.Frame != nil {
			if err := conn.WriteJSON(st.Frame); err != nil {
				return err
			}
		} else {
			wait = st.Wait
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return sc.Err()
}

func readFrames(conn *websocket.Conn, logger zerolog.Logger) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if json.Unmarshal(msg, &w) == nil {
				logger.Info().Str("session", w.SessionID).Str("inventory", w.Inventory).Int("tick_rate_hz", w.TickRateHz).Msg("WELCOME")
			}
		case protocol.TypeResult:
			var r protocol.ResultMsg
			if json.Unmarshal(msg, &r) == nil {
				ev := logger.Info()
				if !r.OK {
					ev = logger.Warn().Str("code", r.Code)
				}
				ev.Str("ref", r.Ref).Str("status", r.Status).Msg(r.Message)
			}
		case protocol.TypeNotice:
			var n protocol.NoticeMsg
			if json.Unmarshal(msg, &n) == nil {
				logger.Info().Msg("NOTICE " + n.Text)
			}
		default:
			logger.Debug().RawJSON("frame", msg).Msg(base.Type)
		}
	}
}
