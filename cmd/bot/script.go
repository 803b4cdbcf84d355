package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"plotbazaar.io/internal/protocol"
)

// step is one parsed script line: a frame to send or a pause.
type step struct {
	Frame any
	Wait  time.Duration
}

// parseLine turns one script line into a step. Blank lines and # comments
// yield ok=false.
//
//	move 10 0 10
//	/addcost coin 25
//	mutate move from_slot=0 to=stand_3 to_slot=0
//	wait 500ms
func parseLine(line string, ref string) (st step, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return st, false, nil
	}
	fields := strings.Fields(line)
	switch {
	case strings.HasPrefix(fields[0], "/"):
		cmd := strings.TrimPrefix(fields[0], "/")
		if cmd == "" {
			return st, false, fmt.Errorf("empty command")
		}
		st.Frame = protocol.CmdMsg{
			Type:            protocol.TypeCmd,
			ProtocolVersion: protocol.Version,
			Ref:             ref,
			Cmd:             cmd,
			Args:            fields[1:],
		}
	case fields[0] == "move":
		if len(fields) != 4 {
			return st, false, fmt.Errorf("move needs x y z")
		}
		var pos [3]float64
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return st, false, fmt.Errorf("move: %w", err)
			}
			pos[i] = v
		}
		st.Frame = protocol.MoveToMsg{Type: protocol.TypeMoveTo, ProtocolVersion: protocol.Version, Pos: pos}
	case fields[0] == "mutate":
		if len(fields) < 2 {
			return st, false, fmt.Errorf("mutate needs a kind")
		}
		m := protocol.MutateMsg{Type: protocol.TypeMutate, ProtocolVersion: protocol.Version, Ref: ref, Kind: fields[1]}
		for _, kv := range fields[2:] {
			k, v, found := strings.Cut(kv, "=")
			if !found {
				return st, false, fmt.Errorf("mutate: expected key=value, got %q", kv)
			}
			if err := setMutateField(&m, k, v); err != nil {
				return st, false, err
			}
		}
		st.Frame = m
	case fields[0] == "wait":
		if len(fields) != 2 {
			return st, false, fmt.Errorf("wait needs a duration")
		}
		d, err := time.ParseDuration(fields[1])
		if err != nil {
			return st, false, fmt.Errorf("wait: %w", err)
		}
		st.Wait = d
	default:
		return st, false, fmt.Errorf("unknown directive %q", fields[0])
	}
	return st, true, nil
}

func setMutateField(m *protocol.MutateMsg, k, v string) error {
	switch k {
	case "from":
		m.From = v
	case "to":
		m.To = v
	case "item":
		m.Item = v
	case "from_slot", "to_slot", "amount":
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("mutate %s: %w", k, err)
		}
		switch k {
		case "from_slot":
			m.FromSlot = &n
		case "to_slot":
			m.ToSlot = &n
		default:
			m.Amount = n
		}
	default:
		return fmt.Errorf("mutate: unknown field %q", k)
	}
	return nil
}
