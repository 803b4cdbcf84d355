package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	reflectschema "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// inbound lists the frames a client may send.
var inbound = map[string]any{
	TypeHello:  HelloMsg{},
	TypeMutate: MutateMsg{},
	TypeCmd:    CmdMsg{},
	TypeMoveTo: MoveToMsg{},
}

var outbound = map[string]any{
	TypeWelcome:   WelcomeMsg{},
	TypeResult:    ResultMsg{},
	TypeNotice:    NoticeMsg{},
	TypeStatus:    StatusMsg{},
	TypeContainer: ContainerMsg{},
}

// SchemaJSON reflects the JSON schema of a message struct. Fields without
// omitempty are required and unknown properties are rejected.
func SchemaJSON(msg any) ([]byte, error) {
	r := reflectschema.Reflector{DoNotReference: true}
	s := r.Reflect(msg)
	if s == nil {
		return nil, fmt.Errorf("reflect %T: no schema", msg)
	}
	return json.MarshalIndent(s, "", "  ")
}

// Schemas returns every message schema keyed by message type.
func Schemas() (map[string][]byte, error) {
	out := make(map[string][]byte, len(inbound)+len(outbound))
	for _, set := range []map[string]any{inbound, outbound} {
		for typ, msg := range set {
			b, err := SchemaJSON(msg)
			if err != nil {
				return nil, err
			}
			out[typ] = b
		}
	}
	return out, nil
}

// Validator checks raw inbound frames against the reflected schemas.
type Validator struct {
	byType map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	types := make([]string, 0, len(inbound))
	for typ := range inbound {
		types = append(types, typ)
	}
	sort.Strings(types)

	v := &Validator{byType: make(map[string]*jsonschema.Schema, len(types))}
	for _, typ := range types {
		raw, err := SchemaJSON(inbound[typ])
		if err != nil {
			return nil, err
		}
		url := "mem://protocol/" + typ + ".schema.json"
		if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", typ, err)
		}
		s, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", typ, err)
		}
		v.byType[typ] = s
	}
	return v, nil
}

// Validate routes the frame by type, checks the protocol version, and
// validates the whole frame against that type's schema.
func (v *Validator) Validate(b []byte) (BaseMessage, error) {
	base, err := DecodeBase(b)
	if err != nil {
		return base, fmt.Errorf("bad json: %w", err)
	}
	s, ok := v.byType[base.Type]
	if !ok {
		return base, fmt.Errorf("unknown message type %q", base.Type)
	}
	if base.ProtocolVersion != Version {
		return base, fmt.Errorf("unsupported protocol_version %q", base.ProtocolVersion)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return base, fmt.Errorf("bad json: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return base, fmt.Errorf("%s: %w", base.Type, err)
	}
	return base, nil
}
