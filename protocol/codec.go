package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks a line that is not a valid message. Callers drop it and
// keep the connection.
var ErrMalformed = errors.New("malformed message")

type rawObject map[string]json.RawMessage

// Encode renders msg as one JSON object with its "type" field first. The
// result carries no trailing newline; framing is the transport's job.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("trying to encode nil message")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encode %s: payload is not an object", msg.Type())
	}

	var b bytes.Buffer
	b.Grow(len(body) + 24)
	b.WriteString(`{"type":`)
	typ, _ := json.Marshal(string(msg.Type()))
	b.Write(typ)
	if len(body) > 2 {
		b.WriteByte(',')
	}
	b.Write(body[1:])
	return b.Bytes(), nil
}

// Decode parses one line into its message variant, validating required
// fields. Every failure wraps ErrMalformed.
func Decode(line []byte) (Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformed)
	}
	var obj rawObject
	if err := json.Unmarshal(line, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	var typ string
	if err := obj.require("type", &typ); err != nil {
		return nil, err
	}

	switch Type(typ) {
	case TypeMapSelect:
		return decodeMapSelect(obj)
	case TypeInput:
		return decodeInput(obj)
	case TypeState:
		return decodeState(obj)
	case TypeRematchVote:
		var m RematchVote
		if err := obj.require("vote", &m.Vote); err != nil {
			return nil, err
		}
		return m, nil
	case TypeMatchResult:
		var m MatchResult
		if err := obj.require("action", &m.Action); err != nil {
			return nil, err
		}
		if m.Action != ActionRestart && m.Action != ActionQuit {
			return nil, fmt.Errorf("%w: unknown action %q", ErrMalformed, m.Action)
		}
		return m, nil
	case TypeRoomAnnounce:
		return decodeAnnounce(obj)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, typ)
	}
}

func decodeMapSelect(obj rawObject) (Message, error) {
	var m MapSelect
	if err := obj.require("map", &m.Map); err != nil {
		return nil, err
	}
	if _, err := obj.optional("start", &m.Start); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeInput(obj rawObject) (Message, error) {
	var m Input
	for key, dst := range map[string]*bool{
		"throttle": &m.Throttle,
		"brake":    &m.Brake,
		"left":     &m.Left,
		"right":    &m.Right,
		"boost":    &m.Boost,
	} {
		if err := obj.require(key, dst); err != nil {
			return nil, err
		}
	}
	if _, err := obj.optional("emote_req", &m.EmoteReq); err != nil {
		return nil, err
	}
	if m.EmoteReq < 0 || m.EmoteReq > 5 {
		return nil, fmt.Errorf("%w: emote_req %d out of range", ErrMalformed, m.EmoteReq)
	}
	return m, nil
}

func decodeAnnounce(obj rawObject) (Message, error) {
	var m RoomAnnounce
	if err := obj.require("room_id", &m.RoomID); err != nil {
		return nil, err
	}
	if m.RoomID == "" {
		return nil, fmt.Errorf("%w: empty room_id", ErrMalformed)
	}
	for key, dst := range map[string]any{
		"room_name": &m.RoomName,
		"ip":        &m.IP,
		"port":      &m.Port,
		"ts":        &m.TS,
	} {
		if _, err := obj.optional(key, dst); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// decodeState accepts any subset of fields. Absent or null non-nullable
// fields are left out of the presence set so the receiver keeps its own
// value; null start_at, go_until or winner are present and mean "unset".
func decodeState(obj rawObject) (Message, error) {
	st := &State{fields: make(map[string]bool)}
	scalars := map[string]any{
		"server_time":  &st.ServerTime,
		"race_started": &st.RaceStarted,
		"map":          &st.Map,
		"cp1":          &st.CP1,
		"cp2":          &st.CP2,
	}
	for key, dst := range scalars {
		ok, err := obj.optional(key, dst)
		if err != nil {
			return nil, err
		}
		st.fields[key] = ok
	}
	for key, dst := range map[string]any{
		"start_at": &st.StartAt,
		"go_until": &st.GoUntil,
		"winner":   &st.Winner,
	} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fieldErr(key, err)
		}
		st.fields[key] = true
	}
	if st.Winner != nil && *st.Winner != "P1" && *st.Winner != "P2" {
		return nil, fmt.Errorf("%w: winner %q", ErrMalformed, *st.Winner)
	}

	if raw, ok := obj["items"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &st.Items); err != nil {
			return nil, fieldErr("items", err)
		}
		if st.Items == nil {
			st.Items = []ItemPos{}
		}
		st.fields["items"] = true
	}

	for _, car := range []struct {
		key string
		dst *CarState
	}{{"car1", &st.Car1}, {"car2", &st.Car2}} {
		if err := decodeCar(obj, car.key, car.dst, st.fields); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func decodeCar(obj rawObject, key string, dst *CarState, fields map[string]bool) error {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return nil
	}
	var sub rawObject
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fieldErr(key, err)
	}
	fields[key] = true
	for name, p := range map[string]any{
		"x":  &dst.X,
		"y":  &dst.Y,
		"a":  &dst.A,
		"s":  &dst.S,
		"e":  &dst.E,
		"hi": &dst.HI,
		"bt": &dst.BT,
	} {
		ok, err := sub.optional(name, p)
		if err != nil {
			return fieldErr(key+"."+name, err)
		}
		fields[key+"."+name] = ok
	}
	if dst.E < 0 || dst.E > 5 {
		return fmt.Errorf("%w: %s.e %d out of range", ErrMalformed, key, dst.E)
	}
	return nil
}

// require decodes key into dst, failing when it is absent, null or of the
// wrong JSON type.
func (o rawObject) require(key string, dst any) error {
	ok, err := o.optional(key, dst)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: missing %q", ErrMalformed, key)
	}
	return nil
}

// optional decodes key into dst when present and not null.
func (o rawObject) optional(key string, dst any) (bool, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fieldErr(key, err)
	}
	return true, nil
}

func fieldErr(key string, err error) error {
	if errors.Is(err, ErrMalformed) {
		return err
	}
	return fmt.Errorf("%w: field %q: %v", ErrMalformed, key, err)
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
