package party

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Inbound actions.
const (
	ActionSetProfile = "set_profile"
	ActionPlay       = "play"
	ActionPause      = "pause"
	ActionAdd        = "add"
	ActionRemove     = "remove"
	ActionJump       = "jump"
	ActionFinished   = "finished"
)

// internalMessage is the only text clients see for unexpected failures.
const internalMessage = "internal server error"

// Dispatcher validates inbound messages and applies them to a session.
type Dispatcher struct {
	resolver Resolver
	hub      *Hub
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher that resolves added tracks with r.
func NewDispatcher(r Resolver, hub *Hub, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		resolver: r,
		hub:      hub,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// fields holds a decoded message. Null values are dropped on decode so
// that null and absent mean the same thing.
type fields map[string]json.RawMessage

// Handle applies one raw message from conn to s. Failures are reported to
// conn as an error event; the returned error is non-nil only when that
// reply itself could not be delivered.
func (d *Dispatcher) Handle(ctx context.Context, s *Session, conn Conn, raw []byte) error {
	err := d.dispatch(ctx, s, conn, raw)
	if err == nil {
		return nil
	}

	kind, message, known := describe(err)
	if !known {
		d.logger.Error().
			Err(err).
			Str("session", s.ID()).
			Str("conn", conn.ID()).
			Bytes("message", raw).
			Msg("Command failed")
	} else {
		d.logger.Debug().
			Err(err).
			Str("session", s.ID()).
			Str("conn", conn.ID()).
			Msg("Command rejected")
	}

	return d.hub.SendTo(ctx, conn, NewErrorEvent(kind, message))
}

func (d *Dispatcher) dispatch(ctx context.Context, s *Session, conn Conn, raw []byte) error {
	f, err := decodeFields(raw)
	if err != nil {
		return err
	}

	action, err := f.requiredString("action")
	if err != nil {
		return err
	}

	switch action {
	case ActionSetProfile:
		var p Profile
		if p.Name, err = f.optionalString("name"); err != nil {
			return err
		}
		if p.Identifier, err = f.optionalString("identifier"); err != nil {
			return err
		}
		if p.Art, err = f.optionalString("art"); err != nil {
			return err
		}
		return s.SetProfile(ctx, conn.ID(), p)

	case ActionPlay:
		return s.SetPlaying(ctx, true)

	case ActionPause:
		return s.SetPlaying(ctx, false)

	case ActionAdd:
		track, err := d.resolve(ctx, f)
		if err != nil {
			return err
		}
		return s.AddTrack(ctx, track)

	case ActionRemove:
		index, err := f.requiredInt("index")
		if err != nil {
			return err
		}
		return s.RemoveTrack(ctx, index)

	case ActionJump:
		offset, err := f.requiredInt("index")
		if err != nil {
			return err
		}
		seek, err := f.optionalInt("time")
		if err != nil {
			return err
		}
		return s.Jump(ctx, offset, seek)

	case ActionFinished:
		return s.MarkFinished(ctx, conn.ID())

	default:
		return errorf(KindRequest, "unsupported action %q", action)
	}
}

// resolve looks up the track named by exactly one of query or videoId.
func (d *Dispatcher) resolve(ctx context.Context, f fields) (Track, error) {
	query, err := f.optionalString("query")
	if err != nil {
		return Track{}, err
	}
	id, err := f.optionalString("videoId")
	if err != nil {
		return Track{}, err
	}

	switch {
	case query != nil && id != nil:
		return Track{}, errorf(KindRequest, "add takes one of query or videoId, not both")
	case query != nil:
		q := strings.TrimSpace(*query)
		if q == "" {
			return Track{}, errorf(KindRequest, "query must not be empty")
		}
		track, err := d.resolver.ResolveByQuery(ctx, q)
		if err != nil {
			return Track{}, fmt.Errorf("resolve query %q: %w", q, err)
		}
		return track, nil
	case id != nil:
		track, err := d.resolver.ResolveByID(ctx, *id)
		if err != nil {
			return Track{}, fmt.Errorf("resolve id %q: %w", *id, err)
		}
		return track, nil
	default:
		return Track{}, errorf(KindRequest, "add requires query or videoId")
	}
}

func decodeFields(raw []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil || f == nil {
		return nil, errorf(KindRequest, "message must be a JSON object")
	}
	for k, v := range f {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			delete(f, k)
		}
	}
	return f, nil
}

func (f fields) requiredString(key string) (string, error) {
	v, err := f.optionalString(key)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", errorf(KindRequest, "missing field %q", key)
	}
	return *v, nil
}

func (f fields) optionalString(key string) (*string, error) {
	raw, ok := f[key]
	if !ok {
		return nil, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errorf(KindRequest, "field %q must be a string", key)
	}
	return &v, nil
}

func (f fields) requiredInt(key string) (int, error) {
	if _, ok := f[key]; !ok {
		return 0, errorf(KindRequest, "missing field %q", key)
	}
	return f.optionalInt(key)
}

// optionalInt accepts JSON numbers without a fractional part. A missing
// field reads as 0.
func (f fields) optionalInt(key string) (int, error) {
	raw, ok := f[key]
	if !ok {
		return 0, nil
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return 0, errorf(KindRequest, "field %q must be an integer", key)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, errorf(KindRequest, "field %q must be an integer", key)
	}
	v, err := n.Int64()
	if err != nil {
		return 0, errorf(KindRequest, "field %q must be an integer", key)
	}
	return int(v), nil
}
