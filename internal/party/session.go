package party

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// playback is the play cursor. The current position is derived lazily from
// position and anchor; nothing ticks.
type playback struct {
	index    int // -1 when no track is selected
	length   int
	playing  bool
	position float64   // seconds into the track at anchor
	anchor   time.Time // re-anchored on every toggle and jump
}

func (p playback) elapsed(now time.Time) float64 {
	if p.index < 0 {
		return 0
	}

	pos := p.position
	if p.playing {
		pos += now.Sub(p.anchor).Seconds()
	}

	return min(max(pos, 0), float64(p.length))
}

// finished reports whether the cursor has reached the end of its track.
func (p playback) finished(now time.Time) bool {
	return p.index >= 0 && p.elapsed(now) >= float64(p.length)
}

type member struct {
	conn    Conn
	profile Member
	seq     uint64
}

// Session owns one queue, one play cursor and one member set. Every
// operation, including its broadcast, runs under the session lock, so
// operations on a session execute one at a time in call order.
type Session struct {
	id     string
	hub    *Hub
	logger zerolog.Logger
	now    func() time.Time

	mu          sync.Mutex
	members     map[string]*member
	seq         uint64
	queue       []Track
	pb          playback
	finishVotes int

	// closed is only set under mu, but may be read without it so the
	// registry never waits on a session lock.
	closed atomic.Bool
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source used for elapsed-time computation.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession creates an empty session.
func NewSession(id string, hub *Hub, logger zerolog.Logger, opts ...Option) *Session {
	s := &Session{
		id:      id,
		hub:     hub,
		logger:  logger.With().Str("session", id).Logger(),
		now:     time.Now,
		members: make(map[string]*member),
		pb:      playback{index: -1},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Join adds conn as a member with an empty profile, broadcasts the member
// list and sends the joiner the queue and a playback snapshot.
func (s *Session) Join(ctx context.Context, conn Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.seq++
	s.members[conn.ID()] = &member{
		conn:    conn,
		profile: Member{ID: conn.ID()},
		seq:     s.seq,
	}

	s.logger.Debug().Str("conn", conn.ID()).Int("members", len(s.members)).Msg("Member joined")

	if err := s.broadcastLocked(ctx, s.usersEventLocked()); err != nil {
		return err
	}

	for _, event := range []any{s.queueEventLocked(), s.stateEventLocked()} {
		if err := s.hub.SendTo(ctx, conn, event); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to send snapshot to new member")
		}
	}

	return nil
}

// Leave removes a member. It reports true when the session is now empty, in
// which case the session is closed and must be released by its registry.
func (s *Session) Leave(ctx context.Context, connID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return true, nil
	}

	delete(s.members, connID)
	s.finishVotes = min(s.finishVotes, len(s.members))

	if len(s.members) == 0 {
		s.closed.Store(true)
		s.logger.Debug().Msg("Last member left")
		return true, nil
	}

	return false, s.broadcastLocked(ctx, s.usersEventLocked())
}

// SetProfile replaces the profile attributes of a member. Attributes left
// nil in p are cleared.
func (s *Session) SetProfile(ctx context.Context, connID string, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[connID]
	if !ok {
		return ErrNotMember
	}

	m.profile.Name = p.Name
	m.profile.Identifier = p.Identifier
	m.profile.Art = p.Art

	return s.broadcastLocked(ctx, s.usersEventLocked())
}

// SetPlaying resumes or pauses playback, preserving the current position.
// Setting the same value again still re-broadcasts the state.
func (s *Session) SetPlaying(ctx context.Context, playing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if playing && s.pb.index < 0 {
		return errorf(KindIndex, "no track selected")
	}

	now := s.now()
	s.pb.position = s.pb.elapsed(now)
	s.pb.anchor = now
	s.pb.playing = playing

	return s.broadcastLocked(ctx, s.stateEventLocked())
}

// AddTrack appends t to the queue. When the queue was exhausted (no track
// selected yet, or the last track played to its end) the new track is
// selected and starts playing.
func (s *Session) AddTrack(ctx context.Context, t Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Length < 0 {
		return errorf(KindRequest, "track length must not be negative")
	}

	exhausted := s.pb.index == len(s.queue)-1 &&
		(s.pb.index < 0 || s.pb.finished(s.now()))
	s.queue = append(s.queue, t)

	if exhausted {
		// Cannot fail: the new index is len-1 and seek 0 is always in range.
		_ = s.jumpLocked(1, 0)
	}

	if err := s.broadcastLocked(ctx, s.queueEventLocked()); err != nil {
		return err
	}
	if exhausted {
		return s.broadcastLocked(ctx, s.stateEventLocked())
	}
	return nil
}

// RemoveTrack deletes the track at an absolute queue position. Position 0 is
// protected. The cursor keeps its numeric value while it stays in range;
// when the track under it changes, the new track is loaded from its start
// and finish votes are cleared. A cursor pushed past the end follows its
// track if that track survived, and otherwise rests on the new last track
// as finished.
func (s *Session) RemoveTrack(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index == 0 {
		return errorf(KindIndex, "cannot remove the track at position 0")
	}
	if index < 0 || index >= len(s.queue) {
		return errorf(KindIndex, "index %d out of range for queue of %d", index, len(s.queue))
	}

	s.queue = slices.Delete(s.queue, index, index+1)

	cur, now := s.pb.index, s.now()
	switch {
	case index > cur:
		// The current track is untouched.
		return s.broadcastLocked(ctx, s.queueEventLocked())

	case cur < len(s.queue):
		t := s.queue[cur]
		s.pb = playback{
			index:   cur,
			length:  t.Length,
			playing: s.pb.playing,
			anchor:  now,
		}
		s.finishVotes = 0

	case index < cur:
		// The current track slid onto the last slot; keep playing it.
		s.pb.index = len(s.queue) - 1

	default:
		last := len(s.queue) - 1
		s.pb = playback{
			index:    last,
			length:   s.queue[last].Length,
			position: float64(s.queue[last].Length),
			anchor:   now,
		}
		s.finishVotes = 0
	}

	if err := s.broadcastLocked(ctx, s.queueEventLocked()); err != nil {
		return err
	}
	return s.broadcastLocked(ctx, s.stateEventLocked())
}

// Jump moves the cursor by offset and starts playing at seek seconds.
func (s *Session) Jump(ctx context.Context, offset, seek int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.jumpLocked(offset, seek); err != nil {
		return err
	}

	return s.broadcastLocked(ctx, s.stateEventLocked())
}

// MarkFinished records that a member reached the end of the current track.
// Once votes reach the live member count the cursor advances, unless it is
// already on the last track.
func (s *Session) MarkFinished(ctx context.Context, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[connID]; !ok {
		return ErrNotMember
	}

	s.finishVotes++
	if s.finishVotes < len(s.members) {
		return nil
	}

	s.finishVotes = 0
	if s.pb.index == len(s.queue)-1 {
		return nil
	}

	if err := s.jumpLocked(1, 0); err != nil {
		return err
	}

	return s.broadcastLocked(ctx, s.stateEventLocked())
}

// jumpLocked validates before mutating anything.
func (s *Session) jumpLocked(offset, seek int) error {
	next := s.pb.index + offset
	if next < 0 || next >= len(s.queue) {
		return errorf(KindIndex, "queue index %d out of range for queue of %d", next, len(s.queue))
	}

	t := s.queue[next]
	if seek < 0 || seek > t.Length {
		return errorf(KindTimeRange, "time %d outside track length %d", seek, t.Length)
	}

	s.finishVotes = 0
	s.pb = playback{
		index:    next,
		length:   t.Length,
		playing:  true,
		position: float64(seek),
		anchor:   s.now(),
	}

	return nil
}

func (s *Session) broadcastLocked(ctx context.Context, event any) error {
	conns := lo.MapToSlice(s.members, func(_ string, m *member) Conn {
		return m.conn
	})
	return s.hub.Broadcast(ctx, conns, event)
}

func (s *Session) stateEventLocked() StateEvent {
	return StateEvent{
		Type:        EventState,
		CurrentTime: s.pb.elapsed(s.now()),
		Length:      s.pb.length,
		Playing:     s.pb.playing,
		QueueIndex:  s.pb.index,
	}
}

func (s *Session) usersEventLocked() UsersEvent {
	members := lo.Values(s.members)
	slices.SortFunc(members, func(a, b *member) int {
		return cmp.Compare(a.seq, b.seq)
	})

	return UsersEvent{
		Type:  EventUsers,
		Count: len(members),
		Users: lo.Map(members, func(m *member, _ int) Member {
			return m.profile
		}),
	}
}

func (s *Session) queueEventLocked() QueueEvent {
	queue := slices.Clone(s.queue)
	if queue == nil {
		queue = []Track{}
	}

	return QueueEvent{
		Type:  EventQueue,
		Queue: queue,
		Index: s.pb.index,
	}
}

// Snapshot is a point-in-time copy of session state.
type Snapshot struct {
	Members     []Member
	Queue       []Track
	QueueIndex  int
	Length      int
	Playing     bool
	Elapsed     float64
	FinishVotes int
	Closed      bool
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Members:     s.usersEventLocked().Users,
		Queue:       slices.Clone(s.queue),
		QueueIndex:  s.pb.index,
		Length:      s.pb.length,
		Playing:     s.pb.playing,
		Elapsed:     s.pb.elapsed(s.now()),
		FinishVotes: s.finishVotes,
		Closed:      s.closed.Load(),
	}
}

func (s *Session) isClosed() bool {
	return s.closed.Load()
}
