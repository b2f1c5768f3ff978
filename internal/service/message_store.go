package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crmtriage/internal/models"
)

// Notifier receives a change event after every successful mutation
type Notifier interface {
	Publish(ctx context.Context, event *models.ChangeEvent)
}

// Observer records store activity (metrics)
type Observer interface {
	ObserveMutation(board, op string, err error)
	ObserveView(board string, matched int)
	ObserveBuckets(board string, sizes map[string]int)
}

// Mutation operation names reported to the Observer
const (
	OpAppend         = "append"
	OpMoveStatus     = "move_status"
	OpToggleTag      = "toggle_tag"
	OpAppendResponse = "append_response"
)

// MessageStore is the only component that writes messages. Writes on one
// message are serialized by that message's lock; the board index and the
// published snapshot are updated together under a short store lock. Reads
// work on the last published snapshot and take no locks. Change events
// reach the Notifier in commit order.
type MessageStore struct {
	board     string
	pipeline  *StatusPipeline
	tags      *TagRegistry
	engine    *FilterEngine
	directory Directory
	notifier  Notifier
	observer  Observer
	now       func() time.Time
	newID     func() string
	logger    zerolog.Logger

	mu       sync.RWMutex
	records  map[string]*record
	snapshot atomic.Pointer[snapshot]

	// emitMu is taken while mu is still held, so events leave in the
	// same order as the commits that produced them.
	emitMu sync.Mutex
}

// record holds the committed state of one message. msg is written only
// while both record.mu and MessageStore.mu are held.
type record struct {
	mu  sync.Mutex
	msg models.Message
}

// snapshot is an immutable, ordered copy of the board
type snapshot struct {
	ordered []models.Message
}

// StoreOption configures a MessageStore
type StoreOption func(*MessageStore)

// WithClock sets the clock used for createdAt and authoredAt stamps
func WithClock(now func() time.Time) StoreOption {
	return func(s *MessageStore) { s.now = now }
}

// WithNotifier sets the change notification hook
func WithNotifier(n Notifier) StoreOption {
	return func(s *MessageStore) { s.notifier = n }
}

// WithObserver sets the activity observer
func WithObserver(o Observer) StoreOption {
	return func(s *MessageStore) { s.observer = o }
}

// WithDirectory sets the lookup used to join display names into views
func WithDirectory(d Directory) StoreOption {
	return func(s *MessageStore) { s.directory = d }
}

// WithFilterEngine sets the engine used by View
func WithFilterEngine(e *FilterEngine) StoreOption {
	return func(s *MessageStore) { s.engine = e }
}

// WithIDGenerator sets the generator for messages appended without an ID
func WithIDGenerator(gen func() string) StoreOption {
	return func(s *MessageStore) { s.newID = gen }
}

// WithLogger sets the store logger
func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *MessageStore) { s.logger = l }
}

// NewMessageStore creates an empty store for one board
func NewMessageStore(board string, pipeline *StatusPipeline, tags *TagRegistry, opts ...StoreOption) *MessageStore {
	s := &MessageStore{
		board:     board,
		pipeline:  pipeline,
		tags:      tags,
		directory: NewStaticDirectory(nil, nil),
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    zerolog.Nop(),
		records:   make(map[string]*record),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = NewFilterEngine(s.now, nil)
	}
	s.snapshot.Store(&snapshot{})
	return s
}

// Board returns the board ID
func (s *MessageStore) Board() string {
	return s.board
}

// Pipeline returns the board's status pipeline
func (s *MessageStore) Pipeline() *StatusPipeline {
	return s.pipeline
}

// Len returns the number of messages on the board
func (s *MessageStore) Len() int {
	return len(s.snapshot.Load().ordered)
}

// Load bootstraps the store from persisted messages. Messages are placed in
// their status bucket in input order. Nothing is loaded if any message is
// invalid.
func (s *MessageStore) Load(messages []models.Message) error {
	seen := make(map[string]struct{}, len(messages))
	for i := range messages {
		m := &messages[i]
		if m.ID == "" {
			return &ValidationError{Message: "persisted message without id"}
		}
		if _, dup := seen[m.ID]; dup {
			return &ConflictError{Resource: "message", Message: fmt.Sprintf("duplicate message id %s", m.ID)}
		}
		seen[m.ID] = struct{}{}
		if err := s.pipeline.CheckState(m.Status); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range seen {
		if _, exists := s.records[id]; exists {
			return &ConflictError{Resource: "message", Message: fmt.Sprintf("message %s already loaded", id)}
		}
	}
	for i := range messages {
		m := messages[i].Clone()
		m.Tags = models.NewTagSet(m.Tags...)
		if err := s.pipeline.Insert(m.ID, m.Status); err != nil {
			return err
		}
		s.records[m.ID] = &record{msg: m}
	}
	s.publishLocked()
	return nil
}

// Append adds a new message at the tail of the initial status bucket
func (s *MessageStore) Append(ctx context.Context, msg models.Message) (models.MessageView, error) {
	view, err := s.append(ctx, msg)
	s.observeMutation(OpAppend, err)
	return view, err
}

func (s *MessageStore) append(ctx context.Context, msg models.Message) (models.MessageView, error) {
	if err := msg.Validate(); err != nil {
		return models.MessageView{}, &ValidationError{Message: err.Error()}
	}
	tags, err := s.tags.Normalize(msg.Tags)
	if err != nil {
		return models.MessageView{}, err
	}

	if msg.ID == "" {
		msg.ID = s.newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.Status = s.pipeline.Initial()
	msg.Tags = tags
	msg.Responses = []models.Response{}
	msg.Version = 1

	rec := &record{}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	event := &models.ChangeEvent{
		Type:      models.EventMessageCreated,
		MessageID: msg.ID,
		ToStatus:  msg.Status,
	}
	changed := true
	err = s.commit(ctx, rec, func() error {
		if _, exists := s.records[msg.ID]; exists {
			return &ConflictError{Resource: "message", Message: fmt.Sprintf("message %s already exists", msg.ID)}
		}
		if err := s.pipeline.Insert(msg.ID, msg.Status); err != nil {
			return err
		}
		s.records[msg.ID] = rec
		event.BucketOrder = s.touchedBuckets(msg.Status)
		return nil
	}, &msg, &changed, event)
	if err != nil {
		return models.MessageView{}, err
	}

	s.logger.Debug().Str("message_id", msg.ID).Msg("message appended")
	return s.viewOf(msg), nil
}

// MoveStatus moves a message to a status column at an index. Moving a
// message onto its current position changes nothing and emits nothing.
func (s *MessageStore) MoveStatus(ctx context.Context, cmd models.MoveCommand) (models.MessageView, error) {
	view, err := s.moveStatus(ctx, cmd)
	s.observeMutation(OpMoveStatus, err)
	return view, err
}

func (s *MessageStore) moveStatus(ctx context.Context, cmd models.MoveCommand) (models.MessageView, error) {
	rec, err := s.record(cmd.MessageID)
	if err != nil {
		return models.MessageView{}, err
	}
	if err := s.pipeline.CheckState(cmd.TargetStatus); err != nil {
		return models.MessageView{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	current := rec.msg
	next := current.Clone()
	next.Status = cmd.TargetStatus
	next.Version++

	event := &models.ChangeEvent{
		Type:       models.EventStatusMoved,
		MessageID:  next.ID,
		FromStatus: current.Status,
		ToStatus:   next.Status,
	}
	var moved bool
	err = s.commit(ctx, rec, func() error {
		var err error
		moved, err = s.pipeline.Move(current.ID, cmd.TargetStatus, cmd.TargetIndex)
		if err != nil || !moved {
			return err
		}
		event.BucketOrder = s.touchedBuckets(current.Status, cmd.TargetStatus)
		return nil
	}, &next, &moved, event)
	if err != nil {
		return models.MessageView{}, err
	}
	if !moved {
		return s.viewOf(current), nil
	}

	s.logger.Debug().
		Str("message_id", current.ID).
		Str("from", current.Status).
		Str("to", next.Status).
		Int("index", cmd.TargetIndex).
		Msg("message moved")
	return s.viewOf(next), nil
}

// ToggleTag adds the tag to the message if absent, removes it if present
func (s *MessageStore) ToggleTag(ctx context.Context, cmd models.ToggleTagCommand) (models.MessageView, error) {
	view, err := s.toggleTag(ctx, cmd)
	s.observeMutation(OpToggleTag, err)
	return view, err
}

func (s *MessageStore) toggleTag(ctx context.Context, cmd models.ToggleTagCommand) (models.MessageView, error) {
	rec, err := s.record(cmd.MessageID)
	if err != nil {
		return models.MessageView{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	next := rec.msg.Clone()
	next.Tags, err = s.tags.Toggle(next.Tags, cmd.TagID)
	if err != nil {
		return models.MessageView{}, err
	}
	next.Version++

	event := &models.ChangeEvent{
		Type:      models.EventTagToggled,
		MessageID: next.ID,
		TagID:     cmd.TagID,
	}
	changed := true
	if err := s.commit(ctx, rec, nil, &next, &changed, event); err != nil {
		return models.MessageView{}, err
	}

	s.logger.Debug().Str("message_id", next.ID).Str("tag_id", cmd.TagID).Msg("tag toggled")
	return s.viewOf(next), nil
}

// AppendResponse adds a reply to the message thread. The first reply a
// message ever gets moves it from the initial state to the tail of the
// second state; later replies never change the status.
func (s *MessageStore) AppendResponse(ctx context.Context, cmd models.AppendResponseCommand) (models.MessageView, error) {
	view, err := s.appendResponse(ctx, cmd)
	s.observeMutation(OpAppendResponse, err)
	return view, err
}

func (s *MessageStore) appendResponse(ctx context.Context, cmd models.AppendResponseCommand) (models.MessageView, error) {
	rec, err := s.record(cmd.MessageID)
	if err != nil {
		return models.MessageView{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	current := rec.msg
	thread, err := NewResponseThread(current.Responses).Append(cmd.Text, cmd.Author, s.now())
	if err != nil {
		return models.MessageView{}, err
	}

	next := current.Clone()
	next.Responses = thread.Entries()
	next.Version++

	transition := len(current.Responses) == 0 && current.Status == s.pipeline.Initial()
	if transition {
		next.Status = s.pipeline.Second()
	}

	event := &models.ChangeEvent{
		Type:      models.EventResponseAppended,
		MessageID: next.ID,
	}
	if transition {
		event.FromStatus = current.Status
		event.ToStatus = next.Status
	}
	changed := true
	err = s.commit(ctx, rec, func() error {
		if !transition {
			return nil
		}
		if _, err := s.pipeline.Move(current.ID, next.Status, models.AppendIndex); err != nil {
			return err
		}
		event.BucketOrder = s.touchedBuckets(current.Status, next.Status)
		return nil
	}, &next, &changed, event)
	if err != nil {
		return models.MessageView{}, err
	}

	s.logger.Debug().
		Str("message_id", next.ID).
		Int("responses", len(next.Responses)).
		Bool("transitioned", transition).
		Msg("response appended")
	return s.viewOf(next), nil
}

// Get returns one message joined with its display names
func (s *MessageStore) Get(ctx context.Context, id string) (models.MessageView, error) {
	for _, m := range s.snapshot.Load().ordered {
		if m.ID == id {
			return s.viewOf(m), nil
		}
	}
	return models.MessageView{}, &NotFoundError{Resource: "message", ID: id}
}

// View returns the messages matching criteria in column order, then bucket
// order. It never fails; malformed criteria simply match nothing.
func (s *MessageStore) View(ctx context.Context, criteria models.FilterCriteria) []models.MessageView {
	snap := s.snapshot.Load()

	views := make([]models.MessageView, 0, len(snap.ordered))
	for _, m := range snap.ordered {
		views = append(views, s.join(m))
	}
	matched := Apply(s.engine, views, criteria.WithDefaultTagMode(models.TagModeEquals), MessageFields)
	for i := range matched {
		matched[i].Message = matched[i].Message.Clone()
	}

	if s.observer != nil {
		s.observer.ObserveView(s.board, len(matched))
	}
	return matched
}

// ViewStrict validates criteria before viewing
func (s *MessageStore) ViewStrict(ctx context.Context, criteria models.FilterCriteria) ([]models.MessageView, error) {
	if err := criteria.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	return s.View(ctx, criteria), nil
}

// Columns groups the filtered view by status. Every pipeline state gets a
// column, in pipeline order, even when empty.
func (s *MessageStore) Columns(ctx context.Context, criteria models.FilterCriteria) []models.Column {
	states := s.pipeline.States()
	columns := make([]models.Column, len(states))
	for i, state := range states {
		columns[i] = models.Column{Status: state, Messages: []models.MessageView{}}
	}
	for _, v := range s.View(ctx, criteria) {
		if i := s.pipeline.IndexOf(v.Status); i >= 0 {
			columns[i].Messages = append(columns[i].Messages, v)
		}
	}
	return columns
}

func (s *MessageStore) record(id string) (*record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, &NotFoundError{Resource: "message", ID: id}
	}
	return rec, nil
}

// commit runs index (board index changes) and, when *changed is still true
// afterwards, stores next, publishes a new snapshot and emits event.
// Callers hold rec.mu.
func (s *MessageStore) commit(ctx context.Context, rec *record, index func() error, next *models.Message, changed *bool, event *models.ChangeEvent) error {
	s.mu.Lock()
	if index != nil {
		if err := index(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	if !*changed {
		s.mu.Unlock()
		return nil
	}
	rec.msg = *next
	s.publishLocked()

	// Hand over from the store lock to the emit lock so a later commit
	// cannot overtake this event.
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()

	event.Message = *next
	s.notify(ctx, event)
	return nil
}

// publishLocked rebuilds the snapshot from the board index. Callers hold
// s.mu for writing.
func (s *MessageStore) publishLocked() {
	ids := s.pipeline.Ordered()
	ordered := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			ordered = append(ordered, rec.msg)
		}
	}
	s.snapshot.Store(&snapshot{ordered: ordered})

	if s.observer != nil {
		s.observer.ObserveBuckets(s.board, s.pipeline.BucketSizes())
	}
}

func (s *MessageStore) touchedBuckets(states ...string) map[string][]string {
	order := make(map[string][]string, len(states))
	for _, state := range states {
		order[state] = s.pipeline.Bucket(state)
	}
	return order
}

func (s *MessageStore) notify(ctx context.Context, event *models.ChangeEvent) {
	if s.notifier == nil {
		return
	}
	event.BoardID = s.board
	event.Version = event.Message.Version
	event.Message = event.Message.Clone()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	s.notifier.Publish(ctx, event)
}

func (s *MessageStore) observeMutation(op string, err error) {
	if s.observer != nil {
		s.observer.ObserveMutation(s.board, op, err)
	}
}

// join resolves display names without copying the message slices
func (s *MessageStore) join(m models.Message) models.MessageView {
	view := models.MessageView{Message: m}
	if name, ok := s.directory.CustomerName(m.CustomerID); ok {
		view.CustomerName = name
	}
	if name, ok := s.directory.CampaignName(m.CampaignID); ok {
		view.CampaignName = name
	}
	return view
}

func (s *MessageStore) viewOf(m models.Message) models.MessageView {
	view := s.join(m)
	view.Message = m.Clone()
	return view
}
