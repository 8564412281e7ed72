package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"alpd/api/internal/plate"
	"alpd/api/internal/util"
)

var (
	ErrBusy     = errors.New("an analysis is already in progress")
	ErrNoImage  = errors.New("no image selected")
	ErrNotFound = errors.New("history item not found")
)

type State string

const (
	StateIdle     State = "idle"
	StateInFlight State = "in_flight"
)

// Recognizer is satisfied by every plate.Engine.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, mime string) (plate.DetectionResult, error)
}

// Recorder receives every successful analysis (e.g. the Postgres recognition log).
type Recorder interface {
	Record(ctx context.Context, sessionID string, item plate.HistoryItem) error
}

// View is a point-in-time copy of a session for rendering.
type View struct {
	State    State                  `json:"state"`
	ImageURL string                 `json:"imageUrl,omitempty"`
	Result   *plate.DetectionResult `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
	History  []plate.HistoryItem    `json:"history"`
}

// Session is the state of one client: selected image, current result or error,
// the idle/in-flight gate and the recent history.
type Session struct {
	ID string

	rec      Recognizer
	recorder Recorder
	now      func() time.Time
	newID    func() string

	mu       sync.Mutex
	state    State
	imageURL string
	result   *plate.DetectionResult
	errMsg   string
	gen      uint64 // bumped whenever the current selection changes
	history  History
}

type Option func(*Session)

func WithRecorder(r Recorder) Option { return func(s *Session) { s.recorder = r } }

func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

func WithIDGenerator(f func() string) Option { return func(s *Session) { s.newID = f } }

func New(id string, rec Recognizer, opts ...Option) *Session {
	s := &Session{
		ID:    id,
		rec:   rec,
		now:   time.Now,
		newID: uuid.NewString,
		state: StateIdle,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SelectImage makes dataURL (data:<mime>;base64,... or bare base64) the current image.
func (s *Session) SelectImage(dataURL string) error {
	dataURL = strings.TrimSpace(dataURL)
	if dataURL == "" {
		return ErrNoImage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateInFlight {
		return ErrBusy
	}
	s.imageURL = dataURL
	s.result = nil
	s.errMsg = ""
	s.gen++
	return nil
}

// Analyze runs one recognition of the current image. The session lock is not held
// during the call; a concurrent Analyze gets ErrBusy.
func (s *Session) Analyze(ctx context.Context) (plate.DetectionResult, error) {
	s.mu.Lock()
	if s.state == StateInFlight {
		s.mu.Unlock()
		return plate.DetectionResult{}, ErrBusy
	}
	if s.imageURL == "" {
		s.mu.Unlock()
		return plate.DetectionResult{}, ErrNoImage
	}
	return s.run(ctx)
}

// SubmitImage selects dataURL and analyzes it under one lock, so no other
// selection can land between the two. ErrBusy leaves the session untouched.
func (s *Session) SubmitImage(ctx context.Context, dataURL string) (plate.DetectionResult, error) {
	dataURL = strings.TrimSpace(dataURL)
	if dataURL == "" {
		return plate.DetectionResult{}, ErrNoImage
	}
	s.mu.Lock()
	if s.state == StateInFlight {
		s.mu.Unlock()
		return plate.DetectionResult{}, ErrBusy
	}
	s.imageURL = dataURL
	s.result = nil
	s.gen++
	return s.run(ctx)
}

// run must be called with s.mu held and the session idle; it releases the lock.
func (s *Session) run(ctx context.Context) (plate.DetectionResult, error) {
	imageURL := s.imageURL
	gen := s.gen
	s.state = StateInFlight
	s.errMsg = ""
	s.mu.Unlock()

	res, err := s.recognize(ctx, imageURL)

	s.mu.Lock()
	s.state = StateIdle
	current := s.gen == gen
	if err != nil {
		if current {
			s.errMsg = plate.UserMessage(err)
		}
		s.mu.Unlock()
		log.Printf("session %s: analysis failed: %v", s.ID, err)
		return plate.DetectionResult{}, err
	}
	item := plate.HistoryItem{
		ID:        s.newID(),
		ImageURL:  imageURL,
		Result:    res,
		Timestamp: s.now(),
	}
	s.history.Add(item)
	if current {
		r := res
		s.result = &r
	}
	s.mu.Unlock()

	if s.recorder != nil {
		if rerr := s.recorder.Record(ctx, s.ID, item); rerr != nil {
			log.Printf("session %s: record recognition: %v", s.ID, rerr)
		}
	}
	return res, nil
}

func (s *Session) recognize(ctx context.Context, imageURL string) (plate.DetectionResult, error) {
	img, hint, err := util.DecodeBase64MaybeDataURL(imageURL)
	if err != nil {
		return plate.DetectionResult{}, fmt.Errorf("decode image: %w", err)
	}
	return s.rec.Recognize(ctx, img, util.PickMIME("", hint, img))
}

// Reset clears the current image, result and error. History is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imageURL = ""
	s.result = nil
	s.errMsg = ""
	s.gen++
}

// LoadFromHistory makes a stored entry current again without touching the history order.
func (s *Session) LoadFromHistory(id string) (plate.HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.history.Get(id)
	if !ok {
		return plate.HistoryItem{}, ErrNotFound
	}
	if s.state == StateInFlight {
		return plate.HistoryItem{}, ErrBusy
	}
	r := item.Result
	s.imageURL = item.ImageURL
	s.result = &r
	s.errMsg = ""
	s.gen++
	return item, nil
}

func (s *Session) History() []plate.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Items()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		State:    s.state,
		ImageURL: s.imageURL,
		Error:    s.errMsg,
		History:  s.history.Items(),
	}
	if s.result != nil {
		r := *s.result
		v.Result = &r
	}
	return v
}
