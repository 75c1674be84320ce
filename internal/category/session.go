package category

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTransition is returned when an input does not fit the current step.
var ErrInvalidTransition = errors.New("invalid step for the current operation")

// State is a step of the add-category dialogue.
type State int

const (
	Idle State = iota
	AwaitingName
	AwaitingUID
	AwaitingURL
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingName:
		return "awaiting_name"
	case AwaitingUID:
		return "awaiting_uid"
	case AwaitingURL:
		return "awaiting_url"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session walks one operator through name, uid and url. It is not safe for
// concurrent use; keep one per operator.
type Session struct {
	service *Service
	state   State
	name    string
	uid     string
}

// NewSession starts an idle session over svc.
func NewSession(svc *Service) *Session {
	return &Session{service: svc}
}

// State reports the current step.
func (s *Session) State() State { return s.state }

// Begin starts a new dialogue; an unfinished one must be cancelled first.
func (s *Session) Begin() error {
	if s.state != Idle {
		return fmt.Errorf("%w: operation in progress (%s)", ErrInvalidTransition, s.state)
	}
	s.state = AwaitingName
	return nil
}

// SubmitName accepts the display name.
func (s *Session) SubmitName(name string) error {
	if err := s.expect(AwaitingName); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	s.name = name
	s.state = AwaitingUID
	return nil
}

// SubmitUID accepts the uid; an invalid one keeps the session waiting for a uid.
func (s *Session) SubmitUID(uid string) error {
	if err := s.expect(AwaitingUID); err != nil {
		return err
	}
	uid = strings.TrimSpace(uid)
	if err := s.service.ValidateUID(uid); err != nil {
		return err
	}
	s.uid = uid
	s.state = AwaitingURL
	return nil
}

// SubmitURL commits the category. A foreign url or a taken uid keeps the
// session waiting for a url; a storage failure resets it.
func (s *Session) SubmitURL(ctx context.Context, link string) (Entry, error) {
	if err := s.expect(AwaitingURL); err != nil {
		return Entry{}, err
	}

	entry, err := s.service.Add(ctx, s.name, s.uid, link)
	switch {
	case err == nil:
		s.reset()
		return entry, nil
	case errors.Is(err, ErrForeignURL), errors.Is(err, ErrUIDTaken):
		return Entry{}, err
	default:
		s.reset()
		return Entry{}, err
	}
}

// Cancel drops any progress.
func (s *Session) Cancel() { s.reset() }

func (s *Session) expect(want State) error {
	if s.state != want {
		return fmt.Errorf("%w: want %s, in %s", ErrInvalidTransition, want, s.state)
	}
	return nil
}

func (s *Session) reset() {
	s.state = Idle
	s.name = ""
	s.uid = ""
}
