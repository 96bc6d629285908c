// Package session assembles the timeline of one subject from the remote
// documents and moves over it, keeping the photos around the current position
// loading in the background.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/class1/graduate/pkg/assets"
	"github.com/class1/graduate/pkg/index"
	"github.com/class1/graduate/pkg/prefetch"
	"github.com/class1/graduate/pkg/records"
	"github.com/class1/graduate/pkg/shootingtime"
	"github.com/class1/graduate/pkg/storage"
	"github.com/class1/graduate/pkg/timeline"
)

var ErrUnknownSubject = errors.New("unknown subject")

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Config holds everything Open needs.
type Config struct {
	IndexURL string
	Root     string // local storage root
	Fetcher  assets.Fetcher
	Recorder assets.Recorder // optional

	Subject int
	From    shootingtime.ShootingTime // zero = first event

	Concurrency int    // max simultaneous background loads, 0 = unbounded
	NoPrefetch  bool   // Open does not start loading; navigation still does
	Log         Logger // optional

	// OnLoaded is called from loading goroutines when a background load ends.
	OnLoaded func(event, experience int, err error)
}

// Roster downloads the index document and returns the subjects it lists.
func Roster(ctx context.Context, cfg Config) ([]index.Subject, error) {
	_, ix, err := fetchIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return ix.Roster, nil
}

// Session is one subject's timeline together with its prefetcher.
type Session struct {
	ID      string
	Subject index.Subject
	Index   *index.Index

	tl    *timeline.Timeline
	res   *assets.Resolver
	sched *prefetch.Scheduler
	log   Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// Open builds the subject's timeline, places the cursor at cfg.From and starts
// loading the window around it. Malformed documents and an unknown subject
// abort; individual photos that fail to load never do.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Log == nil {
		cfg.Log = nopLogger{}
	}
	log := cfg.Log

	boot, ix, err := fetchIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	subject, ok := ix.Subject(cfg.Subject)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSubject, cfg.Subject)
	}

	res := boot.WithOrigin(ix.URLPrefix)
	shared, err := ix.LoadEvents(ctx, res)
	if err != nil {
		return nil, err
	}
	profiles, err := ix.LoadProfiles(ctx, res, log)
	if err != nil {
		return nil, err
	}

	personal, together := records.Build(subject.ID, shared, profiles, log)
	tl := timeline.Merge(personal, together)
	log.Infof("Timeline of %s has %d events (%d personal, %d shared)", subject.Name, tl.Len(), len(personal), len(together))

	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sched, err := prefetch.New(prefetch.Config{
		Timeline:    tl,
		Resolver:    res,
		Concurrency: cfg.Concurrency,
		Log:         log,
		OnLoaded:    cfg.OnLoaded,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	s := &Session{
		ID:      uuid.NewString(),
		Subject: subject,
		Index:   ix,
		tl:      tl,
		res:     res,
		sched:   sched,
		log:     log,
		ctx:     loadCtx,
		cancel:  cancel,
	}
	if !cfg.From.Time().IsZero() {
		tl.StartAt(cfg.From)
	}
	if !cfg.NoPrefetch {
		s.schedule()
	}
	return s, nil
}

func fetchIndex(ctx context.Context, cfg Config) (*assets.Resolver, *index.Index, error) {
	origin, indexPath, err := index.SplitURL(cfg.IndexURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", index.ErrIndex, err)
	}
	boot, err := assets.New(assets.Config{
		Root:     cfg.Root,
		Origin:   origin,
		Fetcher:  cfg.Fetcher,
		Recorder: cfg.Recorder,
		Log:      cfg.Log,
	})
	if err != nil {
		return nil, nil, err
	}
	ix, err := index.Fetch(ctx, boot, indexPath)
	if err != nil {
		return nil, nil, err
	}
	return boot, ix, nil
}

func (s *Session) Timeline() *timeline.Timeline { return s.tl }

// Resolver is the asset resolver bound to the origin named by the index.
func (s *Session) Resolver() *assets.Resolver { return s.res }

func (s *Session) Cursor() (event, experience int) { return s.tl.Cursor() }

// View is what the display layer shows for the current position.
type View struct {
	EventIndex      int
	ExperienceIndex int
	Event           *timeline.Event
	Experience      *timeline.Experience
	Payload         []byte
	Loaded          bool
}

// Current returns the current position. Payload is nil until the photo has
// loaded; AwaitCurrent blocks for it.
func (s *Session) Current() (View, error) {
	ev, ex := s.tl.Cursor()
	x, err := s.tl.Slot(ev, ex)
	if err != nil {
		return View{}, err
	}
	e, _ := s.tl.Event(ev)
	v := View{EventIndex: ev, ExperienceIndex: ex, Event: e, Experience: x}
	v.Payload, v.Loaded = x.Payload()
	return v, nil
}

// AwaitCurrent blocks until the current photo is loaded.
func (s *Session) AwaitCurrent(ctx context.Context) ([]byte, error) {
	ev, ex := s.tl.Cursor()
	return s.sched.Await(ctx, ev, ex)
}

// NextEvent reports false at the end of the timeline.
func (s *Session) NextEvent() bool {
	ok := s.tl.NextEvent()
	s.schedule()
	return ok
}

func (s *Session) PreviousEvent() bool {
	ok := s.tl.PreviousEvent()
	s.schedule()
	return ok
}

func (s *Session) NextExperience() int { return s.tl.NextExperience() }

func (s *Session) PreviousExperience() int { return s.tl.PreviousExperience() }

func (s *Session) Jump(event int) error {
	if err := s.tl.Jump(event); err != nil {
		return err
	}
	s.schedule()
	return nil
}

// Restore places the cursor where a previous session left off. The saved date
// wins over the saved index, which is only trusted for the photo position.
func (s *Session) Restore(p storage.Progress) {
	ev := s.tl.StartAt(p.FromDate)
	if ev == p.OnEvent {
		if err := s.tl.Seek(ev, p.OnExperience); err != nil {
			s.log.Debugf("Ignoring saved photo position: %v", err)
		}
	}
	s.schedule()
}

// Progress captures the current position for the next session.
func (s *Session) Progress() storage.Progress {
	ev, ex := s.tl.Cursor()
	p := storage.Progress{Subject: s.Subject.ID, OnEvent: ev, OnExperience: ex, SessionID: s.ID}
	if e, err := s.tl.Event(ev); err == nil {
		p.FromDate = e.Key()
	}
	return p
}

// Wait blocks until every background load started so far has finished.
func (s *Session) Wait() {
	s.sched.Wait()
}

// Close cancels outstanding loads and waits for them to finish.
func (s *Session) Close() {
	s.cancel()
	s.sched.Wait()
}

func (s *Session) schedule() {
	ev, _ := s.tl.Cursor()
	s.sched.Schedule(s.ctx, ev)
}
