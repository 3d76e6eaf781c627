package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/duet/internal/ledger"
	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/services"
	"github.com/desertthunder/duet/internal/shared"
)

// maxAttempts is the first pass plus one full retry after a no-match.
const maxAttempts = 2

var (
	errSuperseded = errors.New("turn superseded")
	errPreempted  = errors.New("human contributed first")
	errRejected   = errors.New("rejected by validation")
)

// Outcome is how an automated turn ended.
type Outcome int

const (
	Committed  Outcome = iota // an entry was queued
	Preempted                 // the human contributed first
	Superseded                // a newer turn started, or the turn was cancelled
	Failed                    // no usable item, or a configuration error
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Preempted:
		return "preempted"
	case Superseded:
		return "superseded"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// TurnResult describes a finished automated turn.
type TurnResult struct {
	Outcome        Outcome
	Entry          *models.LedgerEntry    // Set when Committed
	Recommendation *models.Recommendation // Last recommendation considered
	Match          models.MatchResult     // Last match attempt
	Attempts       int
	Reason         string // Why the turn did not commit
}

// Resolver turns a recommendation into a catalog item.
type Resolver interface {
	SearchAndResolve(ctx context.Context, rec models.Recommendation) (*models.Item, models.MatchResult, error)
}

// Options configures a [TurnEngine].
type Options struct {
	Persona    string
	StyleGuide string
	Progress   chan<- ProgressUpdate // Optional; updates are dropped when full
}

// TurnEngine runs automated turns against a ledger. At most one turn is active: starting a new one, or calling
// [TurnEngine.Cancel], supersedes the previous one, which then exits at its next checkpoint without committing.
type TurnEngine struct {
	ledger      *ledger.Ledger
	recommender services.Recommender
	resolver    Resolver
	validator   services.Validator
	opts        Options
	logger      *log.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	thinking   bool
	wg         sync.WaitGroup
}

// turn is the state captured when a turn begins.
type turn struct {
	ctx       context.Context
	cancel    context.CancelFunc
	gen       uint64
	humanSeen uint64
	persona   string
	style     string
}

// NewTurnEngine creates a TurnEngine. validator may be nil to skip validation.
func NewTurnEngine(l *ledger.Ledger, recommender services.Recommender, resolver Resolver, validator services.Validator, opts Options, logger *log.Logger) *TurnEngine {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &TurnEngine{
		ledger:      l,
		recommender: recommender,
		resolver:    resolver,
		validator:   validator,
		opts:        opts,
		logger:      logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *TurnEngine) sendProgress(update ProgressUpdate) {
	if e.opts.Progress == nil {
		return
	}
	select {
	case e.opts.Progress <- update:
	default:
	}
}

// Thinking reports whether a turn is in flight.
func (e *TurnEngine) Thinking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thinking
}

// Cancel supersedes the in-flight turn, if any, and clears the thinking flag.
func (e *TurnEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.generation++
	e.thinking = false
}

// Wait blocks until every turn started with [TurnEngine.Launch] has returned.
func (e *TurnEngine) Wait() {
	e.wg.Wait()
}

// begin supersedes the previous turn and claims the thinking flag.
func (e *TurnEngine) begin(parent context.Context) *turn {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	e.generation++
	ctx, cancel := context.WithCancel(parent)
	e.cancel = cancel
	e.thinking = true

	return &turn{
		ctx:       ctx,
		cancel:    cancel,
		gen:       e.generation,
		humanSeen: e.ledger.HumanContributions(),
		persona:   e.opts.Persona,
		style:     e.opts.StyleGuide,
	}
}

// SetStyle replaces the persona and style guide. Turns already in flight keep the values they started with.
func (e *TurnEngine) SetStyle(persona, styleGuide string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Persona = persona
	e.opts.StyleGuide = styleGuide
}

// finish releases the turn. The thinking flag is only cleared if no newer turn has claimed it.
func (e *TurnEngine) finish(t *turn) {
	t.cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	if t.gen == e.generation {
		e.thinking = false
		e.cancel = nil
	}
}

func (e *TurnEngine) isCurrent(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen == e.generation
}

// checkpoint reports whether the turn must stop before touching any state.
func (e *TurnEngine) checkpoint(t *turn) error {
	if t.ctx.Err() != nil || !e.isCurrent(t.gen) {
		return errSuperseded
	}
	if e.ledger.HumanContributions() != t.humanSeen {
		return errPreempted
	}
	return nil
}

// RunAutomatedTurn runs one automated turn to completion and queues the result with the given priority tag.
//
// Only configuration errors (see [shared.IsConfigError]) are returned as errors; preemption, supersession and exhausted retries are reported through [TurnResult.Outcome].
func (e *TurnEngine) RunAutomatedTurn(ctx context.Context, tag models.Status) (*TurnResult, error) {
	return e.run(e.begin(ctx), tag)
}

// Launch starts an automated turn on its own goroutine, superseding any turn in flight before it returns.
// then, if non-nil, is called with the result.
func (e *TurnEngine) Launch(ctx context.Context, tag models.Status, then func(*TurnResult, error)) {
	t := e.begin(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		result, err := e.run(t, tag)
		if err != nil {
			e.logger.Error("automated turn aborted", "error", err)
		}
		if then != nil {
			then(result, err)
		}
	}()
}

func (e *TurnEngine) run(t *turn, tag models.Status) (*TurnResult, error) {
	defer e.finish(t)

	result := &TurnResult{}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		entry, err := e.attempt(t, tag, attempt, result)
		switch {
		case err == nil:
			result.Outcome = Committed
			result.Entry = entry
			e.sendProgress(commitUpdate(attempt, maxAttempts, entry))
			e.logger.Info("automated turn committed", "item", entry.Item.String(), "status", entry.Status, "attempt", attempt)
			return result, nil

		case errors.Is(err, errSuperseded):
			return e.stop(result, Superseded, "a newer turn started or the turn was cancelled"), nil

		case errors.Is(err, errPreempted):
			return e.stop(result, Preempted, "the human contributed first"), nil

		case shared.IsConfigError(err):
			return e.stop(result, Failed, err.Error()), err

		default:
			result.Reason = err.Error()
			e.logger.Warn("automated attempt found nothing usable", "attempt", attempt, "error", err)
		}
	}

	return e.stop(result, Failed, result.Reason), nil
}

func (e *TurnEngine) stop(result *TurnResult, outcome Outcome, reason string) *TurnResult {
	result.Outcome = outcome
	result.Reason = reason
	e.sendProgress(abortUpdate(result.Attempts, maxAttempts, outcome, reason))
	e.logger.Info("automated turn ended without commit", "outcome", outcome, "reason", reason)
	return result
}

// attempt runs the pipeline once. Only the first attempt guards against repeats.
func (e *TurnEngine) attempt(t *turn, tag models.Status, step int, result *TurnResult) (*models.LedgerEntry, error) {
	e.sendProgress(recommendUpdate(step, maxAttempts))
	rec, err := e.recommend(t, t.style)
	if cerr := e.checkpoint(t); cerr != nil {
		return nil, cerr
	}
	if err != nil {
		return nil, err
	}
	result.Recommendation = rec

	if step == 1 && e.ledger.HasBeenPlayed(rec.Artist, rec.Title) {
		e.sendProgress(repeatRetryUpdate(step, maxAttempts, rec))
		e.logger.Debug("recommendation already played, re-requesting", "recommendation", rec.String())

		rec, err = e.recommend(t, avoidRepeats(t.style, rec))
		if cerr := e.checkpoint(t); cerr != nil {
			return nil, cerr
		}
		if err != nil {
			return nil, err
		}
		result.Recommendation = rec
	}

	e.sendProgress(searchUpdate(step, maxAttempts, rec))
	item, match, err := e.resolver.SearchAndResolve(t.ctx, *rec)
	result.Match = match
	if cerr := e.checkpoint(t); cerr != nil {
		return nil, cerr
	}
	if err != nil {
		return nil, err
	}

	if e.validator != nil {
		e.sendProgress(validateUpdate(step, maxAttempts, item))
		verdict, err := e.validator.Validate(t.ctx, *item, t.persona)
		if cerr := e.checkpoint(t); cerr != nil {
			return nil, cerr
		}
		switch {
		case err != nil:
			e.logger.Warn("validation unavailable, accepting match", "item", item.String(), "error", err)
		case verdict != nil && !verdict.Valid:
			return nil, fmt.Errorf("%w: %s", errRejected, verdict.Reasoning)
		}
	}

	return e.commit(t, *item, rec.Rationale, tag)
}

func (e *TurnEngine) recommend(t *turn, styleGuide string) (*models.Recommendation, error) {
	rec, err := e.recommender.Recommend(t.ctx, services.RecommendRequest{
		History:    e.ledger.History(),
		Persona:    t.persona,
		StyleGuide: styleGuide,
	})
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: empty recommendation", shared.ErrNoMatch)
	}
	return rec, nil
}

// commit queues the item unless the turn was superseded or preempted. Holding e.mu keeps a newer turn from
// starting between the generation check and the enqueue.
func (e *TurnEngine) commit(t *turn, item models.Item, rationale string, tag models.Status) (*models.LedgerEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t.gen != e.generation || t.ctx.Err() != nil {
		return nil, errSuperseded
	}

	entry, ok := e.ledger.EnqueueUnlessPreempted(item, models.Automated, rationale, tag, t.humanSeen)
	if !ok {
		return nil, errPreempted
	}
	return &entry, nil
}

func avoidRepeats(styleGuide string, rec *models.Recommendation) string {
	note := fmt.Sprintf("Do not repeat anything already in the history. %q by %s has already been played.", rec.Title, rec.Artist)
	if styleGuide == "" {
		return note
	}
	return styleGuide + "\n\n" + note
}
