package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/desertthunder/duet/internal/ledger"
	"github.com/desertthunder/duet/internal/matcher"
	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/playback"
	"github.com/desertthunder/duet/internal/repositories"
	"github.com/desertthunder/duet/internal/services"
	"github.com/desertthunder/duet/internal/session"
	"github.com/desertthunder/duet/internal/shared"
	"github.com/desertthunder/duet/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators left nil in [RunnerOpts] are built from the loaded configuration on first use.
type Runner struct {
	configPath  string
	config      *shared.Config
	logger      *log.Logger
	output      io.Writer
	input       io.Reader
	catalog     services.Catalog
	transport   services.Transport
	recommender services.Recommender
	ranker      services.SemanticRanker
	validator   services.Validator
	db          *sql.DB
	ownsDB      bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Logger      *log.Logger
	Output      io.Writer
	Input       io.Reader
	Catalog     services.Catalog
	Transport   services.Transport
	Recommender services.Recommender
	Ranker      services.SemanticRanker
	Validator   services.Validator
	DB          *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &Runner{
		configPath:  opts.ConfigPath,
		config:      opts.Config,
		logger:      opts.Logger,
		output:      opts.Output,
		input:       opts.Input,
		catalog:     opts.Catalog,
		transport:   opts.Transport,
		recommender: opts.Recommender,
		ranker:      opts.Ranker,
		validator:   opts.Validator,
		db:          opts.DB,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, sessionCommand, matchCommand, nowCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config and applies --debug. A missing config file is not an
// error: the embedded defaults are used instead.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if r.config != nil {
		return ctx, nil
	}
	return ctx, r.loadConfig(cmd.String("config"))
}

func (r *Runner) loadConfig(path string) error {
	r.configPath = path
	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		r.config = shared.DefaultConfig()
		return nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	r.config = config
	r.logger.Debug("loaded config", "path", path)
	return nil
}

func (r *Runner) cfg() *shared.Config {
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	return r.config
}

// SetLogger swaps the logger, e.g. when the terminal UI takes over stderr.
func (r *Runner) SetLogger(logger *log.Logger) {
	level := r.logger.GetLevel()
	r.logger = logger
	shared.SetLogLevel(r.logger, level)
}

// Close releases the database handle if the runner opened it.
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) openDB() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	cfg := r.cfg().Database
	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db, r.ownsDB = db, true
	return db, nil
}

func (r *Runner) spotify(ctx context.Context) (*services.SpotifyService, error) {
	creds := r.cfg().Credentials.Spotify
	svc, err := services.NewSpotifyService(map[string]string{
		"client_id":     creds.ClientID,
		"client_secret": creds.ClientSecret,
		"redirect_uri":  creds.RedirectURI,
	})
	if err != nil {
		return nil, err
	}

	if err := svc.Authenticate(ctx, map[string]string{
		"access_token":  creds.AccessToken,
		"refresh_token": creds.RefreshToken,
	}); err != nil {
		return nil, err
	}
	return svc, nil
}

// Catalog returns the configured catalog, building it on first use.
func (r *Runner) Catalog(ctx context.Context) (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	cfg := r.cfg()
	switch cfg.Session.Catalog {
	case "youtube":
		yt := services.NewYouTubeService(cfg.Credentials.YouTube.ProxyURL)
		if cfg.Credentials.YouTube.AuthFile != "" {
			if err := yt.Authenticate(ctx, map[string]string{"auth_file": cfg.Credentials.YouTube.AuthFile}); err != nil {
				return nil, err
			}
		}
		r.catalog = yt
	default:
		sp, err := r.spotify(ctx)
		if err != nil {
			return nil, err
		}
		r.catalog = sp
		if r.transport == nil {
			r.transport = sp
		}
	}

	r.logger.Debug("catalog ready", "catalog", cfg.Session.Catalog)
	return r.catalog, nil
}

// Transport returns the playback transport. Only the spotify catalog has one.
func (r *Runner) Transport(ctx context.Context) (services.Transport, error) {
	if r.transport != nil {
		return r.transport, nil
	}
	if c := r.cfg().Session.Catalog; c != "spotify" {
		return nil, fmt.Errorf("%w: the %s catalog has no playback transport", shared.ErrInvalidConfig, c)
	}
	if _, err := r.Catalog(ctx); err != nil {
		return nil, err
	}
	return r.transport, nil
}

// assistant fills the recommender, ranker and validator slots that were not injected.
func (r *Runner) assistant() {
	cfg := r.cfg()
	if r.recommender != nil && (r.ranker != nil || !cfg.Session.SemanticMatching) && (r.validator != nil || !cfg.Session.Validation) {
		return
	}

	svc := services.NewAssistantService(cfg.Credentials.Assistant, cfg.Assistant)
	if r.recommender == nil {
		r.recommender = svc
	}
	if r.ranker == nil && cfg.Session.SemanticMatching && svc.Available() {
		r.ranker = svc
	}
	if r.validator == nil && cfg.Session.Validation {
		r.validator = svc
	}
}

// Resolver builds a search-and-resolve pipeline over the catalog.
func (r *Runner) Resolver(ctx context.Context) (*matcher.Resolver, error) {
	catalog, err := r.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	r.assistant()

	logger := shared.WithLogger(r.logger, "component", "matcher")
	m := matcher.NewDefault(r.ranker, logger)
	return matcher.NewResolver(catalog, m, matcher.OptionsFromConfig(r.cfg().Matcher), logger), nil
}

// liveSession is a running session and its journal.
type liveSession struct {
	*session.Session
	record   *repositories.SessionRecord
	sessions *repositories.SessionRepository
}

// buildSession wires a ledger journaled to the database, the turn engine, the playback monitor and the matcher
// into a [session.Session].
func (r *Runner) buildSession(ctx context.Context, persona string, progress chan<- tasks.ProgressUpdate) (*liveSession, error) {
	cfg := r.cfg()
	if persona == "" {
		persona = cfg.Session.Persona
	}

	transport, err := r.Transport(ctx)
	if err != nil {
		return nil, err
	}
	resolver, err := r.Resolver(ctx)
	if err != nil {
		return nil, err
	}

	db, err := r.openDB()
	if err != nil {
		return nil, err
	}
	sessions := repositories.NewSessionRepository(db)
	record, err := sessions.Start(persona, cfg.Session.Catalog)
	if err != nil {
		return nil, err
	}

	logger := shared.WithLogger(r.logger, "session", record.ID)
	recorder := repositories.NewEntryRecorder(repositories.NewEntryRepository(db), record.ID, logger)
	l := ledger.New(ledger.WithObserver(recorder.Observe))

	engine := tasks.NewTurnEngine(l, r.recommender, resolver, r.validator, tasks.Options{
		Persona:    persona,
		StyleGuide: cfg.Session.StyleGuide,
		Progress:   progress,
	}, shared.WithLogger(logger, "component", "turns"))
	monitor := playback.NewMonitor(transport, l, playback.OptionsFromConfig(cfg.Playback), shared.WithLogger(logger, "component", "playback"))

	return &liveSession{
		Session:  session.New(l, engine, monitor, transport, resolver, logger),
		record:   record,
		sessions: sessions,
	}, nil
}

// watchStyle applies persona and style guide edits made to the config file while the session runs. A persona
// given on the command line wins over the file.
func (r *Runner) watchStyle(ctx context.Context, s *liveSession, personaFlag string) {
	if r.configPath == "" {
		return
	}
	if _, err := os.Stat(r.configPath); err != nil {
		return
	}

	err := shared.WatchConfig(ctx, r.configPath, r.logger, func(c *shared.Config) {
		persona := c.Session.Persona
		if personaFlag != "" {
			persona = personaFlag
		}
		s.SetStyle(persona, c.Session.StyleGuide)
	})
	if err != nil {
		r.logger.Warn("config changes will not be applied", "error", err)
	}
}

// end stamps the journal once the session has stopped.
func (s *liveSession) end(logger *log.Logger) {
	if err := s.sessions.End(s.record.ID); err != nil {
		logger.Warn("failed to close session journal", "session", s.record.ID, "error", err)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// isTerminal reports whether the runner's output is an interactive terminal.
func (r *Runner) isTerminal() bool {
	f, ok := r.output.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// newTable returns a table writer mirrored to the runner's output, capped to the terminal width when there is one.
func (r *Runner) newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(r.output)
	tw.SetStyle(table.StyleLight)
	if r.isTerminal() {
		tw.SetAllowedRowLength(termWidth())
	}
	return tw
}

func termWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 120
}

func statusColor(status models.Status) func(a ...any) string {
	switch status {
	case models.Playing:
		return text.FgGreen.Sprint
	case models.UpNext:
		return text.FgCyan.Sprint
	case models.Backup:
		return text.FgYellow.Sprint
	default:
		return text.FgHiBlack.Sprint
	}
}

// writeEntries renders ledger entries as a numbered table.
func (r *Runner) writeEntries(entries []models.LedgerEntry) {
	color := r.isTerminal()
	tw := r.newTable()
	tw.AppendHeader(table.Row{"#", "Artist", "Title", "Length", "By", "Status", "ID"})
	for i, e := range entries {
		status := string(e.Status)
		if color {
			status = statusColor(e.Status)(status)
		}
		tw.AppendRow(table.Row{i + 1, e.Item.Artist, e.Item.Title, formatDuration(e.Item.Duration), e.ContributedBy, status, e.ID})
	}
	tw.Render()
}

// exitCode maps sentinel errors onto process exit codes for scripts driving the CLI.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, shared.ErrNoMatch), errors.Is(err, shared.ErrEntryNotFound):
		return 2
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidConfig):
		return 3
	default:
		return 1
	}
}
