package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/duet/internal/ledger"
	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/repositories"
	"github.com/desertthunder/duet/internal/services"
	"github.com/desertthunder/duet/internal/shared"
	tu "github.com/desertthunder/duet/internal/testing"
)

var (
	testSong  = models.Item{ID: "t1", Title: "Test Song", Artist: "Test Artist", Duration: 3 * time.Minute}
	otherSong = models.Item{ID: "t2", Title: "Other Song", Artist: "Other Artist", Duration: 4 * time.Minute}
)

func testConfig() *shared.Config {
	config := shared.DefaultConfig()
	config.Session.SemanticMatching = false
	config.Database.Path = ":memory:"
	return config
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testCatalog() *tu.MockCatalog {
	return &tu.MockCatalog{Results: map[string][]models.Item{
		"Test Artist Test Song":   {testSong},
		"Other Artist Other Song": {otherSong},
	}}
}

// run executes args against a root command wired the same way as main.
func run(r *Runner, args ...string) error {
	app := &cli.Command{
		Name: "duet",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.toml"},
			&cli.BoolFlag{Name: "debug"},
		},
		Before:   r.Before,
		Commands: r.register(),
	}
	return app.Run(context.Background(), append([]string{"duet"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			input := strings.NewReader("")
			catalog := &tu.MockCatalog{}
			transport := &tu.MockTransport{}

			runner := NewRunner(RunnerOpts{
				Config:    config,
				Logger:    logger,
				Output:    output,
				Input:     input,
				Catalog:   catalog,
				Transport: transport,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.input != input {
				t.Error("expected input to be set")
			}
			if runner.catalog != catalog {
				t.Error("expected catalog to be set")
			}
			if runner.transport != transport {
				t.Error("expected transport to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.input != os.Stdin {
				t.Error("expected input to default to os.Stdin")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("missing file falls back to defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger()})
			if err := runner.loadConfig(filepath.Join(t.TempDir(), "missing.toml")); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config == nil || runner.config.Session.Catalog != "spotify" {
				t.Errorf("expected default config, got %+v", runner.config)
			}
		})

		t.Run("reads overrides from file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("[session]\ncatalog = \"youtube\"\n"), 0644); err != nil {
				t.Fatal(err)
			}

			runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger()})
			if err := runner.loadConfig(path); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.config.Session.Catalog != "youtube" {
				t.Errorf("expected youtube catalog, got %s", runner.config.Session.Catalog)
			}
			if runner.configPath != path {
				t.Errorf("expected configPath %s, got %s", path, runner.configPath)
			}
		})

		t.Run("invalid file is an error", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("[session]\ncatalog = \"tape\"\n"), 0644); err != nil {
				t.Fatal(err)
			}

			runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger()})
			err := runner.loadConfig(path)
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"setup", "session", "match", "now", "history"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})
}

func TestCollaborators(t *testing.T) {
	t.Run("youtube catalog has no transport", func(t *testing.T) {
		config := testConfig()
		config.Session.Catalog = "youtube"
		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.DiscardLogger()})

		catalog, err := runner.Catalog(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := catalog.(*services.YouTubeService); !ok {
			t.Errorf("expected YouTube catalog, got %T", catalog)
		}

		if _, err := runner.Transport(context.Background()); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("spotify without tokens fails", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: testConfig(), Logger: shared.DiscardLogger()})

		if _, err := runner.Catalog(context.Background()); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("spotify serves as catalog and transport", func(t *testing.T) {
		config := testConfig()
		config.Credentials.Spotify.AccessToken = "token"
		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.DiscardLogger()})

		transport, err := runner.Transport(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := transport.(*services.SpotifyService); !ok {
			t.Errorf("expected Spotify transport, got %T", transport)
		}
		if runner.catalog != transport.(services.Catalog) {
			t.Error("expected catalog and transport to be the same service")
		}
	})

	t.Run("assistant fills missing roles", func(t *testing.T) {
		config := testConfig()
		config.Session.Validation = true
		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.DiscardLogger()})

		runner.assistant()
		if _, ok := runner.recommender.(*services.AssistantService); !ok {
			t.Errorf("expected assistant recommender, got %T", runner.recommender)
		}
		if _, ok := runner.validator.(*services.AssistantService); !ok {
			t.Errorf("expected assistant validator, got %T", runner.validator)
		}
		if runner.ranker != nil {
			t.Errorf("expected no ranker with semantic matching off, got %T", runner.ranker)
		}
	})

	t.Run("injected roles are kept", func(t *testing.T) {
		recommender := &tu.MockRecommender{}
		runner := NewRunner(RunnerOpts{Config: testConfig(), Recommender: recommender, Logger: shared.DiscardLogger()})

		runner.assistant()
		if runner.recommender != recommender {
			t.Error("expected injected recommender to be kept")
		}
		if runner.validator != nil {
			t.Errorf("expected no validator with validation off, got %T", runner.validator)
		}
	})
}

func TestMatch(t *testing.T) {
	newRunner := func(output *bytes.Buffer) *Runner {
		return NewRunner(RunnerOpts{
			Config:  testConfig(),
			Logger:  shared.DiscardLogger(),
			Output:  output,
			Catalog: testCatalog(),
		})
	}

	t.Run("prints the resolved track", func(t *testing.T) {
		output := &bytes.Buffer{}
		if err := run(newRunner(output), "match", "Test Artist - Test Song"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		for _, want := range []string{"✓ Test Artist - Test Song", "t1", "3:00"} {
			if !strings.Contains(result, want) {
				t.Errorf("expected output to contain %q, got %s", want, result)
			}
		}
	})

	t.Run("prints JSON", func(t *testing.T) {
		output := &bytes.Buffer{}
		if err := run(newRunner(output), "match", "--json", "Test Artist - Test Song"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !strings.Contains(output.String(), `"id": "t1"`) {
			t.Errorf("expected item in JSON, got %s", output.String())
		}
	})

	t.Run("no match", func(t *testing.T) {
		output := &bytes.Buffer{}
		err := run(newRunner(output), "match", "Nobody - Nothing")
		if !errors.Is(err, shared.ErrNoMatch) {
			t.Fatalf("expected ErrNoMatch, got %v", err)
		}
		if !strings.Contains(output.String(), "No match") {
			t.Errorf("expected no match message, got %s", output.String())
		}
		if exitCode(err) != 2 {
			t.Errorf("expected exit code 2, got %d", exitCode(err))
		}
	})

	t.Run("rejects malformed query", func(t *testing.T) {
		err := run(newRunner(&bytes.Buffer{}), "match", "just a title")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestNow(t *testing.T) {
	t.Run("nothing playing", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: testConfig(), Output: output, Transport: &tu.MockTransport{}})

		if err := run(runner, "now"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "Nothing playing\n" {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("playing", func(t *testing.T) {
		transport := &tu.MockTransport{}
		transport.SetState(&models.PlaybackState{ItemID: "t1", Position: time.Minute, Duration: 4 * time.Minute, IsPlaying: true})

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: testConfig(), Output: output, Transport: transport})

		if err := run(runner, "now"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := "▶ t1  1:00 / 4:00 (25%)\n"
		if output.String() != want {
			t.Errorf("expected %q, got %q", want, output.String())
		}
	})
}

// seedJournal records one finished session with a human and an automated entry.
func seedJournal(t *testing.T, db *sql.DB) string {
	t.Helper()

	sessions := repositories.NewSessionRepository(db)
	rec, err := sessions.Start("night owl", "spotify")
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	recorder := repositories.NewEntryRecorder(repositories.NewEntryRepository(db), rec.ID, shared.DiscardLogger())
	l := ledger.New(ledger.WithObserver(recorder.Observe))
	l.Enqueue(testSong, models.Human, "", models.UpNext)
	l.Enqueue(otherSong, models.Automated, "keeps the tempo", models.Backup)
	l.PromoteNext()
	l.PromoteNext()

	if err := sessions.End(rec.ID); err != nil {
		t.Fatalf("failed to end session: %v", err)
	}
	return rec.ID
}

func TestHistory(t *testing.T) {
	newRunner := func(t *testing.T, output *bytes.Buffer) (*Runner, string) {
		db := testDB(t)
		id := seedJournal(t, db)
		return NewRunner(RunnerOpts{Config: testConfig(), Logger: shared.DiscardLogger(), Output: output, DB: db}), id
	}

	t.Run("list", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner, id := newRunner(t, output)

		if err := run(runner, "history", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), id) || !strings.Contains(output.String(), "night owl") {
			t.Errorf("expected session row, got %s", output.String())
		}
	})

	t.Run("list on empty database", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: testConfig(), Output: output, DB: testDB(t)})

		if err := run(runner, "history", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "No sessions recorded yet.") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("show defaults to latest", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner, id := newRunner(t, output)

		if err := run(runner, "history", "show"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		result := output.String()
		for _, want := range []string{"Session " + id, "Played:  2 (1 human, 1 automated)", "Test Song", "Other Song", "playing"} {
			if !strings.Contains(result, want) {
				t.Errorf("expected output to contain %q, got %s", want, result)
			}
		}
	})

	t.Run("show unknown session", func(t *testing.T) {
		runner, _ := newRunner(t, &bytes.Buffer{})
		if err := run(runner, "history", "show", "nope"); err == nil {
			t.Error("expected error for unknown session")
		}
	})

	t.Run("export json to stdout", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner, id := newRunner(t, output)

		if err := run(runner, "history", "export", "-f", "json", id); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), `"session_id": "`+id+`"`) {
			t.Errorf("expected journal JSON, got %s", output.String())
		}
	})

	t.Run("export csv", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner, _ := newRunner(t, output)
		base := filepath.Join(t.TempDir(), "journal")

		if err := run(runner, "history", "export", "-f", "csv", "-o", base+".csv"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, base+".csv")
		if !strings.Contains(tu.MustReadFile(t, base+".csv"), "Test Song") {
			t.Error("expected track in CSV")
		}
	})

	t.Run("export markdown", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner, _ := newRunner(t, output)
		dir := filepath.Join(t.TempDir(), "journal")

		if err := run(runner, "history", "export", "-o", dir); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertDirExists(t, dir)
		tu.AssertFileExists(t, filepath.Join(dir, "README.md"))
	})

	t.Run("unknown format", func(t *testing.T) {
		runner, _ := newRunner(t, &bytes.Buffer{})
		err := run(runner, "history", "export", "-f", "pdf")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestSetup(t *testing.T) {
	t.Run("config writes template", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: output})

		if err := run(runner, "--config", path, "setup", "config"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, path)

		if err := run(NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: output}), "--config", path, "setup", "config"); err == nil {
			t.Error("expected error when the config already exists")
		}
	})

	t.Run("database and rollback", func(t *testing.T) {
		dir := t.TempDir()
		config := testConfig()
		config.Database.Path = filepath.Join(dir, "duet.db")

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.DiscardLogger(), Output: output})
		t.Cleanup(func() { runner.Close() })

		if err := run(runner, "setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, config.Database.Path)
		if !strings.Contains(output.String(), "Database ready") {
			t.Errorf("unexpected output %q", output.String())
		}

		if err := run(runner, "setup", "rollback"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Rolled back") {
			t.Errorf("unexpected output %q", output.String())
		}
	})
}

func TestSessionRun(t *testing.T) {
	db := testDB(t)
	transport := &tu.MockTransport{}
	recommender := &tu.MockRecommender{Recs: []models.Recommendation{
		{Title: "Other Song", Artist: "Other Artist", Rationale: "keeps the tempo"},
	}}

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:      testConfig(),
		Logger:      shared.DiscardLogger(),
		Output:      output,
		Input:       strings.NewReader("help\nadd Test Artist - Test Song\nadd nonsense\nstatus\nquit\n"),
		Catalog:     testCatalog(),
		Transport:   transport,
		Recommender: recommender,
		DB:          db,
	})

	if err := run(runner, "session", "run", "--persona", "night owl"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	result := output.String()
	for _, want := range []string{"started as \"night owl\"", "Commands:", "✓ Queued Test Artist - Test Song", "✗ invalid input", "▶ Test Artist - Test Song (human)"} {
		if !strings.Contains(result, want) {
			t.Errorf("expected output to contain %q, got %s", want, result)
		}
	}

	played := transport.Played()
	if len(played) == 0 || played[0].ID != testSong.ID {
		t.Errorf("expected %s to be played first, got %v", testSong.ID, played)
	}

	rec, err := repositories.NewSessionRepository(db).Latest()
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	if rec.EndedAt == nil {
		t.Error("expected session to be ended")
	}
	if rec.Persona != "night owl" {
		t.Errorf("expected persona override, got %q", rec.Persona)
	}

	entries, err := repositories.NewEntryRepository(db).ListBySession(rec.ID)
	if err != nil {
		t.Fatalf("failed to load entries: %v", err)
	}
	if len(entries) == 0 || entries[0].Entry.Item.ID != testSong.ID || entries[0].Entry.ContributedBy != models.Human {
		t.Errorf("expected the human entry to be journaled first, got %+v", entries)
	}
}

func TestResolveEntry(t *testing.T) {
	queue := []models.LedgerEntry{{ID: "a"}, {ID: "b"}}

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr error
	}{
		{name: "position", ref: "2", want: "b"},
		{name: "id", ref: "a", want: "a"},
		{name: "out of range", ref: "3", wantErr: shared.ErrEntryNotFound},
		{name: "zero", ref: "0", wantErr: shared.ErrEntryNotFound},
		{name: "empty", ref: "", wantErr: shared.ErrMissingArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveEntry(queue, tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{shared.ErrNoMatch, 2},
		{shared.ErrEntryNotFound, 2},
		{shared.ErrInvalidConfig, 3},
		{errors.New("boom"), 1},
	}

	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
