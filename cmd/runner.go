package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/journeyx/internal/journey"
	"github.com/desertthunder/journeyx/internal/mission"
	"github.com/desertthunder/journeyx/internal/progress"
	"github.com/desertthunder/journeyx/internal/purchase"
	"github.com/desertthunder/journeyx/internal/repositories"
	"github.com/desertthunder/journeyx/internal/services"
	"github.com/desertthunder/journeyx/internal/shared"
	"github.com/desertthunder/journeyx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	api        *services.APIService
	logger     *log.Logger
	output     io.Writer
	bus        purchase.Bus
	clock      progress.Clock

	dbOnce sync.Once
	db     *sql.DB
	dbErr  error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// DB replaces the configured database. Migrations are still run on it.
	DB *sql.DB
	// Bus replaces the configured purchase bus.
	Bus   purchase.Bus
	Clock progress.Clock
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		jar, _ := cookiejar.New(nil)
		opts.HTTPClient = &http.Client{Jar: jar}
	}

	r := &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		bus:        opts.Bus,
		clock:      opts.Clock,
	}
	r.api = r.newAPI(opts.HTTPClient, nil)
	if opts.DB != nil {
		r.dbOnce.Do(func() {
			r.db = opts.DB
			r.dbErr = shared.RunMigrations(opts.DB)
		})
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, configCommand, authCommand, journeyCommand, missionCommand, orderCommand, purchasesCommand,
		healthCommand, tuiCommand, apiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the logger, as when a full-screen interface takes over the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases the database.
func (r *Runner) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Runner) newAPI(client *http.Client, onUnauthorized func()) *services.APIService {
	return services.NewAPIServiceWithOpts(services.APIOpts{
		BaseURL:           r.config.API.BaseURL,
		HTTPClient:        client,
		Timeout:           r.config.API.Timeout(),
		RequestsPerSecond: r.config.API.RequestsPerSecond,
		OnUnauthorized:    onUnauthorized,
		Logger:            r.logger,
	})
}

// database opens the configured database once and migrates it.
func (r *Runner) database() (*sql.DB, error) {
	r.dbOnce.Do(func() {
		r.db, r.dbErr = shared.OpenDatabase(r.config.Database)
	})
	if r.dbErr != nil {
		return nil, fmt.Errorf("failed to open database: %w", r.dbErr)
	}
	return r.db, nil
}

func (r *Runner) sessions() (*repositories.SessionRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewSessionRepository(db), nil
}

// newBus builds the configured purchase bus.
func (r *Runner) newBus(ctx context.Context) (purchase.Bus, error) {
	if r.bus != nil {
		return r.bus, nil
	}
	switch r.config.Broadcast.Driver {
	case "redis":
		return purchase.NewRedisBus(ctx, r.config.Broadcast.RedisAddr, r.config.Broadcast.Channel, r.logger)
	default:
		return purchase.NewLocalBus(), nil
	}
}

func (r *Runner) notify(msg string) {
	r.writePlain("! %s\n", msg)
}

// workspace is one command's wired session: authenticated API, purchase gate, journey cache,
// mission machine and engine.
type workspace struct {
	stored   *repositories.StoredSession
	api      *services.APIService
	bus      purchase.Bus
	gate     *purchase.Gate
	cache    *journey.Cache
	machine  *mission.Machine
	checkout *purchase.Checkout
	store    *repositories.ProgressRepository
	engine   *tasks.MissionEngine
	ownBus   bool
}

func (w *workspace) userID() int64 {
	if w.stored == nil {
		return 0
	}
	return w.stored.UserID
}

// Close releases the bus when the workspace created it.
func (w *workspace) Close() {
	if w.ownBus && w.bus != nil {
		_ = w.bus.Close()
	}
}

// listen keeps a long-lived command's lock state in step with purchases made in other sessions.
// The gate refresh relocks the cache, which pushes a new snapshot to its subscribers.
func (r *Runner) listen(ctx context.Context, w *workspace) {
	if w.userID() == 0 {
		return
	}
	if err := w.gate.Listen(ctx); err != nil {
		r.logger.Warn("purchases from other sessions will not be picked up", "err", err)
	}
}

// workspace wires the stored session into the domain components. Without a stored session the workspace
// is anonymous, unless requireAuth is set.
func (r *Runner) workspace(ctx context.Context, requireAuth bool) (*workspace, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	sessions := repositories.NewSessionRepository(db)

	stored, err := sessions.Active()
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		if requireAuth {
			return nil, fmt.Errorf("%w: run 'journeyx auth login' first", shared.ErrNotAuthenticated)
		}
		stored = nil
	case err != nil:
		return nil, err
	}

	w := &workspace{stored: stored, store: repositories.NewProgressRepository(db)}
	w.api = r.api
	if stored != nil {
		w.api = r.authenticatedAPI(ctx, sessions, stored, w)
	}

	if w.bus, err = r.newBus(ctx); err != nil {
		return nil, err
	}
	w.ownBus = r.bus == nil

	w.gate = purchase.NewGate(purchase.GateOpts{UserID: w.userID(), API: w.api, Bus: w.bus, Logger: r.logger})
	w.cache = journey.NewCache(journey.Options{
		API:            w.api,
		Gate:           w.gate,
		MaxConcurrency: r.config.API.MaxConcurrency,
		Logger:         r.logger,
	})
	w.gate.OnChange(w.cache.Relock)

	w.machine = mission.NewMachine(mission.MachineOpts{
		UserID: w.userID(),
		API:    w.api,
		Sink:   w.cache,
		Store:  w.store,
		Logger: r.logger,
	})
	w.checkout = purchase.NewCheckout(purchase.CheckoutOpts{API: w.api, Gate: w.gate, Cache: w.cache, Logger: r.logger})
	w.engine = tasks.NewMissionEngine(tasks.EngineOpts{
		API:      w.api,
		Cache:    w.cache,
		Gate:     w.gate,
		Machine:  w.machine,
		Checkout: w.checkout,
		Store:    w.store,
		Interval: r.config.Tracker.Interval(),
		Clock:    r.clock,
		Timeout:  r.config.API.Timeout(),
		Notify:   r.notify,
		Logger:   r.logger,
	})
	return w, nil
}

// authenticatedAPI sends the stored token with every request. Refreshed tokens are written back; a 401 drops
// the stored session and every purchase fact derived from it.
func (r *Runner) authenticatedAPI(ctx context.Context, sessions *repositories.SessionRepository, stored *repositories.StoredSession, w *workspace) *services.APIService {
	initial := &services.Session{AccessToken: stored.AccessToken, UserID: stored.UserID, Username: stored.Username}
	if stored.ExpiresAt != nil {
		initial.ExpiresAt = *stored.ExpiresAt
	}

	ts := r.api.TokenSource(ctx, initial, func(s *services.Session) {
		expires := s.ExpiresAt
		if err := sessions.UpdateToken(stored.ID, s.AccessToken, &expires); err != nil {
			r.logger.Warn("failed to store refreshed token", "err", err)
		}
	})

	var once sync.Once
	onUnauthorized := func() {
		once.Do(func() {
			r.logger.Warn("session rejected by the backend, run 'journeyx auth login'", "user", stored.Username)
			if err := sessions.Delete(stored.ID); err != nil {
				r.logger.Warn("failed to drop session", "err", err)
			}
			if w.gate != nil {
				w.gate.Reset()
			}
			if w.cache != nil {
				w.cache.Reset()
			}
		})
	}
	return r.newAPI(services.AuthenticatedClient(r.httpClient, ts), onUnauthorized)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return err
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

// printProgress writes engine updates until the channel is closed, then signals done.
func (r *Runner) printProgress(progressCh <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	for update := range progressCh {
		switch update.Phase {
		case tasks.LoadJourney:
			r.writePlain("📥 %s\n", update.Message)
		case tasks.CheckAccess:
			r.writePlain("🔒 %s\n", update.Message)
		case tasks.CreateOrder, tasks.PayOrder:
			r.writePlain("💳 %s\n", update.Message)
		default:
			r.writePlain("   %s\n", update.Message)
		}
	}
	close(done)
}

// withProgress runs fn with a progress channel printed to the output.
func (r *Runner) withProgress(fn func(chan<- tasks.ProgressUpdate) error) error {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go r.printProgress(progressCh, done)

	err := fn(progressCh)
	close(progressCh)
	<-done
	return err
}
