package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nfcbox/internal/library"
	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/repositories"
	"github.com/desertthunder/nfcbox/internal/services"
	"github.com/desertthunder/nfcbox/internal/shared"
	"github.com/desertthunder/nfcbox/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	device     *services.DeviceService
	ownsDevice bool
	engine     *tasks.LibraryEngine
	journal    *repositories.JournalRepository
	db         *sql.DB
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	input      *bufio.Reader
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Device     *services.DeviceService
	Journal    *repositories.JournalRepository
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
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
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		journal:    opts.Journal,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      bufio.NewReader(opts.Input),
	}
	if opts.Device != nil {
		if err := r.useDevice(opts.Device); err != nil {
			r.logger.Warn("invalid library settings, using defaults", "error", err)
		}
	}
	return r
}

// Load is the root Before hook: it reads the config file, applies global flags and connects the device client.
//
// A missing config file keeps the current (default) configuration.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.IsSet("config") || r.configPath == "" {
		r.configPath = cmd.String("config")
	}

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		r.config = config
	}

	if url := cmd.String("url"); url != "" {
		r.config.Device.BaseURL = url
		r.device = nil
	}

	level := r.config.Log.Level
	if l := cmd.String("log-level"); l != "" {
		level = l
	}
	if err := shared.ApplyLogLevel(r.logger, level); err != nil {
		return ctx, err
	}

	if r.device == nil {
		if err := r.connect(); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

// Close releases the journal database opened by the runner. Used as the root After hook.
func (r *Runner) Close(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db, r.journal = nil, nil
	if r.engine != nil {
		r.engine.WithJournal(nil)
	}
	return err
}

// SetLogger replaces the logger, rebuilding the device client when the runner created it.
func (r *Runner) SetLogger(l *log.Logger) error {
	r.logger = l
	if r.ownsDevice {
		return r.connect()
	}
	return nil
}

// connect builds the device client from the [device] config section.
func (r *Runner) connect() error {
	device, err := services.NewDeviceServiceFromConfig(r.config.Device, r.logger)
	if err != nil {
		return err
	}
	r.ownsDevice = true
	return r.useDevice(device)
}

func (r *Runner) useDevice(device *services.DeviceService) error {
	r.device = device

	logger := shared.WithLogger(r.logger, "device", device.BaseURL())
	opts, state, err := r.libraryOptions()
	vm := library.NewViewModel(device, state, opts, logger)
	r.engine = tasks.NewLibraryEngine(device, vm, logger)
	if r.journal != nil {
		r.engine.WithJournal(r.journal)
	}
	return err
}

// libraryOptions reads the [library] config section, falling back to defaults for bad values.
func (r *Runner) libraryOptions() (library.Options, models.SortState, error) {
	cfg := r.config.Library
	opts := library.Options{DateLayout: cfg.DateLayout}
	state := models.DefaultSortState()

	loc, err := cfg.Location()
	if err != nil {
		return opts, state, err
	}
	opts.Location = loc

	if cfg.SortColumn != "" {
		column, err := models.ParseColumn(cfg.SortColumn)
		if err != nil {
			return opts, state, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		state = models.SortState{Column: column, Ascending: cfg.SortAscending}
	}
	return opts, state, nil
}

// recordOperations opens the journal on first use and attaches it to the engine.
//
// The journal is optional: an unset database path or an open failure only logs.
func (r *Runner) recordOperations() *repositories.JournalRepository {
	if r.journal != nil {
		return r.journal
	}
	if r.config.Database.Path == "" {
		return nil
	}

	db, err := shared.OpenJournal(r.config.Database)
	if err != nil {
		r.logger.Warn("operation journal unavailable", "path", r.config.Database.Path, "error", err)
		return nil
	}

	r.db = db
	r.journal = repositories.NewJournalRepository(db)
	if r.engine != nil {
		r.engine.WithJournal(r.journal)
	}
	return r.journal
}

// confirmer answers yes when skip is set, otherwise asks on the runner's input.
func (r *Runner) confirmer(skip bool) tasks.Confirmer {
	if skip {
		return tasks.AlwaysConfirm
	}
	return tasks.ConfirmFunc(func(prompt string) bool {
		r.writePlain("%s [y/N]: ", prompt)
		answer, err := r.input.ReadString('\n')
		if err != nil && answer == "" {
			r.writePlain("\n")
			return false
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	})
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		lsCommand, songsCommand, mappingsCommand, tagCommand, uploadCommand, renameCommand, deleteCommand,
		downloadCommand, previewCommand, mapCommand, unmapCommand, historyCommand, apiCommand, setupCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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
