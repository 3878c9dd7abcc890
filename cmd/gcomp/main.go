package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/atinylittleshell/gcomp/internal/completion"
	"github.com/atinylittleshell/gcomp/internal/config"
	"github.com/atinylittleshell/gcomp/internal/core"
	"github.com/atinylittleshell/gcomp/internal/engine"
	"github.com/atinylittleshell/gcomp/internal/styles"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var BUILD_VERSION = "dev"

var lineFlag = flag.String("line", "", "command line to complete")
var posFlag = flag.Int("pos", -1, "cursor byte offset in the line (default: end of line)")
var jsonFlag = flag.Bool("json", false, "print completions as JSON")
var resolveFlag = flag.Bool("resolve", false, "resolve documentation for each completion")

var hintFlag = flag.Bool("hint", false, "report whether an edit should show completions")
var insertedFlag = flag.String("inserted", "", "text inserted by the edit (with -hint)")
var removedFlag = flag.String("removed", "", "text removed by the edit (with -hint)")
var visibleFlag = flag.Bool("visible", false, "completions are already visible (with -hint)")

var recordFlag = flag.String("record", "", "record an executed command in history")
var exitFlag = flag.Int("exit", 0, "exit code of the recorded command (with -record)")
var dirFlag = flag.String("dir", "", "working directory (default: current directory)")

var searchFlag = flag.String("search", "", "list recorded commands containing the text")
var limitFlag = flag.Int("limit", 20, "maximum number of results (with -search)")
var forgetFlag = flag.Uint("forget", 0, "delete the recorded command with the given id")
var resetHistoryFlag = flag.Bool("reset-history", false, "delete all recorded commands")

var providersFlag = flag.Bool("providers", false, "list the active providers in priority order")
var configFlag = flag.String("config", "", "path to the configuration file")
var debugFlag = flag.Bool("debug", false, "enable debug logging")

var helpFlag = flag.Bool("h", false, "display help information")
var versionFlag = flag.Bool("ver", false, "display build version")

const helpText = `gcomp - Merged shell completions from many providers

USAGE:
  gcomp [options]

MODES:
  gcomp -line "git ch"                  Print completions for the end of the line
  gcomp -line "git ch ." -pos 6         Complete at a byte offset
  gcomp -hint -line "g" -inserted g     Print whether the edit should show completions
  gcomp -record "make test" -exit 0     Record an executed command in history
  gcomp -search make                    List recorded commands containing "make"
  gcomp -forget 42                      Delete recorded command 42
  gcomp -reset-history                  Delete all recorded commands
  gcomp -providers                      List the active providers

FILES:
  ~/.gcomp/config.yaml    Configuration
  ~/.gcomprc              Aliases, functions and complete specs
  ~/.gcomp/history.db     Command history
  ~/.gcomp/gcomp.log      Log file

OPTIONS:
`

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(BUILD_VERSION)
		return
	}

	if *helpFlag {
		fmt.Print(helpText)
		flag.PrintDefaults()
		return
	}

	cfg := loadConfig()

	logger, err := initializeLogger(cfg.LogLevel, *debugFlag)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // Flush any buffered log entries

	logger.Info("-------- new gcomp invocation --------", zap.Any("args", os.Args))

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("unhandled error", zap.Error(err))
		fmt.Fprintln(os.Stderr, styles.ERROR(err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	workingDir := *dirFlag
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		workingDir = wd
	}

	if cfg.RCFile == "" {
		cfg.RCFile = core.RCFile()
	}
	cfg.RCFile = core.ExpandHome(cfg.RCFile)

	eng, err := engine.New(ctx, engine.Options{
		Config:      cfg,
		Logger:      logger,
		HistoryPath: core.HistoryFile(),
		WorkingDir:  workingDir,
		Stderr:      os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize completion engine: %w", err)
	}
	defer eng.Close()

	switch {
	// gcomp -providers
	case *providersFlag:
		for _, id := range eng.ProviderIDs() {
			fmt.Println(id)
		}
		return nil

	// gcomp -record "make test"
	case *recordFlag != "":
		return eng.Record(*recordFlag, workingDir, *exitFlag)

	// gcomp -search make
	case *searchFlag != "":
		entries, err := eng.SearchHistory(*searchFlag, *limitFlag)
		if err != nil {
			return err
		}
		writeHistory(os.Stdout, entries)
		return nil

	// gcomp -forget 42
	case *forgetFlag != 0:
		return eng.ForgetHistory(*forgetFlag)

	// gcomp -reset-history
	case *resetHistoryFlag:
		return eng.ResetHistory()

	// gcomp -hint -line "g" -inserted g
	case *hintFlag:
		offset := cursor(*lineFlag, *posFlag) - len(*insertedFlag)
		if offset < 0 {
			offset = 0
		}
		show := eng.Hint(*visibleFlag, completion.ChangeEvent{
			Offset:   offset,
			Inserted: *insertedFlag,
			Removed:  *removedFlag,
		})
		fmt.Println(show)
		return nil
	}

	// gcomp -line "git ch"
	start := time.Now()
	reply := eng.Complete(ctx, *lineFlag, cursor(*lineFlag, *posFlag))
	logger.Debug("completion finished", zap.Duration("elapsed", time.Since(start)))

	if reply != nil && *resolveFlag {
		resolveItems(ctx, reply, logger)
	}

	if *jsonFlag {
		return writeJSON(os.Stdout, reply)
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		writeColumns(os.Stdout, reply, terminalWidth())
		return nil
	}
	writePlain(os.Stdout, reply)
	return nil
}

func loadConfig() *config.Config {
	loader := config.NewLoader(zap.NewNop())

	var result *config.LoadResult
	var err error
	if *configFlag != "" {
		result, err = loader.LoadFromFile(core.ExpandHome(*configFlag))
	} else {
		result, err = loader.LoadDefaultConfigPath()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.WARNING(fmt.Sprintf("gcomp: %v, using defaults", err)))
		return config.DefaultConfig()
	}

	for _, loadErr := range result.Errors {
		fmt.Fprintln(os.Stderr, styles.WARNING(fmt.Sprintf("gcomp: config: %v", loadErr)))
	}
	return result.Config
}

func initializeLogger(level string, debug bool) (*zap.Logger, error) {
	logLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if debug || BUILD_VERSION == "dev" {
		logLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = logLevel
	// Logs only go to file so they never mix with completion output
	// Use `tail -f ~/.gcomp/gcomp.log` to monitor logs in real-time
	loggerConfig.OutputPaths = []string{
		core.LogFile(),
	}

	return loggerConfig.Build()
}

// cursor clamps pos into line; a negative pos means the end of the line.
func cursor(line string, pos int) int {
	if pos < 0 || pos > len(line) {
		return len(line)
	}
	return pos
}

func resolveItems(ctx context.Context, reply *completion.Reply, logger *zap.Logger) {
	for i, item := range reply.Items {
		if item.Resolve == nil {
			continue
		}
		resolved, err := item.Resolve(ctx)
		if err != nil {
			logger.Debug("failed to resolve item", zap.String("label", item.Label), zap.Error(err))
			continue
		}
		reply.Items[i] = resolved
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
