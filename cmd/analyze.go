package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	git "github.com/go-git/go-git/v5"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/go-janitor/janitor/internal/config"
	"github.com/go-janitor/janitor/internal/janitor"
	"github.com/go-janitor/janitor/internal/model"
)

var (
	configPath     string
	libraryMode    bool
	grepShield     bool
	failOnFindings bool
	watch          bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Scan a project for orphan files and dead symbols",
	Args:  cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to .janitorrc.yml (defaults to <path>/.janitorrc.yml)")
	analyzeCmd.Flags().BoolVar(&libraryMode, "library-mode", false, "treat exported symbols as always referenced, for published packages")
	analyzeCmd.Flags().BoolVar(&grepShield, "grep-shield", false, "fall back to a literal-string search before declaring a symbol dead")
	analyzeCmd.Flags().BoolVar(&failOnFindings, "fail-on-findings", false, "exit 2 if any orphan file or dead symbol is found")
	analyzeCmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-run the analysis whenever a source file changes")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	var dir string
	switch {
	case len(args) == 1:
		dir = args[0]
	default:
		dir = detectProjectRoot()
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	projectCfg, err := config.LoadProjectConfig(absDir, configPath)
	if err != nil {
		return fmt.Errorf("load project config: %w", err)
	}
	if cmd.Flags().Changed("library-mode") {
		projectCfg.LibraryMode = libraryMode
	}
	if cmd.Flags().Changed("grep-shield") {
		projectCfg.GrepShield = grepShield
	}

	run := func() (*model.ProjectResult, error) {
		j := janitor.New(absDir, projectCfg, logger)
		j.OnProgress = func(stage, message string) {
			if verbose {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", stage, message)
			}
		}
		return j.Analyze()
	}

	result, err := run()
	if err != nil {
		return fmt.Errorf("analyze %s: %w", absDir, err)
	}
	printSummary(absDir, result)

	if watch {
		return watchAndRerun(absDir, run)
	}

	if failOnFindings && (len(result.OrphanFiles) > 0 || len(result.DeadSymbols) > 0) {
		return &findingsError{message: "orphan files or dead symbols found"}
	}
	return nil
}

// detectProjectRoot anchors a bare `janitor analyze` (no path argument) at
// the enclosing git repository's worktree root, the way a developer expects
// a project-aware tool to behave, falling back to the working directory
// when the current directory isn't inside a git worktree at all.
func detectProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	repo, err := git.PlainOpenWithOptions(cwd, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "."
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "."
	}
	return wt.Filesystem.Root()
}

func printSummary(root string, result *model.ProjectResult) {
	useColor := isatty.IsTerminal(os.Stdout.Fd())
	ok := color.New(color.FgGreen, color.Bold)
	warn := color.New(color.FgYellow, color.Bold)
	bad := color.New(color.FgRed, color.Bold)
	if !useColor {
		color.NoColor = true
	}

	cacheNote := ""
	if result.FromCache {
		cacheNote = " (from cache)"
	}

	fmt.Printf("%d files scanned, %d definitions tracked%s\n", result.Stats.TotalFiles, result.Stats.TotalDefinitions, cacheNote)

	for _, path := range result.OrphanFiles {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		warn.Printf("orphan  ")
		fmt.Println(rel)
	}
	for _, d := range result.DeadSymbols {
		rel, err := filepath.Rel(root, d.Entity.FilePath)
		if err != nil {
			rel = d.Entity.FilePath
		}
		warn.Printf("dead    ")
		fmt.Printf("%s:%d  %s\n", rel, d.Entity.Line, d.Entity.QualifiedName)
	}

	if len(result.OrphanFiles) == 0 && len(result.DeadSymbols) == 0 {
		ok.Println("no orphan files or dead symbols found")
		return
	}
	bad.Printf("%d orphan file(s), %d dead symbol(s)\n", len(result.OrphanFiles), len(result.DeadSymbols))
}

func watchAndRerun(root string, run func() (*model.ProjectResult, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start file watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, root); err != nil {
		return fmt.Errorf("watch project tree: %w", err)
	}

	fmt.Println("watching for changes, press ctrl-c to stop")
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			result, err := run()
			if err != nil {
				fmt.Fprintf(os.Stderr, "re-analyze failed: %v\n", err)
				continue
			}
			printSummary(root, result)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}

func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if name == ".git" || name == "node_modules" || name == ".janitor_cache" || name == "__pycache__" {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
