package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/msageha/challenge_editor/internal/catalog"
	"github.com/msageha/challenge_editor/internal/logging"
	"github.com/msageha/challenge_editor/internal/model"
	"github.com/msageha/challenge_editor/internal/schedule"
	"github.com/msageha/challenge_editor/internal/session"
	"github.com/msageha/challenge_editor/internal/setup"
	"github.com/msageha/challenge_editor/internal/store"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "resolve":
		runResolve(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "edit":
		runEdit(os.Args[2:])
	case "save":
		runSave(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "show":
		runShow(os.Args[2:])
	case "list":
		runList(os.Args[2:])
	case "templates":
		runTemplates(os.Args[2:])
	case "version":
		fmt.Printf("chedit %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runInit(args []string) {
	dir := "."
	name := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--name":
			if i+1 >= len(args) {
				fatalUsage("--name requires a value", "usage: chedit init [dir] [--name <project name>]")
			}
			i++
			name = args[i]
		default:
			if strings.HasPrefix(args[i], "--") {
				fatalUsage("unknown flag: "+args[i], "usage: chedit init [dir] [--name <project name>]")
			}
			dir = args[i]
		}
	}

	res, err := setup.Run(dir, name)
	if err != nil {
		fatal("init", err)
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s Initialized %s\n", green("✓"), res.BaseDir)
	fmt.Printf("  starter draft: %s\n", res.DraftPath)
}

type resolveOptions struct {
	path     string
	start    time.Time
	fallback string
	json     bool
}

func parseResolveArgs(args []string) (resolveOptions, error) {
	var opts resolveOptions
	for i := 0; i < len(args); i++ {
		switch a := args[i]; a {
		case "--start", "--fallback":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a value", a)
			}
			i++
			if a == "--fallback" {
				if _, err := schedule.ParseFallbackPolicy(args[i]); err != nil {
					return opts, err
				}
				opts.fallback = args[i]
				continue
			}
			t, err := time.Parse(time.RFC3339, args[i])
			if err != nil {
				return opts, fmt.Errorf("--start: %w", err)
			}
			opts.start = t
		case "--json":
			opts.json = true
		default:
			if strings.HasPrefix(a, "--") || opts.path != "" {
				return opts, fmt.Errorf("unexpected argument: %s", a)
			}
			opts.path = a
		}
	}
	if opts.path == "" {
		return opts, errors.New("draft file is required")
	}
	return opts, nil
}

func runResolve(args []string) {
	const usage = "usage: chedit resolve <draft.yaml> [--start RFC3339] [--fallback sequential|base_start] [--json]"
	opts, err := parseResolveArgs(args)
	if err != nil {
		fatalUsage(err.Error(), usage)
	}

	cfg := optionalConfig()
	if opts.fallback != "" {
		cfg.Schedule.FallbackPolicy = opts.fallback
	}
	r, err := schedule.NewResolverFromConfig(cfg.Schedule)
	if err != nil {
		fatal("resolve", err)
	}

	d, err := session.ReadDraftFile(opts.path)
	if err != nil {
		fatal("resolve", err)
	}
	base := d.StartDate
	if !opts.start.IsZero() {
		base = opts.start
	}
	out := newResolveOutput(d, r.Resolve(d.Phases, base))

	if opts.json {
		if err := writeJSON(os.Stdout, out); err != nil {
			fatal("resolve", err)
		}
	} else {
		renderResolve(os.Stdout, out)
	}
	if out.Schedule.Error != "" {
		os.Exit(2)
	}
}

func runValidate(args []string) {
	if len(args) != 1 {
		fatalUsage("draft file is required", "usage: chedit validate <draft.yaml>")
	}
	cfg := optionalConfig()
	d, err := session.ReadDraftFile(args[0])
	if err != nil {
		fatal("validate", err)
	}
	problems := validateDraft(d, cfg)
	if len(problems) > 0 {
		red := color.New(color.FgRed).SprintFunc()
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "%s %s\n", red("error:"), p)
		}
		os.Exit(1)
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s %s is valid (%d phases)\n", green("✓"), d.ID, len(d.Phases))
}

// validateDraft collects every problem with a draft: form policy, the
// milestone gate and the schedule structure.
func validateDraft(d model.ChallengeDraft, cfg model.Config) []string {
	var problems []string
	if err := model.ValidateDraft(d, cfg.Limits); err != nil {
		problems = append(problems, err.Error())
	}
	if err := schedule.ValidateMilestone(d.Milestone, cfg.Limits); err != nil {
		problems = append(problems, err.Error())
	}
	if errs := schedule.ValidateSchedule(d.Phases); errs.HasErrors() {
		for _, e := range errs.Errors {
			problems = append(problems, e.Error())
		}
	}
	return problems
}

func runEdit(args []string) {
	const usage = `usage: chedit edit <draft.yaml> <op> [args] [--save]
  ops: start <RFC3339> | duration <phase> <minutes> | add [phase] | remove <phase>
       template <id> | snapshot | reset | scheduling <on|off>
       milestone <on|off> | milestone-count <n> | milestone-days <n>`
	saveAfter := false
	var rest []string
	for _, a := range args {
		if a == "--save" {
			saveAfter = true
			continue
		}
		rest = append(rest, a)
	}
	if len(rest) < 2 {
		fatalUsage("draft file and operation are required", usage)
	}
	path, op, opArgs := rest[0], rest[1], rest[2:]

	ws := openWorkspace()
	defer ws.close()

	d, err := session.ReadDraftFile(path)
	if err != nil {
		fatal("edit", err)
	}
	ctx := context.Background()
	sess, err := ws.openSession(ctx, d)
	if err != nil {
		fatal("edit", err)
	}
	defer sess.Close()

	if err := applyEdit(ctx, sess, op, opArgs); err != nil {
		fatalUsage(err.Error(), usage)
	}

	if saveAfter {
		saved, err := sess.Save(ctx)
		if err != nil {
			fatal("save", err)
		}
		fmt.Printf("saved %s revision %s\n", saved.Draft.ID, shortRevision(saved.Revision))
	}
	if err := session.WriteDraftFile(path, sess.Draft()); err != nil {
		fatal("edit", err)
	}
	renderResolve(os.Stdout, newResolveOutput(sess.Draft(), sess.Schedule()))
}

// applyEdit runs one editing operation against the session.
func applyEdit(ctx context.Context, sess *session.Session, op string, args []string) error {
	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s takes %d argument(s), got %d", op, n, len(args))
		}
		return nil
	}
	var err error
	switch op {
	case "start":
		if err = need(1); err != nil {
			return err
		}
		var t time.Time
		if t, err = time.Parse(time.RFC3339, args[0]); err != nil {
			return err
		}
		_, err = sess.SetBaseStartDate(t)
	case "duration":
		if err = need(2); err != nil {
			return err
		}
		var minutes float64
		if minutes, err = strconv.ParseFloat(args[1], 64); err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		_, err = sess.SetPhaseDuration(args[0], minutes)
	case "add":
		if len(args) > 1 {
			return errors.New("add takes at most one phase id")
		}
		phaseID := ""
		if len(args) == 1 {
			phaseID = args[0]
		}
		_, err = sess.AddPhase(ctx, phaseID)
	case "remove":
		if err = need(1); err != nil {
			return err
		}
		_, err = sess.RemovePhase(args[0])
	case "template":
		if err = need(1); err != nil {
			return err
		}
		_, err = sess.ApplyTemplate(ctx, args[0])
	case "snapshot":
		_, err = sess.SaveSchedule()
	case "reset":
		_, err = sess.ResetSchedule()
	case "scheduling", "milestone":
		if err = need(1); err != nil {
			return err
		}
		var on bool
		if on, err = parseSwitch(args[0]); err != nil {
			return err
		}
		if op == "scheduling" {
			err = sess.SetSchedulingEnabled(on)
		} else {
			err = sess.SetMilestoneEnabled(on)
		}
	case "milestone-count", "milestone-days":
		if err = need(1); err != nil {
			return err
		}
		var n int
		if n, err = strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if op == "milestone-count" {
			err = sess.SetMilestoneCount(n)
		} else {
			err = sess.SetMilestoneDurationDays(n)
		}
	default:
		return fmt.Errorf("unknown edit operation: %s", op)
	}
	return err
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func runSave(args []string) {
	if len(args) != 1 {
		fatalUsage("draft file is required", "usage: chedit save <draft.yaml>")
	}
	ws := openWorkspace()
	defer ws.close()

	d, err := session.ReadDraftFile(args[0])
	if err != nil {
		fatal("save", err)
	}
	ctx := context.Background()
	sess, err := ws.openSession(ctx, d)
	if err != nil {
		fatal("save", err)
	}
	defer sess.Close()

	saved, err := sess.Save(ctx)
	if err != nil {
		fatal("save", err)
	}
	if err := session.WriteDraftFile(args[0], sess.Draft()); err != nil {
		fatal("save", err)
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s saved %s revision %s at %s\n", green("✓"), saved.Draft.ID,
		shortRevision(saved.Revision), saved.SavedAt.Format(time.RFC3339))
}

func runShow(args []string) {
	jsonOutput := false
	id := ""
	for _, a := range args {
		switch {
		case a == "--json":
			jsonOutput = true
		case !strings.HasPrefix(a, "--") && id == "":
			id = a
		default:
			fatalUsage("unexpected argument: "+a, "usage: chedit show <id> [--json]")
		}
	}
	if id == "" {
		fatalUsage("challenge id is required", "usage: chedit show <id> [--json]")
	}

	ws := openWorkspace()
	defer ws.close()

	saved, err := ws.store.Get(context.Background(), id)
	if err != nil {
		fatal("show", err)
	}
	if jsonOutput {
		if err := writeJSON(os.Stdout, store.ToPayload(saved.Draft)); err != nil {
			fatal("show", err)
		}
		return
	}
	fmt.Printf("revision %s saved %s\n", shortRevision(saved.Revision), saved.SavedAt.Format(time.RFC3339))
	r, err := schedule.NewResolverFromConfig(ws.cfg.Schedule)
	if err != nil {
		fatal("show", err)
	}
	renderResolve(os.Stdout, newResolveOutput(saved.Draft, r.Resolve(saved.Draft.Phases, saved.Draft.StartDate)))
}

func runList(_ []string) {
	ws := openWorkspace()
	defer ws.close()

	items, err := ws.store.List(context.Background())
	if err != nil {
		fatal("list", err)
	}
	if len(items) == 0 {
		fmt.Println("no saved challenges")
		return
	}
	renderList(os.Stdout, items)
}

func runTemplates(_ []string) {
	ws := openWorkspace()
	defer ws.close()

	cat, err := ws.catalog.Load(context.Background())
	if err != nil {
		fatal("templates", err)
	}
	renderCatalog(os.Stdout, cat)
}

// workspace holds the collaborators every store-backed command needs.
type workspace struct {
	baseDir   string
	cfg       model.Config
	log       *logging.Logger
	logCloser io.Closer
	store     store.Store
	catalog   *catalog.Client
}

func openWorkspace() *workspace {
	baseDir := findBaseDir()
	if baseDir == "" {
		fmt.Fprintln(os.Stderr, "error: .chedit/ directory not found. Run 'chedit init' first.")
		os.Exit(1)
	}
	cfg, err := setup.LoadConfig(baseDir)
	if err != nil {
		fatal("load config", err)
	}

	log, closer, err := logging.FromConfig(baseDir, cfg.Logging)
	if err != nil {
		fatal("open log", err)
	}
	st, err := store.New(cfg.Store, baseDir, log)
	if err != nil {
		closer.Close()
		fatal("open store", err)
	}

	catalogPath := cfg.Catalog.Path
	if !filepath.IsAbs(catalogPath) {
		catalogPath = filepath.Join(baseDir, catalogPath)
	}
	client := catalog.NewClient(catalog.NewFileSource(catalogPath), catalog.WithLogger(log))

	return &workspace{
		baseDir:   baseDir,
		cfg:       cfg,
		log:       log,
		logCloser: closer,
		store:     st,
		catalog:   client,
	}
}

func (ws *workspace) openSession(ctx context.Context, d model.ChallengeDraft) (*session.Session, error) {
	return session.Open(ctx, d, session.Options{
		Config:  ws.cfg,
		Store:   ws.store,
		Catalog: ws.catalog,
		Logger:  ws.log,
	})
}

func (ws *workspace) close() {
	if err := ws.store.Close(); err != nil {
		ws.log.Warnf("store_close_failed error=%v", err)
	}
	ws.logCloser.Close()
}

// findBaseDir searches for .chedit/ in the current directory and ancestors.
func findBaseDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	base, err := setup.FindBaseDir(dir)
	if err != nil {
		return ""
	}
	return base
}

// optionalConfig returns the workspace config when there is one and the
// defaults otherwise; resolve and validate work on loose files too.
func optionalConfig() model.Config {
	baseDir := findBaseDir()
	if baseDir == "" {
		return model.DefaultConfig()
	}
	cfg, err := setup.LoadConfig(baseDir)
	if err != nil {
		fatal("load config", err)
	}
	return cfg
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortRevision(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

func fatal(cmd string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
	os.Exit(1)
}

func fatalUsage(msg, usage string) {
	fmt.Fprintf(os.Stderr, "%s\n%s\n", msg, usage)
	os.Exit(1)
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `chedit %s - challenge schedule editor

Usage: chedit <command> [options]

Workspace:
  init [dir] [--name N]          Initialize .chedit/ with config, catalog and a starter draft
  templates                      List catalog phases and timeline templates

Schedule:
  resolve <draft> [flags]        Resolve and print a draft's timeline
      --start RFC3339            Override the base start date
      --fallback POLICY          sequential or base_start
      --json                     Print JSON
  validate <draft>               Report every problem with a draft
  edit <draft> <op> [args]       Apply one editing operation (see 'chedit edit')

Persistence:
  save <draft>                   Save a draft to the store now
  watch <draft> [--notify]       Autosave a draft file while it is edited
                                 (--notify raises a desktop alert when a save fails)
  show <id> [--json]             Show a saved challenge
  list                           List saved challenges

Other:
  version                        Show version
  help                           Show this help

`, version)
}
