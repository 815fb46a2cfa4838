package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/msageha/challenge_editor/internal/events"
	"github.com/msageha/challenge_editor/internal/lock"
	"github.com/msageha/challenge_editor/internal/logging"
	"github.com/msageha/challenge_editor/internal/model"
	"github.com/msageha/challenge_editor/internal/notify"
	"github.com/msageha/challenge_editor/internal/session"
)

// flushTimeout bounds the final save made on shutdown.
const flushTimeout = 30 * time.Second

// runWatch opens a session on a draft file, applies every change made to
// the file on disk and autosaves it until SIGINT or SIGTERM.
func runWatch(args []string) {
	const usage = "usage: chedit watch <draft.yaml> [--notify]"
	path := ""
	desktop := false
	for _, a := range args {
		switch {
		case a == "--notify":
			desktop = true
		case !strings.HasPrefix(a, "--") && path == "":
			path = a
		default:
			fatalUsage("unexpected argument: "+a, usage)
		}
	}
	if path == "" {
		fatalUsage("draft file is required", usage)
	}

	ws := openWorkspace()
	defer ws.close()

	d, err := session.ReadDraftFile(path)
	if err != nil {
		fatal("watch", err)
	}

	bus := events.NewBus(0)
	defer bus.Close()
	var notifier *notify.Notifier
	if desktop {
		notifier = notify.New()
	}
	unsubscribe := bus.Subscribe(events.EventSaveStatusChanged, func(e events.Event) {
		st := saveStateFromEvent(e)
		renderSaveState(os.Stdout, st)
		if notifier != nil && st.Status == model.SaveStatusError {
			if err := notifier.Send("chedit: "+d.Name, "Autosave failed: "+st.LastError); err != nil {
				ws.log.Warnf("notify_failed error=%v", err)
			}
		}
	})
	defer unsubscribe()

	auditCfg := ws.cfg.Logging
	auditCfg.File = auditCfg.AuditFile
	auditOut, err := logging.NewFileWriter(ws.baseDir, auditCfg)
	if err != nil {
		fatal("watch", err)
	}
	defer auditOut.Close()
	audit := events.NewAuditLogger(auditOut, d.ID)
	audit.OnError(func(err error) { ws.log.Warnf("audit_write_failed error=%v", err) })
	audit.Attach(bus)
	defer audit.Detach()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := session.Open(ctx, d, session.Options{
		Config:  ws.cfg,
		Store:   ws.store,
		Catalog: ws.catalog,
		Bus:     bus,
		Logger:  ws.log,
	})
	if err != nil {
		fatal("watch", err)
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	w := session.NewWatcher(path, sess, session.WatchOptions{
		LockPath: filepath.Join(ws.baseDir, "locks", d.ID+".lock"),
		Logger:   ws.log,
		OnReload: func(r session.ReloadResult) {
			if r.Err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", yellow("reload:"), r.Err)
				return
			}
			fmt.Printf("reloaded %d phases, ends %s\n", len(r.Schedule.Phases), formatTime(r.Schedule.EndDate()))
			if r.Schedule.Error != "" {
				fmt.Fprintf(os.Stderr, "%s %s\n", yellow("schedule:"), r.Schedule.Error)
			}
		},
	})
	if err := w.Start(); err != nil {
		sess.Close()
		if errors.Is(err, lock.ErrLocked) {
			fmt.Fprintf(os.Stderr, "watch: %s is already being watched\n", path)
			os.Exit(1)
		}
		fatal("watch", err)
	}

	if !ws.cfg.Autosave.Enabled {
		fmt.Println(yellow("autosave is disabled in config.yaml; changes are saved on exit"))
	}
	fmt.Printf("watching %s (%s), Ctrl-C to stop\n", path, d.ID)

	waitSignals(ws)

	w.Stop()
	flush(sess, ws)
	sess.Close()
	sess.Wait()
}

// waitSignals blocks until a shutdown signal is received. A second signal
// exits immediately.
func waitSignals(ws *workspace) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	ws.log.Infof("received signal=%s, shutting down", sig)

	go func() {
		<-sigCh
		ws.log.Warnf("received second signal, forcing exit")
		os.Exit(1)
	}()
}

// flush saves edits the debounce has not persisted yet.
func flush(sess *session.Session, ws *workspace) {
	if !sess.Dirty() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if _, err := sess.Save(ctx); err != nil {
		ws.log.Errorf("final_save_failed error=%v", err)
		fmt.Fprintf(os.Stderr, "final save: %v\n", err)
	}
}

func saveStateFromEvent(e events.Event) model.AutosaveState {
	st := model.AutosaveState{}
	if s, ok := e.Data["status"].(string); ok {
		st.Status = model.SaveStatus(s)
	}
	if msg, ok := e.Data["error"].(string); ok {
		st.LastError = msg
	}
	if t, ok := e.Data["saved_at"].(time.Time); ok {
		st.LastSavedAt = &t
	}
	return st
}
