package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/msageha/challenge_editor/internal/catalog"
	"github.com/msageha/challenge_editor/internal/model"
	"github.com/msageha/challenge_editor/internal/schedule"
	"github.com/msageha/challenge_editor/internal/store"
)

// resolveOutput is what resolve, edit and show print.
type resolveOutput struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Schedule   schedule.Schedule `json:"schedule"`
	EndDate    time.Time         `json:"endDate"`
	Milestones []time.Time       `json:"milestones,omitempty"`
}

func newResolveOutput(d model.ChallengeDraft, s schedule.Schedule) resolveOutput {
	out := resolveOutput{
		ID:       d.ID,
		Name:     d.Name,
		Schedule: s,
		EndDate:  s.EndDate(),
	}
	if d.SchedulingEnabled {
		out.Milestones = schedule.MilestoneDeadlines(s.BaseStartDate, d.Milestone)
	}
	return out
}

func renderResolve(w io.Writer, out resolveOutput) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "%s %s\n", cyan(out.ID), out.Name)
	fmt.Fprintf(w, "start %s  end %s\n\n", formatTime(out.Schedule.BaseStartDate), formatTime(out.EndDate))

	tw := newTabWriter(w)
	fmt.Fprintln(tw, "PHASE\tNAME\tDURATION\tSTART\tEND\tAFTER")
	for _, p := range out.Schedule.Phases {
		after := p.Predecessor
		if after == "" {
			after = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.PhaseID, p.Name, formatMinutes(p.Duration),
			formatTime(p.ScheduledStartDate), formatTime(p.ScheduledEndDate), after)
	}
	tw.Flush()

	for i, m := range out.Milestones {
		fmt.Fprintf(w, "%s milestone %d due %s\n", gray("·"), i+1, formatTime(m))
	}
	if out.Schedule.Notice != "" {
		fmt.Fprintf(w, "%s %s\n", yellow("notice:"), out.Schedule.Notice)
	}
	for _, issue := range out.Schedule.Issues {
		fmt.Fprintf(w, "%s %s\n", red("issue:"), issue.Message)
	}
}

func renderList(w io.Writer, items []store.Summary) {
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "ID\tNAME\tREVISION\tSAVED")
	for _, s := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Name, shortRevision(s.Revision), formatTime(s.SavedAt))
	}
	tw.Flush()
}

func renderCatalog(w io.Writer, cat catalog.Catalog) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintln(w, cyan("Phases"))
	for _, p := range cat.Phases {
		state := ""
		if !p.IsActive {
			state = gray(" (inactive)")
		}
		fmt.Fprintf(w, "  %s  %s%s\n", p.ID, p.Name, state)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, cyan("Templates"))
	for _, t := range cat.Templates {
		ids := make([]string, 0, len(t.Phases))
		for _, p := range t.Phases {
			if p.IsActive {
				ids = append(ids, p.PhaseID)
			}
		}
		fmt.Fprintf(w, "  %s  %s: %s\n", t.ID, t.Name, strings.Join(ids, " → "))
	}
}

// renderSaveState prints one autosave indicator transition.
func renderSaveState(w io.Writer, st model.AutosaveState) {
	var label string
	switch st.Status {
	case model.SaveStatusSaving:
		label = color.New(color.FgYellow).Sprint("saving…")
	case model.SaveStatusSaved:
		label = color.New(color.FgGreen).Sprint("saved")
		if st.LastSavedAt != nil {
			label += " " + st.LastSavedAt.Local().Format("15:04:05")
		}
	case model.SaveStatusError:
		label = color.New(color.FgRed, color.Bold).Sprint("save failed: ") + st.LastError
	default:
		label = string(st.Status)
	}
	fmt.Fprintf(w, "[autosave] %s\n", label)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// formatMinutes renders a phase duration as days, hours and minutes.
func formatMinutes(m int) string {
	if m <= 0 {
		return "0m"
	}
	d := m / schedule.DaysToMinutes(1)
	h := (m % schedule.DaysToMinutes(1)) / 60
	mins := m % 60
	var parts []string
	if d > 0 {
		parts = append(parts, fmt.Sprintf("%dd", d))
	}
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if mins > 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	return strings.Join(parts, "")
}
