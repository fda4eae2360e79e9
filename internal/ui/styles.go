package ui

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/me/oblig/pkg/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

// StateStyle colours a submission state by how far grading has come.
func StateStyle(s model.SubmissionState) lipgloss.Style {
	switch s {
	case model.StateUnsubmitted:
		return mutedStyle
	case model.StateSubmitted:
		return warnStyle
	case model.StateCheckedOut, model.StateTested, model.StateFeedbackGenerated, model.StateFeedbackPublished:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	case model.StatePassed, model.StatePassedImported:
		return successStyle
	case model.StateFailed, model.StateFailedImported:
		return errorStyle
	default:
		return lipgloss.NewStyle()
	}
}

// ResultStyle colours a reconciliation outcome.
func ResultStyle(r model.UpdateResult) lipgloss.Style {
	switch r {
	case model.UpdateNew:
		return successStyle
	case model.UpdateModified:
		return warnStyle
	case model.UpdateRejected, model.UpdateRemoved:
		return errorStyle
	default:
		return mutedStyle
	}
}

// ClassStyle colours a file classification.
func ClassStyle(c model.FileClassification) lipgloss.Style {
	switch c {
	case model.FileNew:
		return successStyle
	case model.FileChanged:
		return warnStyle
	case model.FileOld:
		return errorStyle
	default:
		return mutedStyle
	}
}

// FormatTime renders t in loc, or "-" when unset.
func FormatTime(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("2006-01-02 15:04")
}
