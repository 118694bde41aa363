// Package formatter renders journeys, orders and delivery results for the terminal, and exports
// journey progress to files (CSV, Markdown, plain text, JSON).
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/desertthunder/journeyx/internal/models"
	"github.com/desertthunder/journeyx/internal/shared"
)

// Format is an export file format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// ParseFormat accepts the common spellings of each format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// StatusIcon is the glyph shown next to a mission. Locked wins over status.
func StatusIcon(status models.MissionStatus, locked bool) string {
	if locked {
		return "🔒"
	}
	switch status {
	case models.StatusDelivered:
		return "●"
	case models.StatusCompleted:
		return "◐"
	default:
		return "○"
	}
}

// MissionLine is one mission as shown in trees and lists.
func MissionLine(m *models.MissionSummary) string {
	line := fmt.Sprintf("%s %s", StatusIcon(m.Status, m.Locked), m.Title)
	meta := fmt.Sprintf("#%d %s", m.ID, strings.ToLower(string(m.Type)))
	if m.AccessLevel != models.AccessPublic && m.AccessLevel != "" {
		meta += " " + strings.ToLower(string(m.AccessLevel))
	}
	return fmt.Sprintf("%s %s", Styles.MissionStyle(m).Render(line), Styles.Help.Render(meta))
}

// RenderJourney draws the chapter tree of a journey with a status icon per mission.
func RenderJourney(j *models.JourneyDetail) string {
	if j == nil {
		return ""
	}
	root := tree.Root(Styles.Title.Render(j.Title)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(Styles.Help)

	for _, c := range j.Chapters {
		chapter := tree.Root(Styles.Heading.Render(c.Title)).
			Enumerator(tree.RoundedEnumerator).
			EnumeratorStyle(Styles.Help)
		for _, m := range c.Missions {
			chapter.Child(MissionLine(m))
		}
		root.Child(chapter)
	}

	var b strings.Builder
	b.WriteString(root.String())
	b.WriteString("\n")
	b.WriteString(Summary(j))
	if us := j.UserStatus; us != nil {
		switch {
		case us.HasPurchased:
			b.WriteString("\n" + Styles.OK.Render("Purchased"))
		case us.HasUnpaidOrder:
			b.WriteString("\n" + Styles.Warn.Render("Unpaid order pending"))
		}
	}
	return b.String()
}

// Counts tallies missions of a journey.
type Counts struct {
	Total, Completed, Delivered, Locked int
}

// Count tallies a journey's missions by status. Delivered missions are also counted as completed.
func Count(j *models.JourneyDetail) Counts {
	var c Counts
	if j == nil {
		return c
	}
	for _, ch := range j.Chapters {
		for _, m := range ch.Missions {
			c.Total++
			if m.Status.Done() {
				c.Completed++
			}
			if m.Status == models.StatusDelivered {
				c.Delivered++
			}
			if m.Locked {
				c.Locked++
			}
		}
	}
	return c
}

// Summary is the one-line progress footer of a journey.
func Summary(j *models.JourneyDetail) string {
	c := Count(j)
	return Styles.Help.Render(fmt.Sprintf("%d/%d completed, %d delivered, %d locked", c.Completed, c.Total, c.Delivered, c.Locked))
}

// RenderJourneys lists the catalogue.
func RenderJourneys(items []models.JourneyListItem) string {
	rows := make([][]string, 0, len(items))
	for _, j := range items {
		rows = append(rows, []string{strconv.FormatInt(j.ID, 10), j.Slug, j.Title, j.TeacherName})
	}
	return newTable("ID", "Slug", "Title", "Teacher").Rows(rows...).String()
}

// RenderOrders lists orders.
func RenderOrders(orders []models.Order) string {
	rows := make([][]string, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, []string{o.OrderNumber, string(o.Status), journeysOf(o), strconv.Itoa(o.Price), formatMillis(o.CreatedAt)})
	}
	return newTable("Order", "Status", "Journeys", "Price", "Created").Rows(rows...).String()
}

// RenderOrder describes one order.
func RenderOrder(o *models.Order) string {
	if o == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(Styles.Title.Render("Order "+o.OrderNumber) + "\n")
	fmt.Fprintf(&b, "Status:   %s\n", orderStatus(o.Status))
	fmt.Fprintf(&b, "Journeys: %s\n", journeysOf(*o))
	fmt.Fprintf(&b, "Price:    %d", o.Price)
	if o.Discount > 0 {
		fmt.Fprintf(&b, " (was %d)", o.OriginalPrice)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Created:  %s\n", formatMillis(o.CreatedAt))
	if o.PaidAt != nil {
		fmt.Fprintf(&b, "Paid:     %s\n", formatMillis(*o.PaidAt))
	}
	return b.String()
}

// RenderPurchases lists bought journeys.
func RenderPurchases(items []models.PurchasedJourney) string {
	rows := make([][]string, 0, len(items))
	for _, p := range items {
		rows = append(rows, []string{strconv.FormatInt(p.JourneyID, 10), p.JourneyTitle, p.OrderNumber, formatMillis(p.PurchasedAt)})
	}
	return newTable("Journey", "Title", "Order", "Purchased").Rows(rows...).String()
}

// RenderDeliverResult describes a delivery.
func RenderDeliverResult(missionID int64, res *models.DeliverResult) string {
	if res == nil {
		return ""
	}
	if res.AlreadyDelivered {
		return Styles.Warn.Render(fmt.Sprintf("Mission %d was already delivered", missionID))
	}
	return Styles.OK.Render(fmt.Sprintf("✓ Mission %d delivered: +%d exp (total %d, level %d)",
		missionID, res.ExperienceGained, res.TotalExperience, res.CurrentLevel))
}

// ExportToCSV writes one row per mission: ID, Chapter, Title, Type, Access, Status, Locked.
func ExportToCSV(j *models.JourneyDetail) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Chapter", "Title", "Type", "Access", "Status", "Locked"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, c := range j.Chapters {
		for _, m := range c.Missions {
			record := []string{
				strconv.FormatInt(m.ID, 10),
				c.Title,
				m.Title,
				string(m.Type),
				string(m.AccessLevel),
				m.Status.String(),
				strconv.FormatBool(m.Locked),
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown writes the journey as a checklist, one section per chapter.
func ExportToMarkdown(j *models.JourneyDetail) ([]byte, error) {
	var buf bytes.Buffer
	c := Count(j)

	fmt.Fprintf(&buf, "# %s\n\n", j.Title)
	if j.Description != "" {
		fmt.Fprintf(&buf, "%s\n\n", j.Description)
	}
	if j.TeacherName != "" {
		fmt.Fprintf(&buf, "**Teacher**: %s\n", j.TeacherName)
	}
	fmt.Fprintf(&buf, "**Progress**: %d/%d completed, %d delivered\n\n", c.Completed, c.Total, c.Delivered)

	for _, ch := range j.Chapters {
		fmt.Fprintf(&buf, "## %s\n\n", ch.Title)
		for _, m := range ch.Missions {
			box := " "
			if m.Status.Done() {
				box = "x"
			}
			suffix := ""
			switch {
			case m.Locked:
				suffix = " (locked)"
			case m.Status == models.StatusDelivered:
				suffix = " (delivered)"
			}
			fmt.Fprintf(&buf, "- [%s] %s%s\n", box, m.Title, suffix)
		}
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// ExportToText writes one line per mission.
func ExportToText(j *models.JourneyDetail) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Journey: %s\n", j.Title)
	fmt.Fprintf(&buf, "Missions: %d\n\n", Count(j).Total)

	i := 0
	for _, c := range j.Chapters {
		for _, m := range c.Missions {
			i++
			fmt.Fprintf(&buf, "%d. [%s] %s - %s\n", i, m.Status, c.Title, m.Title)
		}
	}
	return buf.Bytes(), nil
}

// Export renders a journey in the given format.
func Export(j *models.JourneyDetail, f Format) ([]byte, error) {
	if j == nil {
		return nil, fmt.Errorf("%w: no journey", shared.ErrInvalidInput)
	}
	switch f {
	case FormatCSV:
		return ExportToCSV(j)
	case FormatMarkdown:
		return ExportToMarkdown(j)
	case FormatText:
		return ExportToText(j)
	case FormatJSON:
		return shared.MarshalJSON(j, true)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
	}
}

// WriteExport exports a journey to a file. The path defaults to {slug}.{format}.
func WriteExport(j *models.JourneyDetail, f Format, path string) (string, error) {
	data, err := Export(j, f)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = fmt.Sprintf("%s.%s", exportBase(j), f)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

func exportBase(j *models.JourneyDetail) string {
	if j.Slug != "" {
		return j.Slug
	}
	return "journey_" + strconv.FormatInt(j.ID, 10)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Help).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return Styles.Heading.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func journeysOf(o models.Order) string {
	titles := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		titles = append(titles, item.JourneyTitle)
	}
	return strings.Join(titles, ", ")
}

func orderStatus(s models.OrderStatus) string {
	switch s {
	case models.OrderPaid:
		return Styles.OK.Render(string(s))
	case models.OrderExpired:
		return Styles.Err.Render(string(s))
	default:
		return Styles.Warn.Render(string(s))
	}
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
