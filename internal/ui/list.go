package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/journeyx/internal/formatter"
	"github.com/desertthunder/journeyx/internal/models"
)

var _ list.Item = missionItem{}

// missionItem wraps [models.MissionSummary] to implement [list.Item].
type missionItem struct {
	mission *models.MissionSummary
	chapter string
}

func (i missionItem) FilterValue() string { return i.mission.Title }
func (i missionItem) Title() string {
	return fmt.Sprintf("%s %s", formatter.StatusIcon(i.mission.Status, i.mission.Locked), i.mission.Title)
}
func (i missionItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.chapter, strings.ToLower(string(i.mission.Type)))
	if i.mission.Locked {
		desc += " • requires purchase"
	} else if i.mission.Status == models.StatusCompleted {
		desc += " • ready to deliver"
	}
	return desc
}

// deliverable reports whether the mission's reward can be claimed.
func (i missionItem) deliverable() bool {
	return !i.mission.Locked && i.mission.Status == models.StatusCompleted
}

// missionItems flattens the chapter tree in display order.
func missionItems(j *models.JourneyDetail) []list.Item {
	if j == nil {
		return nil
	}
	var items []list.Item
	for _, c := range j.Chapters {
		for _, m := range c.Missions {
			items = append(items, missionItem{mission: m, chapter: c.Title})
		}
	}
	return items
}
