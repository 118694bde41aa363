package models

import (
	"net/url"
	"strings"
)

// MissionType is the kind of learning unit.
type MissionType string

const (
	MissionVideo         MissionType = "VIDEO"
	MissionArticle       MissionType = "ARTICLE"
	MissionQuestionnaire MissionType = "QUESTIONNAIRE"
)

// AccessLevel governs whether a session or a purchase is needed to view a mission.
type AccessLevel string

const (
	AccessPublic        AccessLevel = "PUBLIC"
	AccessAuthenticated AccessLevel = "AUTHENTICATED"
	AccessPurchased     AccessLevel = "PURCHASED"
)

// MissionReward is the experience granted on delivery.
type MissionReward struct {
	Exp int `json:"exp"`
}

// MissionResource is one piece of mission content.
type MissionResource struct {
	ID              int64  `json:"id"`
	Type            string `json:"type"` // video, article, form
	ResourceURL     string `json:"resourceUrl,omitempty"`
	ResourceContent string `json:"resourceContent,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// MissionDetail is the full content of a mission, fetched only after the purchase gate allows it.
type MissionDetail struct {
	ID            int64             `json:"id"`
	ChapterID     int64             `json:"chapterId"`
	JourneyID     int64             `json:"journeyId"`
	Type          MissionType       `json:"type"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	IsFreePreview bool              `json:"isFreePreview"`
	CreatedAt     int64             `json:"createdAt"`
	VideoLength   string            `json:"videoLength,omitempty"`
	Reward        MissionReward     `json:"reward"`
	Resources     []MissionResource `json:"resource"`
}

// Video returns the first video resource, if any.
func (m *MissionDetail) Video() (MissionResource, bool) {
	for _, r := range m.Resources {
		if r.Type == "video" {
			return r, true
		}
	}
	return MissionResource{}, false
}

// DurationSeconds is the video length, or 0 when the mission has no video resource.
func (m *MissionDetail) DurationSeconds() int {
	v, ok := m.Video()
	if !ok || v.DurationSeconds < 0 {
		return 0
	}
	return v.DurationSeconds
}

// VideoID extracts a YouTube video id from the video resource URL.
//
// Accepts watch?v=, youtu.be/ and /embed/ forms. Anything else is returned as is.
func (m *MissionDetail) VideoID() string {
	v, ok := m.Video()
	if !ok {
		return ""
	}
	return ExtractVideoID(v.ResourceURL)
}

// ExtractVideoID extracts a YouTube video id from a URL or returns the input when it already is one.
func ExtractVideoID(raw string) string {
	if !strings.Contains(raw, "/") && !strings.Contains(raw, "http") {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch {
	case host == "youtu.be":
		return firstSegment(u.Path)
	case strings.HasSuffix(host, "youtube.com") && u.Path == "/watch":
		if id := u.Query().Get("v"); id != "" {
			return id
		}
	case strings.HasSuffix(host, "youtube.com") && strings.HasPrefix(u.Path, "/embed/"):
		return firstSegment(strings.TrimPrefix(u.Path, "/embed"))
	}
	return raw
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

// MissionSummary is a mission as listed inside a journey's chapter.
//
// Locked is derived client-side from the purchase gate and never sent by the backend.
type MissionSummary struct {
	ID          int64         `json:"id"`
	Type        MissionType   `json:"type"`
	Title       string        `json:"title"`
	AccessLevel AccessLevel   `json:"accessLevel"`
	OrderIndex  int           `json:"orderIndex"`
	Status      MissionStatus `json:"status"`
	Locked      bool          `json:"-"`
}

// Chapter is an ordered group of missions.
type Chapter struct {
	ID         int64             `json:"id"`
	Title      string            `json:"title"`
	OrderIndex int               `json:"orderIndex"`
	Missions   []*MissionSummary `json:"missions"`
}

// UserStatus is the purchase-derived part of a journey, present only for authenticated reads.
type UserStatus struct {
	HasPurchased   bool   `json:"hasPurchased"`
	HasUnpaidOrder bool   `json:"hasUnpaidOrder"`
	UnpaidOrderID  *int64 `json:"unpaidOrderId"`
}

// JourneyDetail is a purchasable course with its chapter tree.
type JourneyDetail struct {
	ID            int64       `json:"id"`
	Slug          string      `json:"slug"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	CoverImageURL string      `json:"coverImageUrl"`
	TeacherName   string      `json:"teacherName"`
	Chapters      []*Chapter  `json:"chapters"`
	UserStatus    *UserStatus `json:"userStatus,omitempty"`
}

// MissionIDs lists every mission id in chapter order.
func (j *JourneyDetail) MissionIDs() []int64 {
	var ids []int64
	for _, c := range j.Chapters {
		for _, m := range c.Missions {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Mission finds a mission summary by id.
func (j *JourneyDetail) Mission(id int64) (*MissionSummary, bool) {
	if j == nil {
		return nil, false
	}
	for _, c := range j.Chapters {
		for _, m := range c.Missions {
			if m.ID == id {
				return m, true
			}
		}
	}
	return nil, false
}

// JourneyListItem is a journey as returned by the catalogue listing.
type JourneyListItem struct {
	ID            int64  `json:"id"`
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	CoverImageURL string `json:"coverImageUrl"`
	TeacherName   string `json:"teacherName"`
}

// DeliverResult is the reward granted for delivering a mission.
//
// AlreadyDelivered is set when the backend answered 409 and the client resynchronised instead.
type DeliverResult struct {
	Message          string `json:"message"`
	ExperienceGained int    `json:"experienceGained"`
	TotalExperience  int    `json:"totalExperience"`
	CurrentLevel     int    `json:"currentLevel"`
	AlreadyDelivered bool   `json:"-"`
}

// UserInfo is the authenticated user as described by the auth endpoints.
type UserInfo struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Experience int    `json:"experience"`
}
