package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/journeyx/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const backendSecret = "backend-test-secret"

// Backend is an in-memory fake of the platform API for a single user.
//
// Handlers follow the real backend's status codes: 404 for unknown progress, 409 for repeated delivery,
// purchase or payment, 410 for expired orders.
type Backend struct {
	*httptest.Server

	UserID      int64
	Username    string
	TokenTTL    time.Duration
	RequireAuth bool

	mu        sync.Mutex
	journeys  map[int64]*models.JourneyDetail
	missions  map[int64]*models.MissionDetail
	progress  map[int64]models.MissionProgress
	purchased map[int64]bool
	orders    map[int64]*models.Order
	nextOrder int64
	failures  map[string]int
	calls     []string
	refreshes int
}

// NewBackend starts a fake backend. It is closed through t.Cleanup.
func NewBackend(t *testing.T) *Backend {
	b := &Backend{
		UserID:    1,
		Username:  "learner",
		TokenTTL:  time.Hour,
		journeys:  make(map[int64]*models.JourneyDetail),
		missions:  make(map[int64]*models.MissionDetail),
		progress:  make(map[int64]models.MissionProgress),
		purchased: make(map[int64]bool),
		orders:    make(map[int64]*models.Order),
		failures:  make(map[string]int),
		nextOrder: 100,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", b.health)
	mux.HandleFunc("POST /auth/login", b.login)
	mux.HandleFunc("POST /auth/refresh", b.refresh)
	mux.HandleFunc("POST /auth/logout", b.logout)
	mux.HandleFunc("GET /journeys", b.listJourneys)
	mux.HandleFunc("GET /journeys/{id}", b.getJourney)
	mux.HandleFunc("GET /journeys/{jid}/missions/{mid}", b.authed(b.getMission))
	mux.HandleFunc("GET /users/{uid}/missions/{mid}/progress", b.authed(b.getProgress))
	mux.HandleFunc("PUT /users/{uid}/missions/{mid}/progress", b.authed(b.putProgress))
	mux.HandleFunc("POST /users/{uid}/missions/{mid}/progress/deliver", b.authed(b.deliver))
	mux.HandleFunc("GET /users/{uid}/journeys", b.authed(b.listPurchased))
	mux.HandleFunc("GET /users/{uid}/orders", b.authed(b.listOrders))
	mux.HandleFunc("POST /orders", b.authed(b.createOrder))
	mux.HandleFunc("GET /orders/{id}", b.authed(b.getOrder))
	mux.HandleFunc("POST /orders/{id}/action/pay", b.authed(b.payOrder))

	b.Server = httptest.NewServer(b.record(mux))
	t.Cleanup(b.Close)
	return b
}

// AddJourney registers a journey. Missions without detail get a video detail of 60 seconds.
func (b *Backend) AddJourney(j *models.JourneyDetail) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.journeys[j.ID] = j
	for _, c := range j.Chapters {
		for _, m := range c.Missions {
			if _, ok := b.missions[m.ID]; ok {
				continue
			}
			b.missions[m.ID] = &models.MissionDetail{
				ID:        m.ID,
				ChapterID: c.ID,
				JourneyID: j.ID,
				Type:      m.Type,
				Title:     m.Title,
				Reward:    models.MissionReward{Exp: 100},
				Resources: []models.MissionResource{
					{ID: m.ID, Type: "video", ResourceURL: "https://youtu.be/vid" + strconv.FormatInt(m.ID, 10), DurationSeconds: 60},
				},
			}
		}
	}
}

// AddMission overrides a mission's detail.
func (b *Backend) AddMission(d *models.MissionDetail) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.missions[d.ID] = d
}

// SetProgress stores progress for a mission.
func (b *Backend) SetProgress(p models.MissionProgress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress[p.MissionID] = p
}

// Progress returns stored progress and whether any exists.
func (b *Backend) Progress(missionID int64) (models.MissionProgress, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.progress[missionID]
	return p, ok
}

// SetPurchased marks a journey as bought.
func (b *Backend) SetPurchased(journeyID int64, purchased bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.purchased[journeyID] = purchased
}

// AddOrder stores an order, assigning an id when missing.
func (b *Backend) AddOrder(o *models.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o.ID == 0 {
		b.nextOrder++
		o.ID = b.nextOrder
	}
	b.orders[o.ID] = o
}

// Fail makes every request matching "METHOD /path" answer status until cleared with status 0.
func (b *Backend) Fail(method, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := method + " " + path
	if status == 0 {
		delete(b.failures, key)
		return
	}
	b.failures[key] = status
}

// Calls returns every request seen as "METHOD /path".
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// CallCount counts requests whose "METHOD /path" starts with prefix.
func (b *Backend) CallCount(prefix string) int {
	n := 0
	for _, c := range b.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Refreshes counts successful token refreshes.
func (b *Backend) Refreshes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes
}

// Token issues an access token for the backend user.
func (b *Backend) Token(ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub":      strconv.FormatInt(b.UserID, 10),
		"username": b.Username,
		"exp":      time.Now().Add(ttl).Unix(),
	}
	raw, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(backendSecret))
	return raw
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.calls = append(b.calls, key)
		status, fail := b.failures[key]
		b.mu.Unlock()

		if fail {
			writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !b.RequireAuth {
			next(w, r)
			return
		}

		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}
		_, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return []byte(backendSecret), nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil
}

func (b *Backend) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP", "database": "UP"})
}

func (b *Backend) session(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "refresh-" + b.Username, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": b.Token(b.TokenTTL),
		"user":        models.UserInfo{ID: strconv.FormatInt(b.UserID, 10), Username: b.Username},
	})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username != b.Username || body.Password == "" {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	b.session(w)
}

func (b *Backend) refresh(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie("refresh_token"); err != nil {
		writeError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}
	b.mu.Lock()
	b.refreshes++
	b.mu.Unlock()
	b.session(w)
}

func (b *Backend) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (b *Backend) listJourneys(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := []models.JourneyListItem{}
	for _, j := range b.journeys {
		items = append(items, models.JourneyListItem{ID: j.ID, Slug: j.Slug, Title: j.Title, TeacherName: j.TeacherName})
	}
	writeJSON(w, http.StatusOK, map[string]any{"journeys": items})
}

func (b *Backend) getJourney(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "journey not found")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.journeys[id]
	if !ok {
		writeError(w, http.StatusNotFound, "journey not found")
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (b *Backend) getMission(w http.ResponseWriter, r *http.Request) {
	mid, ok := pathID(r, "mid")
	if !ok {
		writeError(w, http.StatusNotFound, "mission not found")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.missions[mid]
	if !ok {
		writeError(w, http.StatusNotFound, "mission not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (b *Backend) getProgress(w http.ResponseWriter, r *http.Request) {
	mid, _ := pathID(r, "mid")

	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.progress[mid]
	if !ok {
		writeError(w, http.StatusNotFound, "no progress")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// putProgress marks a mission COMPLETED once the position reaches the video duration.
func (b *Backend) putProgress(w http.ResponseWriter, r *http.Request) {
	mid, _ := pathID(r, "mid")
	var body struct {
		WatchPositionSeconds int `json:"watchPositionSeconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.WatchPositionSeconds < 0 {
		writeError(w, http.StatusBadRequest, "invalid position")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.progress[mid]
	if !ok {
		p = models.DefaultProgress(mid)
	}
	p.WatchPositionSeconds = body.WatchPositionSeconds
	if d, ok := b.missions[mid]; ok && p.Status == models.StatusUncompleted {
		if dur := d.DurationSeconds(); dur > 0 && body.WatchPositionSeconds >= dur {
			p.Status = models.StatusCompleted
		}
	}
	b.progress[mid] = p
	writeJSON(w, http.StatusOK, p)
}

func (b *Backend) deliver(w http.ResponseWriter, r *http.Request) {
	mid, _ := pathID(r, "mid")

	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.progress[mid]
	switch p.Status {
	case models.StatusDelivered:
		writeError(w, http.StatusConflict, "mission already delivered")
		return
	case models.StatusCompleted:
	default:
		writeError(w, http.StatusBadRequest, "mission not completed")
		return
	}

	p.Status = models.StatusDelivered
	b.progress[mid] = p
	exp := 100
	if d, ok := b.missions[mid]; ok {
		exp = d.Reward.Exp
	}
	writeJSON(w, http.StatusOK, models.DeliverResult{
		Message:          "delivered",
		ExperienceGained: exp,
		TotalExperience:  exp,
		CurrentLevel:     1,
	})
}

func (b *Backend) listPurchased(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []models.PurchasedJourney{}
	for id, ok := range b.purchased {
		if !ok {
			continue
		}
		pj := models.PurchasedJourney{JourneyID: id}
		if j, found := b.journeys[id]; found {
			pj.JourneyTitle, pj.JourneySlug = j.Title, j.Slug
		}
		out = append(out, pj)
	}
	writeJSON(w, http.StatusOK, map[string]any{"journeys": out})
}

func (b *Backend) listOrders(w http.ResponseWriter, r *http.Request) {
	status := models.OrderStatus(r.URL.Query().Get("status"))

	b.mu.Lock()
	defer b.mu.Unlock()
	out := []models.Order{}
	for _, o := range b.orders {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders":     out,
		"pagination": models.Pagination{Page: 1, Limit: len(out), Total: len(out)},
	})
}

func (b *Backend) createOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []struct {
			JourneyID int64 `json:"journeyId"`
			Quantity  int   `json:"quantity"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Items) == 0 {
		writeError(w, http.StatusBadRequest, "invalid order")
		return
	}
	jid := body.Items[0].JourneyID

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.purchased[jid] {
		writeError(w, http.StatusConflict, "journey already purchased")
		return
	}
	for _, o := range b.orders {
		if o.Status == models.OrderUnpaid && o.Covers(jid) {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}

	b.nextOrder++
	o := &models.Order{
		ID:          b.nextOrder,
		OrderNumber: fmt.Sprintf("ORD%06d", b.nextOrder),
		UserID:      b.UserID,
		Username:    b.Username,
		Status:      models.OrderUnpaid,
		Price:       1000,
		Items:       []models.OrderItem{{JourneyID: jid, Quantity: 1, Price: 1000}},
		CreatedAt:   time.Now().UnixMilli(),
	}
	b.orders[o.ID] = o
	writeJSON(w, http.StatusCreated, o)
}

func (b *Backend) lookupOrder(r *http.Request) (*models.Order, bool) {
	ref := r.PathValue("id")
	for _, o := range b.orders {
		if strconv.FormatInt(o.ID, 10) == ref || o.OrderNumber == ref {
			return o, true
		}
	}
	return nil, false
}

func (b *Backend) getOrder(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.lookupOrder(r)
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (b *Backend) payOrder(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.lookupOrder(r)
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	switch o.Status {
	case models.OrderPaid:
		writeError(w, http.StatusConflict, "order already paid")
		return
	case models.OrderExpired:
		writeError(w, http.StatusGone, "order expired")
		return
	}

	paidAt := time.Now().UnixMilli()
	o.Status = models.OrderPaid
	o.PaidAt = &paidAt
	for _, item := range o.Items {
		b.purchased[item.JourneyID] = true
	}
	writeJSON(w, http.StatusOK, o)
}
