package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"imagebatch/internal/batch"
	"imagebatch/internal/domain"
	"imagebatch/internal/middleware"
)

const maxBodyBytes = 1 << 20

type createBatchRequest struct {
	UserID string            `json:"user_id"`
	Mode   string            `json:"mode"`
	Preset string            `json:"preset"`
	Prompt string            `json:"prompt"`
	Params map[string]string `json:"params,omitempty"`
}

type upscaleRequest struct {
	Resolution string `json:"resolution"`
}

// userID prefers the authenticated header over the body.
func userID(r *http.Request, fromBody string) string {
	if uid := strings.TrimSpace(r.Header.Get(middleware.UserIDHeader)); uid != "" {
		return uid
	}
	return strings.TrimSpace(fromBody)
}

func (a *App) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	uid := userID(r, req.UserID)
	if uid == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "user_id required")
		return
	}
	if strings.TrimSpace(req.Mode) == "" || strings.TrimSpace(req.Preset) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "mode and preset required")
		return
	}
	job, err := a.Batches.CreateJob(batch.CreateRequest{
		UserID:     uid,
		Mode:       req.Mode,
		PresetID:   req.Preset,
		BasePrompt: req.Prompt,
		Params:     req.Params,
	})
	if err != nil {
		a.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	a.json(w, http.StatusCreated, job.Snapshot())
}

func (a *App) loadJob(w http.ResponseWriter, r *http.Request) (*domain.BatchJob, bool) {
	job, err := a.Batches.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err, http.StatusInternalServerError)
		return nil, false
	}
	return job, true
}

func (a *App) GetBatch(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJob(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, job.Snapshot())
}

// RunBatch starts the job in the background and answers immediately.
// Progress is published to websocket subscribers of the job.
func (a *App) RunBatch(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJob(w, r)
	if !ok {
		return
	}
	stream, err := a.Batches.ExecuteStream(a.runCtx, job)
	if err != nil {
		a.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	a.runs.Add(1)
	go func() {
		defer a.runs.Done()
		a.Hub.Forward(stream)
	}()
	a.json(w, http.StatusAccepted, job.Snapshot())
}

// Events upgrades to a websocket carrying the job's progress snapshots.
func (a *App) Events(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJob(w, r)
	if !ok {
		return
	}
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("http: websocket upgrade failed")
		return
	}
	a.Hub.Serve(conn, job)
}

func (a *App) Gallery(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJob(w, r)
	if !ok {
		return
	}
	data, err := a.Batches.GalleryPreview(r.Context(), job)
	if err != nil {
		a.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	a.blob(w, "image/jpeg", data)
}

func itemIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid item index %q", raw)
	}
	return idx, nil
}

func (a *App) Item(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJob(w, r)
	if !ok {
		return
	}
	idx, err := itemIndex(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	item, ok := job.Item(idx)
	if !ok {
		a.fail(w, r, fmt.Errorf("%w: %d of %d", domain.ErrInvalidIndex, idx, job.Len()), http.StatusInternalServerError)
		return
	}
	if item.Result == nil {
		a.fail(w, r, fmt.Errorf("%w: item %d is %s", domain.ErrNoResults, idx, item.Status), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", batch.ItemFilename(item)))
	a.blob(w, http.DetectContentType(item.Result), item.Result)
}

// Upscale returns a higher-resolution rendering of one finished item. An
// empty body selects the default resolution.
func (a *App) Upscale(w http.ResponseWriter, r *http.Request) {
	idx, err := itemIndex(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	var req upscaleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	data, err := a.Batches.Upscale(r.Context(), chi.URLParam(r, "id"), idx, req.Resolution)
	if err != nil {
		a.fail(w, r, err, http.StatusBadGateway)
		return
	}
	a.blob(w, http.DetectContentType(data), data)
}

// Archive downloads every successful item as one zip.
func (a *App) Archive(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJob(w, r)
	if !ok {
		return
	}
	data, err := a.Batches.Archive(job)
	if err != nil {
		a.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.ID+".zip"))
	a.blob(w, "application/zip", data)
}

type historyEntry struct {
	JobID        string    `json:"job_id"`
	Mode         string    `json:"mode"`
	TotalCost    int       `json:"total_cost"`
	ResultsCount int       `json:"results_count"`
	DurationMS   *int64    `json:"duration_ms,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserBatches lists the user's in-memory jobs and, when persistence is
// configured, the recorded history.
func (a *App) UserBatches(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "userID")
	jobs := a.Batches.JobsByUser(uid)
	active := make([]domain.JobSnapshot, len(jobs))
	for i, j := range jobs {
		active[i] = j.Snapshot()
	}

	history := []historyEntry{}
	if a.History != nil {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		recs, err := a.History.ListByUser(r.Context(), uid, limit)
		if err != nil {
			a.fail(w, r, err, http.StatusInternalServerError)
			return
		}
		for _, rec := range recs {
			e := historyEntry{
				JobID:        rec.JobID,
				Mode:         rec.Mode,
				TotalCost:    rec.TotalCost,
				ResultsCount: rec.ResultsCount,
				CreatedAt:    rec.CreatedAt,
			}
			if rec.Duration != nil {
				ms := rec.Duration.Milliseconds()
				e.DurationMS = &ms
			}
			history = append(history, e)
		}
	}
	a.json(w, http.StatusOK, map[string]any{
		"user_id": uid,
		"active":  active,
		"history": history,
	})
}

// Cleanup evicts finalized jobs older than max_age_hours.
func (a *App) Cleanup(w http.ResponseWriter, r *http.Request) {
	maxAge := a.MaxAge
	if raw := r.URL.Query().Get("max_age_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "max_age_hours must be a non-negative integer")
			return
		}
		maxAge = time.Duration(hours) * time.Hour
	}
	n := a.Batches.Cleanup(maxAge)
	a.json(w, http.StatusOK, map[string]int{"evicted": n})
}
