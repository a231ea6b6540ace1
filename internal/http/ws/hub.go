// Package ws fans batch progress snapshots out to websocket clients.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"imagebatch/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Subscription receives the snapshots of one job. Only the most recent
// undelivered snapshot is kept, so a slow reader skips intermediate states
// but always sees the final one. The channel is closed after the final
// snapshot.
type Subscription struct {
	jobID string
	ch    chan domain.JobSnapshot
}

func (s *Subscription) C() <-chan domain.JobSnapshot { return s.ch }

// Hub tracks subscribers per job id.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
}

func (h *Hub) Subscribe(jobID string) *Subscription {
	sub := &Subscription{jobID: jobID, ch: make(chan domain.JobSnapshot, 1)}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[jobID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[jobID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe is safe to call after the hub already closed sub.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.jobID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(h.subs, sub.jobID)
	}
}

// Subscribers reports how many clients follow jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}

// Publish delivers snap to the job's subscribers without blocking. A
// finalized snapshot ends every subscription of the job.
func (h *Hub) Publish(snap domain.JobSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[snap.ID]
	for sub := range set {
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- snap
	}
	if snap.CompletedAt != nil {
		for sub := range set {
			close(sub.ch)
		}
		delete(h.subs, snap.ID)
	}
}

// Forward publishes every snapshot of stream until it is closed.
func (h *Hub) Forward(stream <-chan domain.JobSnapshot) {
	for snap := range stream {
		h.Publish(snap)
	}
}

// Serve streams job progress to conn as JSON snapshots, starting with the
// current state, and closes conn once the job is finalized or the client
// goes away.
func (h *Hub) Serve(conn *websocket.Conn, job *domain.BatchJob) {
	sub := h.Subscribe(job.ID)
	defer h.Unsubscribe(sub)
	defer conn.Close()

	log := h.logger.With().Str("job_id", job.ID).Logger()
	log.Debug().Int("subscribers", h.Subscribers(job.ID)).Msg("ws: client connected")

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snap := job.Snapshot()
	if err := writeSnapshot(conn, snap); err != nil {
		log.Debug().Err(err).Msg("ws: write failed")
		return
	}
	if snap.CompletedAt != nil {
		closeNormal(conn)
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case snap, ok := <-sub.C():
			if !ok {
				closeNormal(conn)
				return
			}
			if err := writeSnapshot(conn, snap); err != nil {
				log.Debug().Err(err).Msg("ws: write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			log.Debug().Msg("ws: client disconnected")
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap domain.JobSnapshot) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(snap)
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "batch finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
