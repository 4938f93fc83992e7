// Package notice stores the announcements shown in the app.
package notice

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/state/logger"
	"slunch/pkg/store"
)

type Board struct {
	mu   sync.Mutex
	coll *store.Collection
}

func New(s *store.Store) *Board {
	return &Board{coll: s.Collection(store.CollNotice)}
}

func validate(n models.Notice) (models.Notice, error) {
	n.Title = strings.TrimSpace(n.Title)
	n.Date = strings.TrimSpace(n.Date)
	switch {
	case n.Title == "":
		return n, apperr.Validation(apperr.MsgTitleRequired)
	case strings.TrimSpace(n.Content) == "":
		return n, apperr.Validation(apperr.MsgContentRequired)
	case n.Date == "":
		return n, apperr.Validation(apperr.MsgDateRequired)
	}
	return n, nil
}

// Create stores a new announcement under a time-ordered id.
func (b *Board) Create(n models.Notice) (models.Notice, error) {
	n, err := validate(n)
	if err != nil {
		return n, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return n, err
	}
	n.ID = id.String()
	if err := b.coll.PutJSON(n.ID, n); err != nil {
		return n, err
	}
	logger.AuditEvent("notice_created", "id", n.ID, "title", n.Title)
	return n, nil
}

// Update replaces an existing announcement.
func (b *Board) Update(id string, n models.Notice) (models.Notice, error) {
	if strings.TrimSpace(id) == "" {
		return n, apperr.Validation(apperr.MsgIDRequired)
	}
	n, err := validate(n)
	if err != nil {
		return n, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ok, err := b.coll.Exists(id)
	if err != nil {
		return n, err
	}
	if !ok {
		return n, apperr.NotFound(apperr.MsgNoticeNotFound)
	}
	n.ID = id
	if err := b.coll.PutJSON(id, n); err != nil {
		return n, err
	}
	logger.AuditEvent("notice_updated", "id", id)
	return n, nil
}

func (b *Board) Delete(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Validation(apperr.MsgIDRequired)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ok, err := b.coll.Exists(id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound(apperr.MsgNoticeNotFound)
	}
	if err := b.coll.Remove(id); err != nil {
		return err
	}
	logger.AuditEvent("notice_deleted", "id", id)
	return nil
}

func (b *Board) Clear() error {
	if err := b.coll.Clear(); err != nil {
		return err
	}
	logger.AuditEvent("notice_cleared")
	return nil
}

// List returns every announcement, newest date first. Dates that do not
// parse as RFC 3339 or YYYY-MM-DD sort after the ones that do.
func (b *Board) List() ([]models.Notice, error) {
	out := []models.Notice{}
	err := b.coll.All(func(k string, v []byte) error {
		var n models.Notice
		if err := json.Unmarshal(v, &n); err != nil {
			logger.Warn("notice_decode_failed", "id", k, "error", err)
			return nil
		}
		out = append(out, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, iok := parseDate(out[i].Date)
		tj, jok := parseDate(out[j].Date)
		if iok != jok {
			return iok
		}
		if !iok {
			return out[i].ID > out[j].ID
		}
		if ti.Equal(tj) {
			return out[i].ID > out[j].ID
		}
		return ti.After(tj)
	})
	return out, nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
