// Package subscription stores push subscriptions keyed by device token.
package subscription

import (
	"encoding/json"
	"strings"
	"sync"

	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/state/logger"
	"slunch/pkg/store"
)

// Subscription is implemented by every subscription kind.
type Subscription interface {
	GetToken() string
	GetTime() string
}

// Collection holds one subscription kind. Writes are serialized so the
// create and update existence checks hold within this process.
type Collection[T Subscription] struct {
	mu       sync.Mutex
	coll     *store.Collection
	validate func(T) (T, error)
}

func newCollection[T Subscription](s *store.Store, name string, validate func(T) (T, error)) *Collection[T] {
	return &Collection[T]{coll: s.Collection(name), validate: validate}
}

func (c *Collection[T]) Name() string { return c.coll.Name() }

// Create stores sub. Conflict if the token is already subscribed.
func (c *Collection[T]) Create(sub T) (T, error) {
	sub, err := c.validate(sub)
	if err != nil {
		return sub, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, err := c.coll.Exists(sub.GetToken())
	if err != nil {
		return sub, err
	}
	if ok {
		return sub, apperr.Conflict(apperr.MsgTokenAlreadyExists)
	}
	return sub, c.coll.PutJSON(sub.GetToken(), sub)
}

func (c *Collection[T]) Get(token string) (T, error) {
	var sub T
	if strings.TrimSpace(token) == "" {
		return sub, apperr.Validation(apperr.MsgTokenRequired)
	}
	if err := c.coll.GetJSON(token, &sub); err != nil {
		if apperr.IsNotFound(err) {
			return sub, apperr.NotFound(apperr.MsgTokenNotFound)
		}
		return sub, err
	}
	return sub, nil
}

// Update replaces the stored subscription. NotFound if the token is unknown.
func (c *Collection[T]) Update(sub T) (T, error) {
	sub, err := c.validate(sub)
	if err != nil {
		return sub, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, err := c.coll.Exists(sub.GetToken())
	if err != nil {
		return sub, err
	}
	if !ok {
		return sub, apperr.NotFound(apperr.MsgTokenNotFound)
	}
	return sub, c.coll.PutJSON(sub.GetToken(), sub)
}

func (c *Collection[T]) Delete(token string) error {
	if strings.TrimSpace(token) == "" {
		return apperr.Validation(apperr.MsgTokenRequired)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, err := c.coll.Exists(token)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound(apperr.MsgTokenNotFound)
	}
	return c.coll.Remove(token)
}

// List returns every subscription in token order. Undecodable entries are
// skipped and logged.
func (c *Collection[T]) List() ([]T, error) {
	return c.filter(func(T) bool { return true })
}

// ListAt returns subscriptions whose delivery time equals hhmm.
func (c *Collection[T]) ListAt(hhmm string) ([]T, error) {
	return c.filter(func(s T) bool { return s.GetTime() == hhmm })
}

func (c *Collection[T]) Count() (int, error) {
	return c.coll.Count()
}

func (c *Collection[T]) filter(keep func(T) bool) ([]T, error) {
	var out []T
	err := c.coll.All(func(k string, v []byte) error {
		var sub T
		if err := json.Unmarshal(v, &sub); err != nil {
			logger.Warn("subscription_decode_failed", "collection", c.coll.Name(), "token", logger.MaskToken(k), "error", err)
			return nil
		}
		if keep(sub) {
			out = append(out, sub)
		}
		return nil
	})
	return out, err
}

// Store groups the three subscription kinds.
type Store struct {
	Meal      *Collection[models.MealSubscription]
	Timetable *Collection[models.TimetableSubscription]
	Keyword   *Collection[models.KeywordSubscription]
}

func New(s *store.Store) *Store {
	return &Store{
		Meal:      newCollection(s, store.CollFCMMeal, validateMeal),
		Timetable: newCollection(s, store.CollFCMTime, validateTimetable),
		Keyword:   newCollection(s, store.CollFCMKeyword, validateKeyword),
	}
}

// MealEntities lists the distinct schools referenced by meal subscriptions,
// in token order, capped at limit when limit > 0.
func (s *Store) MealEntities(limit int) ([]models.Entity, error) {
	subs, err := s.Meal.List()
	if err != nil {
		return nil, err
	}
	seen := map[models.Entity]bool{}
	var out []models.Entity
	for _, sub := range subs {
		e := models.Entity{SchoolCode: sub.SchoolCode, RegionCode: sub.RegionCode}
		if e.SchoolCode == "" || e.RegionCode == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
