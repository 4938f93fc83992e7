package resolver

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/state/logger"
	"slunch/pkg/store"
	"slunch/pkg/upstream"
)

const elementarySchool = "초등학교"

// SearchSchools finds middle and high schools by name. Cached answers are
// sorted by name; fresh ones keep the provider's order. School details are
// cached per region and code, so same-name schools in different regions
// stay distinct.
func (r *Resolver) SearchSchools(ctx context.Context, name string) ([]models.School, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation(apperr.MsgSchoolNameRequired)
	}

	var keys []string
	if err := r.schools.GetJSON(name, &keys); err == nil && len(keys) > 0 {
		out := make([]models.School, 0, len(keys))
		for _, k := range keys {
			var s models.School
			if err := r.schoolInfo.GetJSON(k, &s); err != nil {
				continue
			}
			out = append(out, s)
		}
		if len(out) > 0 {
			r.metrics.Cache("school", "hit")
			sort.SliceStable(out, func(i, j int) bool {
				if out[i].SchoolName != out[j].SchoolName {
					return out[i].SchoolName < out[j].SchoolName
				}
				return out[i].RegionCode < out[j].RegionCode
			})
			return out, nil
		}
	} else if err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}
	r.metrics.Cache("school", "miss")

	var rows []upstream.SchoolRow
	_, err := r.query.Do(ctx, func(ctx context.Context) error {
		var err error
		rows, err = r.schoolSrc.Schools(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.School, 0, len(rows))
	keys = keys[:0]
	for _, row := range rows {
		if row.SchoolKind == elementarySchool {
			continue
		}
		s := models.School{
			SchoolName: row.SchoolName,
			SchoolCode: row.SchoolCode,
			Region:     row.RegionName,
			RegionCode: row.RegionCode,
		}
		out = append(out, s)
		key := store.EntityKey(s.RegionCode, s.SchoolCode)
		keys = append(keys, key)

		ok, err := r.schoolInfo.Exists(key)
		if err == nil && !ok {
			err = r.schoolInfo.PutJSON(key, s)
		}
		if err != nil {
			logger.Error("school_cache_write_failed", "school", key, "error", err)
		}
	}
	if len(keys) > 0 {
		raw, _ := json.Marshal(keys)
		if err := r.schools.Put(name, raw); err != nil {
			logger.Error("school_cache_write_failed", "query", name, "error", err)
		}
	}
	return out, nil
}

// ClearSchools drops the school search cache.
func (r *Resolver) ClearSchools() error {
	if err := r.schools.Clear(); err != nil {
		return err
	}
	return r.schoolInfo.Clear()
}
