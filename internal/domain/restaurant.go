// Package domain contains the core entities of the restaurant directory and the
// pure helpers the pages and the sync layer share.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LatLng is a map coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Restaurant is a directory entry. Only IsFavorite is mutated locally.
type Restaurant struct {
	Syncable
	OperatingHours map[string]string `json:"operating_hours,omitempty"`
	Name           string            `json:"name"`
	Neighborhood   string            `json:"neighborhood"`
	Photograph     string            `json:"photograph,omitempty"`
	Address        string            `json:"address"`
	CuisineType    string            `json:"cuisine_type"`
	LatLng         LatLng            `json:"latlng"`
	ID             int               `json:"id"`
	IsFavorite     Flag              `json:"is_favorite"`
}

// Flag is a boolean that also decodes from the strings "true" and "false".
// Some backends echo query-string booleans back unconverted.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = false
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = false
			return nil
		}
		v, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("flag: %w", err)
		}
		*f = Flag(v)
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("flag: %w", err)
	}
	*f = Flag(v)
	return nil
}

// Bool returns the plain boolean value.
func (f Flag) Bool() bool {
	return bool(f)
}

// Key returns the primary key of the restaurant as a store key.
func (r *Restaurant) Key() string {
	return strconv.Itoa(r.ID)
}

// SetFavorite applies a favorite change locally.
// It returns false when the value is unchanged, in which case nothing is modified.
func (r *Restaurant) SetFavorite(value bool) bool {
	if r.IsFavorite.Bool() == value {
		return false
	}
	r.IsFavorite = Flag(value)
	r.MarkDirty()
	r.Touch()
	return true
}
