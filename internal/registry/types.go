package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
)

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Name     string       `json:"name"`
	Latest   string       `json:"latest"`
	Filename string       `json:"filename"`
	Version  string       `json:"version"`
	Homepage string       `json:"homepage"`
	License  licenseField `json:"license"`
}

// licenseField accepts the shapes catalogs use for licenses: a plain SPDX
// string, an object with a type/name, or a list of either.
type licenseField string

func (l *licenseField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = licenseField(s)
		return nil
	}

	var obj struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.Type != "" {
			*l = licenseField(obj.Type)
		} else {
			*l = licenseField(obj.Name)
		}
		return nil
	}

	var list []licenseField
	if err := json.Unmarshal(data, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if item != "" {
				parts = append(parts, string(item))
			}
		}
		*l = licenseField(strings.Join(parts, " OR "))
		return nil
	}

	// Unknown shapes are not worth failing the whole lookup for.
	*l = ""
	return nil
}

// MissError explains why a name produced no accepted catalog match.
type MissError struct {
	Name   string
	Reason string
	Err    error
}

func (e *MissError) Error() string {
	msg := fmt.Sprintf("catalog miss for %q: %s", e.Name, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MissError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperrors.ErrCatalogMiss}
	}
	return []error{apperrors.ErrCatalogMiss, e.Err}
}
