// Package records turns the events and profile documents into typed records
// and builds the timeline events a selected subject appears in.
package records

import (
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/class1/graduate/pkg/shootingtime"
)

// ErrSchema marks a document missing a required field or holding one of the
// wrong shape. It is fatal to session start.
var ErrSchema = errors.New("malformed configuration")

// Image is one entry of a record's image list.
type Image struct {
	Path    string
	Date    *shootingtime.ShootingTime
	With    []int
	HasWith bool

	// DateErr holds an unparseable per-image date; the image is skipped.
	DateErr error
}

// Record is one [[event]] or experience entry.
type Record struct {
	Source      string
	Description string
	Date        *shootingtime.ShootingTime
	With        []int
	HasWith     bool
	Images      []Image

	// DateErr holds an unparseable event-level date; the record is skipped.
	DateErr error
}

// Profile is one person's document. Owner is implicitly present in every
// photo of its records.
type Profile struct {
	Owner   int
	Records []Record
}

// DecodeEvents decodes the shared events document.
func DecodeEvents(data []byte) ([]Record, error) {
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: events document: %v", ErrSchema, err)
	}
	events, ok := doc["event"]
	if !ok {
		return nil, fmt.Errorf("%w: events document: missing `event` array", ErrSchema)
	}
	return decodeRecords(events, "events document")
}

// DecodeProfile decodes one person's document. A profile without an
// `experience` array has no records.
func DecodeProfile(owner int, data []byte) (Profile, error) {
	source := fmt.Sprintf("profile %d", owner)
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Profile{}, fmt.Errorf("%w: %s: %v", ErrSchema, source, err)
	}
	p := Profile{Owner: owner}
	experiences, ok := doc["experience"]
	if !ok {
		return p, nil
	}
	records, err := decodeRecords(experiences, source)
	if err != nil {
		return Profile{}, err
	}
	p.Records = records
	return p, nil
}

func decodeRecords(v interface{}, source string) ([]Record, error) {
	tables, ok := tableArray(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s: expected an array of tables, got %T", ErrSchema, source, v)
	}
	out := make([]Record, 0, len(tables))
	for i, t := range tables {
		r, err := decodeRecord(t, source)
		if err != nil {
			return nil, fmt.Errorf("%s record %d: %w", source, i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func decodeRecord(t map[string]interface{}, source string) (Record, error) {
	r := Record{Source: source}

	desc, ok := t["description"].(string)
	if !ok {
		return r, fmt.Errorf("%w: missing or non-string `description`", ErrSchema)
	}
	r.Description = desc

	if v, ok := t["date"]; ok {
		st, err := shootingtime.FromValue(v)
		if err != nil {
			r.DateErr = err
		} else {
			r.Date = &st
		}
	}

	for _, key := range []string{"with", "participant"} {
		v, ok := t[key]
		if !ok {
			continue
		}
		with, err := intList(v)
		if err != nil {
			return r, fmt.Errorf("%w: `%s`: %v", ErrSchema, key, err)
		}
		r.With = append(r.With, with...)
		r.HasWith = true
	}

	v, ok := t["image"]
	if !ok {
		return r, fmt.Errorf("%w: %q: missing `image`", ErrSchema, desc)
	}
	images, err := decodeImages(v)
	if err != nil {
		return r, fmt.Errorf("%w: %q: %v", ErrSchema, desc, err)
	}
	r.Images = images
	return r, nil
}

func decodeImages(v interface{}) ([]Image, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("`image` must be an array, got %T", v)
	}

	out := make([]Image, 0, len(items))
	for i, item := range items {
		switch x := item.(type) {
		case string:
			out = append(out, Image{Path: x})
		case map[string]interface{}:
			img, err := decodeImage(x)
			if err != nil {
				return nil, fmt.Errorf("image %d: %v", i, err)
			}
			out = append(out, img)
		default:
			return nil, fmt.Errorf("image %d: expected a path or a table, got %T", i, item)
		}
	}
	return out, nil
}

func decodeImage(t map[string]interface{}) (Image, error) {
	var img Image
	p, ok := t["path"].(string)
	if !ok || p == "" {
		return img, errors.New("missing or non-string `path`")
	}
	img.Path = p

	if v, ok := t["date"]; ok {
		st, err := shootingtime.FromValue(v)
		if err != nil {
			img.DateErr = err
		} else {
			img.Date = &st
		}
	}
	if v, ok := t["with"]; ok {
		with, err := intList(v)
		if err != nil {
			return img, fmt.Errorf("`with`: %v", err)
		}
		img.With = with
		img.HasWith = true
	}
	return img, nil
}

func tableArray(v interface{}) ([]map[string]interface{}, bool) {
	switch x := v.(type) {
	case []map[string]interface{}:
		return x, true
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(x))
		for _, item := range x {
			t, ok := item.(map[string]interface{})
			if !ok {
				return nil, false
			}
			out = append(out, t)
		}
		return out, true
	}
	return nil, false
}

func intList(v interface{}) ([]int, error) {
	switch x := v.(type) {
	case []interface{}:
		out := make([]int, 0, len(x))
		for _, item := range x {
			n, ok := item.(int64)
			if !ok {
				return nil, fmt.Errorf("expected integers, got %T", item)
			}
			out = append(out, int(n))
		}
		return out, nil
	case int64:
		return []int{int(x)}, nil
	}
	return nil, fmt.Errorf("expected an integer array, got %T", v)
}
