package records

import (
	"github.com/class1/graduate/pkg/timeline"
)

// Logger receives warnings about skipped records and images.
type Logger interface {
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{}) {}

// Build returns the events subject appears in, split into those coming from
// personal profiles and those from the shared events document. Events left
// without any photo of subject are dropped.
func Build(subject int, shared []Record, profiles []Profile, log Logger) (personal, together []*timeline.Event) {
	if log == nil {
		log = nopLogger{}
	}
	for _, p := range profiles {
		for _, r := range p.Records {
			if e := buildEvent(subject, r, p.Owner, true, log); e != nil {
				personal = append(personal, e)
			}
		}
	}
	for _, r := range shared {
		if e := buildEvent(subject, r, 0, false, log); e != nil {
			together = append(together, e)
		}
	}
	return personal, together
}

func buildEvent(subject int, r Record, owner int, personal bool, log Logger) *timeline.Event {
	if r.DateErr != nil {
		log.Warnf("Skipping %q from %s: %v", r.Description, r.Source, r.DateErr)
		return nil
	}

	var experiences []*timeline.Experience
	for _, img := range r.Images {
		if img.DateErr != nil {
			log.Warnf("Skipping %s in %q from %s: %v", img.Path, r.Description, r.Source, img.DateErr)
			continue
		}
		date := img.Date
		if date == nil {
			date = r.Date
		}
		if date == nil {
			log.Warnf("Skipping %s in %q from %s: no shooting time", img.Path, r.Description, r.Source)
			continue
		}

		with := r.With
		if img.HasWith {
			with = img.With
		}
		with = append([]int(nil), with...)
		if personal && !contains(with, owner) {
			with = append(with, owner)
		}
		if !contains(with, subject) {
			continue
		}
		experiences = append(experiences, timeline.NewExperience(img.Path, *date, with))
	}

	if len(experiences) == 0 {
		return nil
	}
	return timeline.NewEvent(r.Description, experiences)
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
