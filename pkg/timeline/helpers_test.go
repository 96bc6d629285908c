package timeline

import "github.com/class1/graduate/pkg/shootingtime"

func mkEvent(description string, dates ...string) *Event {
	var xs []*Experience
	for i, d := range dates {
		xs = append(xs, NewExperience(
			"/image/"+description+"/"+string(rune('a'+i))+".jpg",
			shootingtime.MustParse(d),
			[]int{1},
		))
	}
	return NewEvent(description, xs)
}

func keys(t *Timeline) []string {
	var out []string
	for _, e := range t.Events() {
		out = append(out, e.Key().String())
	}
	return out
}
