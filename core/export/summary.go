package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/kasolo/mafunzo/core/course"
	"github.com/kasolo/mafunzo/core/person"
)

type (
	// NightCount breaks one hotel night down by role.
	NightCount struct {
		Label        string `json:"label"`
		Participants int    `json:"participants"`
		Faculty      int    `json:"faculty"`
		Total        int    `json:"total"`
	}

	// StayPattern counts how many people requested one exact combination
	// of nights, e.g. "Night 1 + Night 2".
	StayPattern struct {
		Label string `json:"label"`
		Count int    `json:"count"`
	}

	// HotelSummary aggregates a course's hotel demand for the hotel booker.
	HotelSummary struct {
		NeedHotel  int           `json:"need_hotel"`
		NoHotel    int           `json:"no_hotel"`
		Unanswered int           `json:"unanswered"`
		Finalized  int           `json:"finalized"`
		Nights     []NightCount  `json:"nights"`
		Patterns   []StayPattern `json:"patterns"`
	}
)

// BuildHotelSummary folds persons and their hotel requests into per-night
// and per-pattern counts. Only attending persons count towards demand.
func BuildHotelSummary(crs course.Course, persons []person.Person, hotels []person.HotelRequest) HotelSummary {
	byPerson := make(map[int]person.HotelRequest, len(hotels))
	for _, hr := range hotels {
		byPerson[hr.PersonID] = hr
	}

	nightLabels := make([]string, 0, 3)
	for i, night := range []*time.Time{crs.HotelNight1, crs.HotelNight2, crs.HotelNight3} {
		label := fmt.Sprintf("Night %d", i+1)
		if night != nil {
			label += " (" + person.FormatEmailDate(*night) + ")"
		}
		nightLabels = append(nightLabels, label)
	}

	var sum HotelSummary
	sum.Nights = make([]NightCount, len(nightLabels))
	for i, label := range nightLabels {
		sum.Nights[i].Label = label
	}
	patterns := make(map[string]int)

	for _, p := range persons {
		if p.Status != person.StatusAttending {
			continue
		}
		hr, ok := byPerson[p.ID]
		if !ok || hr.Unanswered() {
			sum.Unanswered++
			continue
		}
		if hr.Finalized {
			sum.Finalized++
		}
		if !*hr.NeedHotel {
			sum.NoHotel++
			continue
		}
		sum.NeedHotel++

		var wanted []string
		for i, yes := range []bool{hr.Night1, hr.Night2, hr.Night3} {
			if !yes {
				continue
			}
			sum.Nights[i].Total++
			if p.IsFaculty() {
				sum.Nights[i].Faculty++
			} else {
				sum.Nights[i].Participants++
			}
			wanted = append(wanted, fmt.Sprintf("Night %d", i+1))
		}
		if len(wanted) > 0 {
			patterns[strings.Join(wanted, " + ")]++
		}
	}

	for _, label := range []string{
		"Night 1", "Night 2", "Night 3",
		"Night 1 + Night 2", "Night 2 + Night 3", "Night 1 + Night 3",
		"Night 1 + Night 2 + Night 3",
	} {
		if n, ok := patterns[label]; ok {
			sum.Patterns = append(sum.Patterns, StayPattern{Label: label, Count: n})
		}
	}
	return sum
}
