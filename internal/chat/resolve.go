package chat

import (
	"strings"

	"github.com/sahilm/fuzzy"

	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
)

// habitTitles adapts a habit list to fuzzy.Source.
type habitTitles []models.Habit

func (h habitTitles) String(i int) string { return h[i].Title }
func (h habitTitles) Len() int            { return len(h) }

// minPrefixLen is the shortest reference word that may match the start of a
// longer title word.
const minPrefixLen = 3

// resolveHabit turns an action's habit reference into an id. An id wins over a
// title; titles match exactly (ignoring case) before falling back to a
// word-prefix match. Ownership is checked later, when the habit is loaded.
func resolveHabit(known []models.Habit, id, title string) (string, error) {
	id = strings.TrimSpace(id)
	title = strings.TrimSpace(title)
	if id == "" && title == "" {
		return "", apperrors.Invalid("habitId", "the action does not name a habit")
	}

	if id != "" {
		for _, h := range known {
			if h.ID == id {
				return id, nil
			}
		}
		// Models sometimes put the title in the id field
		if title == "" {
			title = id
		}
	}

	for _, h := range known {
		if strings.EqualFold(h.Title, title) {
			return h.ID, nil
		}
	}

	if best, ok := fuzzyMatch(known, title); ok {
		return best.ID, nil
	}
	if id != "" {
		return id, nil
	}
	return "", apperrors.NotFound("habit")
}

// fuzzyMatch returns the single best fuzzy match whose title contains every
// word of the reference as a whole word or a word prefix. A bare subsequence
// is not enough: "run" must not match "Read journal". Ties are treated as no
// match since guessing between two habits would log the wrong one.
func fuzzyMatch(known []models.Habit, title string) (models.Habit, bool) {
	var matches fuzzy.Matches
	for _, m := range fuzzy.FindFrom(title, habitTitles(known)) {
		if wordsMatch(title, known[m.Index].Title) {
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 {
		return models.Habit{}, false
	}
	if len(matches) > 1 && matches[0].Score == matches[1].Score {
		return models.Habit{}, false
	}
	return known[matches[0].Index], true
}

func wordsMatch(ref, title string) bool {
	refWords := strings.Fields(strings.ToLower(ref))
	titleWords := strings.Fields(strings.ToLower(title))
	if len(refWords) == 0 {
		return false
	}
	for _, rw := range refWords {
		found := false
		for _, tw := range titleWords {
			if rw == tw || (len(rw) >= minPrefixLen && strings.HasPrefix(tw, rw)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
