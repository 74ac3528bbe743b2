package services

import (
	"slices"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
)

// uniqueAscending drops repeated ids, keeping the first occurrence, and sorts
// the rest by id.
func uniqueAscending(msgs []e.Message) []e.Message {
	seen := make(map[int]struct{}, len(msgs))
	result := make([]e.Message, 0, len(msgs))

	for _, msg := range msgs {
		if _, ok := seen[msg.ID]; ok {
			continue
		}
		seen[msg.ID] = struct{}{}
		result = append(result, msg)
	}

	slices.SortStableFunc(result, func(a, b e.Message) int {
		return a.ID - b.ID
	})

	return result
}

func oldestID(msgs []e.Message) int {
	oldest := 0
	for i, msg := range msgs {
		if i == 0 || msg.ID < oldest {
			oldest = msg.ID
		}
	}
	return oldest
}
