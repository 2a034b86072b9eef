package domain

import "math/rand"

// SelectRounds draws an ordered round sequence from a question pool according
// to the filters. The pool is a flat list of rounds (already restricted to the
// requested categories); filtering by difficulty and ordering happen here.
//
// Difficulty modes:
//   - "easy"/"medium"/"hard": only that tier, shuffled.
//   - "progressive": roughly a third per tier, ordered easy -> medium -> hard.
//   - anything else ("mixed", empty): all tiers, shuffled.
func SelectRounds(pool []QuestionRound, filters RoundFilters, count int, rnd *rand.Rand) []QuestionRound {
	if count <= 0 || len(pool) == 0 {
		return nil
	}

	pool = filterByCategory(pool, filters.Categories)

	switch filters.Difficulty {
	case "easy", "medium", "hard":
		tier := filterByDifficulty(pool, filters.Difficulty)
		shuffle(tier, rnd)
		return clip(tier, count)
	case "progressive":
		return selectProgressive(pool, count, rnd)
	default:
		shuffled := append([]QuestionRound(nil), pool...)
		shuffle(shuffled, rnd)
		return clip(shuffled, count)
	}
}

func selectProgressive(pool []QuestionRound, count int, rnd *rand.Rand) []QuestionRound {
	easy := filterByDifficulty(pool, "easy")
	medium := filterByDifficulty(pool, "medium")
	hard := filterByDifficulty(pool, "hard")
	shuffle(easy, rnd)
	shuffle(medium, rnd)
	shuffle(hard, rnd)

	easyCount := count / 3
	mediumCount := count / 3
	hardCount := count - easyCount - mediumCount

	selEasy := clip(easy, easyCount)
	selMedium := clip(medium, mediumCount)
	selHard := clip(hard, hardCount)

	// Fill shortfalls in one tier from the leftovers of the others, keeping
	// each extra round in its own tier so the curve stays monotonic.
	remaining := count - len(selEasy) - len(selMedium) - len(selHard)
	if remaining > 0 {
		leftovers := append([]QuestionRound(nil), easy[len(selEasy):]...)
		leftovers = append(leftovers, medium[len(selMedium):]...)
		leftovers = append(leftovers, hard[len(selHard):]...)
		shuffle(leftovers, rnd)
		for _, q := range clip(leftovers, remaining) {
			switch q.Difficulty {
			case "easy":
				selEasy = append(selEasy, q)
			case "medium":
				selMedium = append(selMedium, q)
			default:
				selHard = append(selHard, q)
			}
		}
	}

	ordered := make([]QuestionRound, 0, len(selEasy)+len(selMedium)+len(selHard))
	ordered = append(ordered, selEasy...)
	ordered = append(ordered, selMedium...)
	ordered = append(ordered, selHard...)
	return ordered
}

func filterByCategory(pool []QuestionRound, categories []string) []QuestionRound {
	if len(categories) == 0 {
		return pool
	}
	wanted := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		wanted[c] = struct{}{}
	}
	out := make([]QuestionRound, 0, len(pool))
	for _, q := range pool {
		if _, ok := wanted[q.Category]; ok {
			out = append(out, q)
		}
	}
	return out
}

func filterByDifficulty(pool []QuestionRound, difficulty string) []QuestionRound {
	out := make([]QuestionRound, 0, len(pool))
	for _, q := range pool {
		if q.Difficulty == difficulty {
			out = append(out, q)
		}
	}
	return out
}

func shuffle(rounds []QuestionRound, rnd *rand.Rand) {
	rnd.Shuffle(len(rounds), func(i, j int) {
		rounds[i], rounds[j] = rounds[j], rounds[i]
	})
}

func clip(rounds []QuestionRound, count int) []QuestionRound {
	if len(rounds) > count {
		return rounds[:count]
	}
	return rounds
}
