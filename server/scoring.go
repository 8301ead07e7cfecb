package main

// Category identifies one of the 11 fixed Cacho scoring slots.
type Category string

const (
	CatOnes          Category = "ones"
	CatTwos          Category = "twos"
	CatThrees        Category = "threes"
	CatFours         Category = "fours"
	CatFives         Category = "fives"
	CatSixes         Category = "sixes"
	CatEscalera      Category = "escalera"
	CatFull          Category = "full"
	CatPoker         Category = "poker"
	CatGenerala      Category = "generala"
	CatGeneralaDoble Category = "generalaDoble"
)

// Categories in fixed order. The order matters: bots break score ties by
// picking the earliest category in this list.
var Categories = []Category{
	CatOnes, CatTwos, CatThrees, CatFours, CatFives, CatSixes,
	CatEscalera, CatFull, CatPoker, CatGenerala, CatGeneralaDoble,
}

// Fixed values for the combination categories.
const (
	scoreEscalera      = 20
	scoreFull          = 30
	scorePoker         = 40
	scoreGenerala      = 50
	scoreGeneralaDoble = 100
)

var numeralFaces = map[Category]int{
	CatOnes:   1,
	CatTwos:   2,
	CatThrees: 3,
	CatFours:  4,
	CatFives:  5,
	CatSixes:  6,
}

func validCategory(c Category) bool {
	for _, cat := range Categories {
		if cat == c {
			return true
		}
	}
	return false
}

// faceCounts returns occurrences per face, indexed 1..6.
func faceCounts(dice []int) [7]int {
	var counts [7]int
	for _, d := range dice {
		if d >= 1 && d <= 6 {
			counts[d]++
		}
	}
	return counts
}

// scoreCategory computes the value a 5-die hand is worth in the given
// category. Pure function, no side effects.
func scoreCategory(dice []int, category Category) int {
	counts := faceCounts(dice)

	if face, ok := numeralFaces[category]; ok {
		return counts[face] * face
	}

	switch category {
	case CatEscalera:
		// Five distinct faces, and the one missing face is 1 or 6, which
		// leaves exactly 1-5 or 2-6.
		for f := 1; f <= 6; f++ {
			if counts[f] > 1 {
				return 0
			}
		}
		if counts[1] == 0 || counts[6] == 0 {
			return scoreEscalera
		}
		return 0

	case CatFull:
		hasThree, hasPair := false, false
		for f := 1; f <= 6; f++ {
			if counts[f] == 3 {
				hasThree = true
			}
			if counts[f] == 2 {
				hasPair = true
			}
		}
		if hasThree && hasPair {
			return scoreFull
		}
		return 0

	case CatPoker:
		for f := 1; f <= 6; f++ {
			if counts[f] >= 4 {
				return scorePoker
			}
		}
		return 0

	case CatGenerala:
		for f := 1; f <= 6; f++ {
			if counts[f] == 5 {
				return scoreGenerala
			}
		}
		return 0

	case CatGeneralaDoble:
		// Pays for any five-of-a-kind hand; there is no check that a
		// generala was recorded first.
		for f := 1; f <= 6; f++ {
			if counts[f] == 5 {
				return scoreGeneralaDoble
			}
		}
		return 0
	}

	return 0
}

// totalScore sums every filled scorecard entry.
func totalScore(scorecard map[Category]int) int {
	sum := 0
	for _, v := range scorecard {
		sum += v
	}
	return sum
}
