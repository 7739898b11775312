package recommendation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
)

func q(id string, typ quest.Type, desc string) quest.Quest {
	return quest.Quest{ID: id, Title: id, Description: desc, Type: typ, Points: 50, TotalAmountToComplete: 10}
}

func TestRecommend_LeastFrequentTypeWins(t *testing.T) {
	completed := []quest.Quest{
		q("R1", "recycling", "sort paper"),
		q("R2", "recycling", "crush cans"),
		q("C1", "composting", "feed worms"),
	}
	catalog := append([]quest.Quest{
		q("Q1", "composting", "turn the heap"),
		q("Q2", "recycling", "rinse jars"),
	}, completed...)

	got := Recommend(completed, catalog, 1)

	assert.Equal(t, []string{"Q1"}, quest.IDs(got))
}

func TestRecommend_TypeCandidatesThenWordCandidates(t *testing.T) {
	completed := []quest.Quest{
		q("A", "recycling", "collect plastic bottles"),
		q("B", "recycling", "collect plastic bags"),
		q("C", "energy", "switch off lights"),
	}
	catalog := append([]quest.Quest{
		q("E2", "energy", "unplug chargers"),
		q("E1", "energy", "use daylight"),
		q("R1", "recycling", "collect cardboard"),
		q("R2", "recycling", "reuse jars"),
		q("W1", "water", "plastic-free lunch"),
	}, completed...)

	got := Recommend(completed, catalog, 10)

	// energy is least frequent; "collect" and "plastic" repeat.
	assert.Equal(t, []string{"E1", "E2", "R1", "W1"}, quest.IDs(got))
}

func TestRecommend_TieBrokenAlphabetically(t *testing.T) {
	completed := []quest.Quest{
		q("W", "water", "save water"),
		q("C", "composting", "feed worms"),
	}
	catalog := append([]quest.Quest{
		q("W2", "water", "fix taps"),
		q("C2", "composting", "turn heap"),
	}, completed...)

	least, ok := LeastFrequentType(completed)
	assert.True(t, ok)
	assert.Equal(t, quest.Type("composting"), least)
	assert.Equal(t, []string{"C2"}, quest.IDs(Recommend(completed, catalog, 1)))
}

func TestRecommend_Deterministic(t *testing.T) {
	completed := []quest.Quest{
		q("A", "recycling", "collect plastic"),
		q("B", "composting", "collect leaves"),
	}
	catalog := append([]quest.Quest{
		q("Z", "recycling", "collect glass"),
		q("Y", "composting", "layer browns"),
		q("X", "energy", "collect receipts"),
	}, completed...)

	first := Recommend(completed, catalog, 3)
	for i := 0; i < 20; i++ {
		// reversed catalog must not change the answer
		rev := make([]quest.Quest, len(catalog))
		for j := range catalog {
			rev[len(catalog)-1-j] = catalog[j]
		}
		assert.Equal(t, first, Recommend(completed, rev, 3))
	}
	assert.Equal(t, []string{"Y", "X", "Z"}, quest.IDs(first))
}

func TestRecommend_CaseSensitiveWords(t *testing.T) {
	completed := []quest.Quest{
		q("A", "recycling", "Plastic run"),
		q("B", "recycling", "plastic run"),
	}
	catalog := append([]quest.Quest{
		q("X", "energy", "Plastic audit"),
		q("Y", "energy", "long run"),
	}, completed...)

	assert.Equal(t, []string{"run"}, SignificantWords(completed))
	// no uncompleted recycling quest; only "run" matches
	assert.Equal(t, []string{"Y"}, quest.IDs(Recommend(completed, catalog, 3)))
}

func TestRecommend_NormalizesUnicode(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"
	completed := []quest.Quest{
		q("A", "recycling", composed+" cups"),
		q("B", "recycling", decomposed+" lids"),
	}
	assert.Equal(t, []string{composed}, SignificantWords(completed))
}

func TestRecommend_ExhaustedCatalog(t *testing.T) {
	completed := []quest.Quest{q("A", "recycling", "x y")}

	assert.Empty(t, Recommend(completed, completed, 3))
	assert.Empty(t, Recommend(completed, nil, 3))
	assert.Empty(t, Recommend(nil, []quest.Quest{q("A", "recycling", "")}, 0))
}

func TestRecommend_ColdStartRoundRobin(t *testing.T) {
	catalog := []quest.Quest{
		q("R2", "recycling", ""),
		q("R1", "recycling", ""),
		q("C1", "composting", ""),
		q("E1", "energy", ""),
		q("E2", "energy", ""),
	}

	assert.Equal(t, []string{"C1", "E1", "R1"}, quest.IDs(Recommend(nil, catalog, 3)))
	assert.Equal(t, []string{"C1", "E1", "R1", "E2", "R2"}, quest.IDs(Recommend(nil, catalog, 10)))
}

func TestRecommend_DuplicateHistoryCountsOnce(t *testing.T) {
	completed := []quest.Quest{
		q("A", "recycling", "one"),
		q("A", "recycling", "one"),
		q("B", "composting", "two"),
		q("C", "composting", "three"),
	}
	least, _ := LeastFrequentType(distinct(completed))
	assert.Equal(t, quest.Type("recycling"), least)
	assert.Empty(t, SignificantWords(distinct(completed)))
}
