// Package recommendation подбирает классу новые квесты.
//
// Алгоритм - чистая функция без скрытого состояния и случайности:
//
//  1. Берём квесты, которые класс уже завершал.
//  2. Находим наименее частую категорию среди них (ничья - по алфавиту).
//  3. Кандидаты 1: незавершённые квесты этой категории.
//  4. Значимые слова: слова описаний завершённых квестов, встречающиеся больше одного раза
//     (с учётом регистра, разбиение по пробельным символам).
//  5. Кандидаты 2: незавершённые квесты любой категории, в описании которых есть значимое слово.
//  6. Кандидаты 1, затем кандидаты 2, без дублей, не больше count.
//
// Разнообразие категорий идёт первым, тематическая преемственность - запасным вариантом.
package recommendation

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
)

// DefaultCount - сколько квестов рекомендуется по умолчанию.
const DefaultCount = 3

// Recommend возвращает до count квестов из catalog для класса с историей completed.
// Пустой результат допустим: каталог мог закончиться.
func Recommend(completed, catalog []quest.Quest, count int) []quest.Quest {
	if count <= 0 || len(catalog) == 0 {
		return []quest.Quest{}
	}

	history := distinct(completed)
	done := make(map[string]struct{}, len(history))
	for _, q := range history {
		done[q.ID] = struct{}{}
	}

	candidates := make([]quest.Quest, 0, len(catalog))
	for _, q := range distinct(catalog) {
		if _, ok := done[q.ID]; !ok {
			candidates = append(candidates, q)
		}
	}
	quest.SortByID(candidates)

	if len(history) == 0 {
		return coldStart(candidates, count)
	}

	least, _ := LeastFrequentType(history)
	byType := make([]quest.Quest, 0)
	for _, q := range candidates {
		if q.Type == least {
			byType = append(byType, q)
		}
	}

	words := SignificantWords(history)
	byWords := make([]quest.Quest, 0)
	if len(words) > 0 {
		for _, q := range candidates {
			if containsAny(normalize(q.Description), words) {
				byWords = append(byWords, q)
			}
		}
	}

	return merge(count, byType, byWords)
}

// LeastFrequentType возвращает категорию с наименьшим числом завершений.
// При равенстве выбирается меньшая по алфавиту. ok=false для пустой истории.
func LeastFrequentType(completed []quest.Quest) (quest.Type, bool) {
	freq := TypeFrequency(completed)
	if len(freq) == 0 {
		return "", false
	}

	types := make([]quest.Type, 0, len(freq))
	for t := range freq {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if freq[types[i]] != freq[types[j]] {
			return freq[types[i]] < freq[types[j]]
		}
		return types[i] < types[j]
	})
	return types[0], true
}

// TypeFrequency считает завершения по категориям.
func TypeFrequency(completed []quest.Quest) map[quest.Type]int {
	freq := make(map[quest.Type]int)
	for _, q := range completed {
		freq[q.Type]++
	}
	return freq
}

// SignificantWords возвращает слова, встречающиеся больше одного раза
// во всех описаниях вместе, по алфавиту.
func SignificantWords(completed []quest.Quest) []string {
	counts := make(map[string]int)
	for _, q := range completed {
		for _, w := range strings.Fields(normalize(q.Description)) {
			counts[w]++
		}
	}

	words := make([]string, 0)
	for w, n := range counts {
		if n > 1 {
			words = append(words, w)
		}
	}
	sort.Strings(words)
	return words
}

// coldStart раздаёт квесты по кругу между категориями:
// категории по алфавиту, внутри категории - по ID.
func coldStart(candidates []quest.Quest, count int) []quest.Quest {
	groups := make(map[quest.Type][]quest.Quest)
	types := make([]quest.Type, 0)
	for _, q := range candidates {
		if _, ok := groups[q.Type]; !ok {
			types = append(types, q.Type)
		}
		groups[q.Type] = append(groups[q.Type], q)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	out := make([]quest.Quest, 0, count)
	for round := 0; len(out) < count; round++ {
		picked := false
		for _, t := range types {
			if round < len(groups[t]) {
				out = append(out, groups[t][round])
				picked = true
				if len(out) == count {
					break
				}
			}
		}
		if !picked {
			break
		}
	}
	return out
}

func merge(count int, lists ...[]quest.Quest) []quest.Quest {
	seen := make(map[string]struct{})
	out := make([]quest.Quest, 0, count)
	for _, list := range lists {
		for _, q := range list {
			if len(out) == count {
				return out
			}
			if _, ok := seen[q.ID]; ok {
				continue
			}
			seen[q.ID] = struct{}{}
			out = append(out, q)
		}
	}
	return out
}

func distinct(quests []quest.Quest) []quest.Quest {
	seen := make(map[string]struct{}, len(quests))
	out := make([]quest.Quest, 0, len(quests))
	for _, q := range quests {
		if _, ok := seen[q.ID]; ok {
			continue
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
	}
	return out
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// normalize приводит текст к NFC, чтобы составные и разложенные символы
// считались одним словом. Регистр сохраняется.
func normalize(s string) string {
	return norm.NFC.String(s)
}
