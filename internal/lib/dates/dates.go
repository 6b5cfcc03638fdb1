// Package dates содержит календарную арифметику для границ абонементов.
//
// Прибавление месяцев и лет выполняется с прижатием к последнему дню
// месяца: 31 января + 1 месяц даёт последний день февраля, а не 2–3 марта,
// как у time.AddDate. Это закрывает известную ошибку «тихого переноса»
// при коротких целевых месяцах.
package dates

import "time"

// AddMonthsClamped прибавляет календарные месяцы с прижатием дня.
// Если в целевом месяце нет такого дня, берётся его последний день.
func AddMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := daysIn(target.Year(), target.Month())
	if d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, 0, 0, 0, 0, t.Location())
}

// AddYearsClamped прибавляет календарные годы с прижатием дня.
// 29 февраля + 1 год даёт 28 февраля невисокосного года.
func AddYearsClamped(t time.Time, years int) time.Time {
	return AddMonthsClamped(t, years*12)
}

// DateOnly обрезает время до полуночи в UTC. Все даты абонементов
// хранятся и сравниваются как календарные дни.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween возвращает количество полных дней от a до b (b − a).
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

func daysIn(year int, m time.Month) int {
	// Первый день следующего месяца минус один день.
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
