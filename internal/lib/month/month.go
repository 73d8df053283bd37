// Package month реализует календарную арифметику по месяцам.
package month

import (
	"time"
)

// Add прибавляет к t n календарных месяцев, сохраняя время суток и локацию.
// Если в целевом месяце нет такого числа (31 января + 1 месяц),
// результат прижимается к последнему дню целевого месяца.
// time.AddDate в этом случае переносит остаток в следующий месяц, поэтому здесь не используется.
func Add(t time.Time, n int) time.Time {
	year, mon, day := t.Date()
	hour, minute, sec := t.Clock()

	total := int(mon) - 1 + n
	targetYear := year + floorDiv(total, 12)
	targetMonth := time.Month(floorMod(total, 12) + 1)

	if last := DaysIn(targetYear, targetMonth, t.Location()); day > last {
		day = last
	}
	return time.Date(targetYear, targetMonth, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// DaysIn возвращает количество дней в месяце.
func DaysIn(year int, m time.Month, loc *time.Location) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, loc).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
