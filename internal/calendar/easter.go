package calendar

import "time"

// EasterSunday computes Easter Sunday for a Gregorian year using the
// anonymous Gregorian computus (Golden Number, century, epact and the two
// lunar/solar corrections).
func EasterSunday(year int) time.Time {
	golden := year % 19
	century := year / 100
	remainder := year % 100
	centuryDiv4 := century / 4
	centuryMod4 := century % 4
	properCorrection := (century + 8) / 25
	lunarCorrection := (century - properCorrection + 1) / 3
	epact := (19*golden + century - centuryDiv4 - lunarCorrection + 15) % 30
	quarter := remainder / 4
	remainderMod4 := remainder % 4
	weekday := (32 + 2*centuryMod4 + 2*quarter - epact - remainderMod4) % 7
	adjustment := (golden + 11*epact + 22*weekday) / 451
	month := (epact + weekday - 7*adjustment + 114) / 31
	day := (epact+weekday-7*adjustment+114)%31 + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
