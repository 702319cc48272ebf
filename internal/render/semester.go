package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SemesterFormat selects how the current semester is written.
type SemesterFormat string

// Semester formats.
const (
	SemesterYearSeason SemesterFormat = "year_season" // 2025 Fall
	SemesterSeasonYear SemesterFormat = "season_year" // Fall 2025
	SemesterShort      SemesterFormat = "short"       // F25
	SemesterCustom     SemesterFormat = "custom"      // {year} {season} {s} {yy}
)

// Semester formats the semester containing t. January through June is spring.
// custom is only read for SemesterCustom.
func Semester(t time.Time, format SemesterFormat, custom string) string {
	year := t.Year()
	season, s := "Fall", "F"
	if t.Month() <= time.June {
		season, s = "Spring", "S"
	}
	yy := fmt.Sprintf("%02d", year%100)

	switch format {
	case SemesterSeasonYear:
		return season + " " + strconv.Itoa(year)
	case SemesterShort:
		return s + yy
	case SemesterCustom:
		return strings.NewReplacer(
			"{year}", strconv.Itoa(year),
			"{season}", season,
			"{s}", s,
			"{yy}", yy,
		).Replace(custom)
	default:
		return strconv.Itoa(year) + " " + season
	}
}
