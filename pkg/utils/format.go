package utils

import (
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize formats a byte count with 1024-based units and at most two
// decimals, e.g. 1536 -> "1.5 KB". Zero is "0 Bytes".
func FormatFileSize(b int64) string {
	if b <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(b)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(b) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// HumanizeBytes formats a byte count for summaries, e.g. "1.5 MiB".
func HumanizeBytes(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.IBytes(uint64(b))
}

// FormatDate renders a timestamp in local time, year first.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006/1/2 15:04:05")
}

// Ago renders t relative to now, e.g. "3 days ago".
func Ago(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
