package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Context buckets condition value estimates on when the decision happens.
// Coarse on purpose: every bucket has to accumulate enough observations to
// mean something.
const (
	daypartNight     = "night"
	daypartMorning   = "morning"
	daypartAfternoon = "afternoon"
	daypartEvening   = "evening"
)

// ContextBucket buckets a decision time, e.g. "evening_weekend".
func ContextBucket(at time.Time) string {
	utc := at.UTC()
	var daypart string
	switch h := utc.Hour(); {
	case h < 6:
		daypart = daypartNight
	case h < 12:
		daypart = daypartMorning
	case h < 18:
		daypart = daypartAfternoon
	default:
		daypart = daypartEvening
	}
	weekpart := "weekday"
	if wd := utc.Weekday(); wd == time.Saturday || wd == time.Sunday {
		weekpart = "weekend"
	}
	return daypart + "_" + weekpart
}

// ContextBuckets enumerates every bucket ContextBucket can produce, in a
// stable order. Seeding walks this list so a cold user carries priors for
// whichever context their first decisions land in.
func ContextBuckets() []string {
	out := make([]string, 0, 8)
	for _, daypart := range []string{daypartNight, daypartMorning, daypartAfternoon, daypartEvening} {
		for _, weekpart := range []string{"weekday", "weekend"} {
			out = append(out, daypart+"_"+weekpart)
		}
	}
	return out
}

// ArmKey is the estimate key for (archetype bucket, context bucket, action).
func ArmKey(archetypeBucket, contextBucket string, actionID uuid.UUID) string {
	if archetypeBucket == "" {
		archetypeBucket = NeutralBucket
	}
	return fmt.Sprintf("%s|%s|%s", archetypeBucket, contextBucket, actionID)
}

// ParseArmKey splits an estimate key back into its parts. Reports false for
// anything ArmKey did not produce.
func ParseArmKey(key string) (archetypeBucket, contextBucket string, actionID uuid.UUID, ok bool) {
	parts := strings.SplitN(key, "|", 3)
	if len(parts) != 3 {
		return "", "", uuid.Nil, false
	}
	id, err := uuid.Parse(parts[2])
	if err != nil || parts[0] == "" || parts[1] == "" {
		return "", "", uuid.Nil, false
	}
	return parts[0], parts[1], id, true
}
