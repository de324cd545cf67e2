// Package quota holds the pure decision logic for the free-request quota.
// It never touches storage: Evaluate inspects an account and the current
// time and reports which state transitions are due and whether a request
// may proceed. Callers apply the transitions through the user repository's
// conditional updates, which carry the same guards.
package quota

import (
	"time"

	"github.com/neirobot/bot-server-go/internal/model"
)

// Decision is the outcome of evaluating an account at a point in time.
type Decision struct {
	// ExpirePremium is true when premium_until has elapsed and the stored
	// flag must be corrected before anything else reads it.
	ExpirePremium bool
	// ResetUsage is true when a UTC calendar day has rolled over since the
	// last reset and the (non-premium) counter must be zeroed.
	ResetUsage bool
	// Allowed is the verdict for a quota-consuming request.
	Allowed bool
	// User is the account as it will look once due transitions are applied.
	User model.User
}

// Evaluate runs the policy: expire premium if due, apply the daily reset if
// due, then allow iff premium or under the free limit. It must run before
// every quota-consuming command and before status reporting so both always
// see current-day, current-premium truth.
func Evaluate(user model.User, now time.Time) Decision {
	d := Decision{User: user}

	if user.PremiumExpired(now) {
		d.ExpirePremium = true
		d.User.IsPremium = false
	}

	if !d.User.IsPremium && DayRolledOver(user.LastResetAt, now) {
		d.ResetUsage = true
		d.User.FreeRequestsUsed = 0
		d.User.LastResetAt = now
	}

	d.Allowed = d.User.IsPremium || d.User.FreeRequestsUsed < d.User.FreeRequestsLimit
	return d
}

// DayRolledOver reports whether now falls on a later UTC calendar day than
// lastReset. The fixed reference zone keeps the rollover identical across
// instances regardless of server locale.
func DayRolledOver(lastReset, now time.Time) bool {
	ly, lm, ld := lastReset.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	if ny != ly {
		return ny > ly
	}
	if nm != lm {
		return nm > lm
	}
	return nd > ld
}
