// Package utility builds reminder and broadcast payloads.
//
// Reminders go to a single user and respect opt-out and per-type cooldowns.
// Broadcasts render once and fan out to every user who has not opted out of
// broadcasts. Neither path sends anything; payloads are returned to the
// caller for dispatch.
package utility
