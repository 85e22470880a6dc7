// Package engagement decides which users receive an automated engagement
// message and runs the engagement cycle.
//
// A user is eligible when they have been inactive longer than the inactivity
// threshold and have not been messaged inside the frequency window. Eligible
// users are segmented and mapped to a tone. Nothing here imports net/http or
// database/sql; message history comes through the interfaces in
// repository.go.
package engagement
