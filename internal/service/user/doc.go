// Package user implements user management for the engagement agent.
//
// Besides CRUD, it produces the enriched listing shown to operators: each
// user's segment is computed on the fly from live timestamps, never read
// from storage, together with their most recent message.
//
// Repository implementations live in repository/postgres/.
package user
