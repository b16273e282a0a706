// Package domain implements the encounter combat engine: the encounter
// aggregate, turn scheduling, the attack resolution pipeline, the intercede
// protocol, and the auxiliary actions layered on top of them.
//
// Every command reads the whole aggregate, validates, then computes the
// complete next state including battle log appends. Callers persist the
// result in a single write; a command that returns an error leaves nothing
// to persist.
package domain
