// Package rules holds the static tabletop ruleset: tag parsing, effect
// alignments, stance modifiers, stage tables, special orders, and derived
// stat math. Everything here is a pure lookup or computation with no state.
package rules
