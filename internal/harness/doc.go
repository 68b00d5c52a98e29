// Package harness runs scripted draw scenarios against a real store and
// controller, producing a deterministic event trace for golden comparison.
//
// Scenarios are YAML files describing seed data and a sequence of draw and
// undo steps. The harness substitutes a deterministic selector (the first N
// eligible entries) and fixed IDs, so the trace and final state depend only
// on the scenario. It validates the draw lifecycle, persistence, and undo,
// not the shuffle itself; the shuffle has its own statistical tests.
package harness
