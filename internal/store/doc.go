// Package store archives completed (and failed) staged solves in SQLite.
//
// A run is the unit of storage: its metadata row plus the full Lagrangian
// trajectory, segment by segment and state by state, written in a single
// transaction. Trajectories round-trip losslessly, including the NaN time
// entries of nodes that carried no residence information (stored as NULL).
package store
