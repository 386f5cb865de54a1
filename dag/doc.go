// Package dag validates dependency graphs and executes them level by level.
//
// Levels come from Kahn's algorithm: level 0 holds nodes without
// dependencies, level i+1 holds nodes whose last dependency sits in level i.
// Engine runs the nodes of a level concurrently and waits for all of them
// before moving on. A failed node halts the run after its level drains;
// work already started is never revoked.
package dag
