/*
Package conflict implements the move+move conflict rule: lock-serialized
acquisition, a CONFLICT_NOTIFY payload for the loser, and a
fire-and-forget audit record. The other two conflict shapes (move+edit,
reorder+insert) are resolved elsewhere by construction and need no
runtime coordination from this package.
*/
package conflict
