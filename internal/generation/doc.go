// Package generation defines the chat reply backend boundary and the
// local template implementation that doubles as the mandatory fallback.
package generation
