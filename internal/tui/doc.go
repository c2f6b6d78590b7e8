// Package tui is the interactive terminal dashboard built on bubbletea.
//
// The Model renders the dashboard Controller's visible panels as a grid
// and maps keys to panel intents. The controller's change and notification
// hooks are bridged into the program with Bind, so polling updates redraw
// the screen without the model holding any device state of its own.
//
// Keys:
//
//	j/k, arrows   move the selection
//	enter, space  toggle, press or set
//	+/-, h/l      step a value or cycle a selector
//	r / t         cycle the room / type filter
//	q             quit
package tui
