// Package panel implements the dashboard panels: one state machine per
// device that turns topic payloads into typed state and user intents into
// command payloads.
//
// # Variants
//
// The set of variants is closed and chosen by New from the descriptor's
// panel tag:
//
//   - BinaryControl: a boolean shown as a toggle, a momentary button or a
//     read-only indicator
//   - ValueControl: a number shown as a slider, a gated slider
//     (toggle-slider), a numeric input or an option selector
//   - ValueDisplay: read-only named readings
//   - IndicatorDisplay: a group of named booleans
//
// # Contract
//
// ReceiveUpdate is a pure state transition. Payloads that cannot be decoded
// leave the previous state in place and return ErrUnparseablePayload, which
// callers are expected to log and otherwise ignore.
//
// Render is a pure projection of state into a View and may be called at any
// time.
//
// IssueCommand publishes through the injected Publisher on the device's
// command topic. Slide intents only move local state; a command is sent
// when the value is committed with a Set intent. After a successful publish
// the panel applies the commanded state locally until the next update
// arrives.
//
// SetConnectivity only changes the online flag shown in the View.
//
// # Thread Safety
//
// All Panel methods are safe for concurrent use. The panel lock is not
// held while publishing.
package panel
