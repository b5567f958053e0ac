// Package flows contains pure-function orchestrators for the Engine
// operations: login, phone login, authenticate (with refresh guard), logout
// and the QR cross-device handshake.
//
// Each flow function (RunLogin, RunAuthenticate, RunQRConfirm, etc.) accepts a
// typed dependency struct of funcs and returns results without side effects
// beyond those dependencies. The Engine owns every resource; flows only
// sequence calls, metrics and audit events.
//
// This package must not import the root package (import cycle) and must not
// hold state between calls.
package flows
