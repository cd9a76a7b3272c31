package logging

// DebugEnable is a string passed in by the compiler to control the build's
// inclusion of Debuggable sections.
var DebugEnable string

// Debuggable means that the build should include any debugging logic in it,
// such as dumping request and response bodies exchanged with the service.
var Debuggable = DebugEnable != ""
