// Package speech turns a streamed text response into sentences for speech
// synthesis. Chunks are accumulated into a sentence buffer and every
// completed sentence is handed out as soon as its terminator arrives.
package speech
