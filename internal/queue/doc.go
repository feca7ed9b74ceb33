// Package queue holds utterances waiting to be spoken. Utterances leave the
// queue in the order they were added; a flush drops everything still
// waiting.
package queue
