// Package tts reads response sentences aloud. A Controller queues
// utterances, synthesizes them with an Engine, caches the audio and plays it
// in submission order. Silent is used when no engine is configured.
package tts
