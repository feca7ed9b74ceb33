// Package api is the client for the prompt API: a single POST carrying the
// prompt whose plain text answer is streamed back in chunks.
package api
