// Package assistant drives a spoken question and answer: it sends the
// prompt, shows the response as it streams in and speaks every completed
// sentence.
package assistant
