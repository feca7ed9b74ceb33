// Package audio plays raw 16-bit little endian PCM clips through the system
// audio device with oto, one clip at a time.
package audio
