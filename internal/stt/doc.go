// Package stt captures a spoken prompt as text. Recognizers return every
// candidate transcription they have; callers use the first one.
package stt
