// Package engines implements tts.Engine on top of external synthesizers:
// Piper (offline) and gTTS (online, converted to PCM with ffmpeg).
package engines
