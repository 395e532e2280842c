// Package synth defines the boundary to the external voice synthesis
// provider: text-to-speech and speech-to-speech voice conversion.
package synth
