// Package audio talks to the external text-to-speech service that
// synthesizes and stores lesson audio.
package audio
