// Package transcription defines the provider interface and common types for
// interacting with remote speech-to-text engines.
package transcription
