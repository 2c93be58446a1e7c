//go:build !chunkdebug

// ABOUTME: Release build switch for chunk debugging
// ABOUTME: Payload poisoning is compiled out
package chunk

const debug = false

const poisonByte = 0
