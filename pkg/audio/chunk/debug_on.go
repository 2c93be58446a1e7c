//go:build chunkdebug

// ABOUTME: Debug build switch for chunk debugging
// ABOUTME: Freed chunks get their payload poisoned to catch use-after-return
package chunk

const debug = true

const poisonByte = 0x7e
