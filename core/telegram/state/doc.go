// Package state provides the per-user conversation session store for Telegram bots.
// Sessions live in memory, expire after an idle timeout, and are isolated per user.
package state
