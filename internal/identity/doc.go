// Package identity caches user profiles fetched from the chat platform.
// Entries expire after a TTL and are refreshed on the next lookup; stale
// entries are never actively purged.
package identity
