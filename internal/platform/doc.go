// Package platform defines the chat platform surface the bot consumes:
// message events with attachments, user profiles, and the client interfaces
// for listening, sending replies, and fetching user info. Concrete adapters
// live in subpackages.
package platform
