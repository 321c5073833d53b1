// Package messenger implements the platform interfaces against the
// Messenger Platform Graph API. Incoming events arrive on a webhook HTTP
// server, replies go out through the Send API, and user profiles are read
// from the Graph API, all over plain net/http.
package messenger
