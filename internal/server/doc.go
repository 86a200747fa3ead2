// Package server provides HTTP routing, middleware, and the catalog
// account-link callback handler.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Link Callback Handler
//
// [LinkHandler] implements the OAuth2 authorization code callback for linking
// a catalog account. It validates the state parameter (CSRF protection),
// exchanges the authorization code for tokens, and sends the result through
// a channel. It only processes one callback to prevent replay attacks.
//
// # Current Usage
//
// When the user runs `setshare link`, a temporary HTTP server starts on the
// configured host and port, handles the callback, and shuts down once the
// grant is captured and persisted as a [models.Credential].
package server
