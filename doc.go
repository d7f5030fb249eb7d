// Package authstate keeps the authentication state of a back-office console
// consistent with a remote session provider and gates protected routes on it.
//
// Store:
//   - One Store is created at startup and injected into every consumer. It
//     holds a single AuthState cell {User, IsAuthenticated, Loading, Error}
//     that is replaced atomically; readers always get a copy.
//   - On construction the store subscribes to the provider change stream and
//     fetches the current session concurrently. Whichever settles first wins
//     the cycle; a late initial fetch never overwrites a change event.
//   - SignIn and SignOut raise Loading before calling the provider. On
//     success the change event settles the state; on failure the provider
//     message is mirrored into Error and returned as a go-errors rich error.
//
// Guard:
//   - Guard waits for the store to settle and then admits authenticated users
//     or redirects to the login path with the requested path as returnUrl.
//     Middleware adapts it to go-router.
//
// Providers:
//   - provider/gotrue talks to a GoTrue compatible identity service.
//   - provider/local authenticates against a bun user repository with bcrypt
//     hashes and HS256 tokens.
//
// Activity sinks:
//   - ActivitySink receives settlement, sign in and sign out events. Sinks
//     run best-effort (errors are logged) and never block state changes.
package authstate
