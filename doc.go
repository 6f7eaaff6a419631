// Package tours is the backend of a tour booking site: accounts with JWT
// sessions, tours and reviews served through generic resource handlers,
// and an error boundary that answers differently in development and
// production.
//
// Sessions:
//   - Login and signup return a signed token in the body and in an HTTP
//     only cookie. Protect accepts either, OptionalIdentity reads only the
//     cookie and never fails the request.
//   - A token stops working once the password changes after it was
//     issued. RestrictTo checks the role of the resolved user.
//
// Password reset:
//   - ResetTokens stores the SHA-256 of a random token with a ten minute
//     expiry. The plaintext only travels by email and works once.
//
// Errors:
//   - NewAppError builds operational errors. The handler installed by
//     NewErrorHandler maps cast, duplicate, validation and token failures
//     to client safe messages in production and hides everything else
//     behind a generic 500.
//
// Activity sinks:
//   - ActivitySink receives signup, login, password and access events.
//     Sinks run best effort, failures are logged and never block a request.
package tours
