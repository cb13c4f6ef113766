// Package secretstore defines the contract between s3xfer and the systems
// that hold transfer credentials.
//
// A secret store is addressed by plain key names. Stores restrict the
// alphabet and length of those names, so implementations are expected to run
// every key through their sanitizer profile before talking to the backend;
// callers always pass the logical name.
//
// # Reading
//
// The read side is deliberately small so that the token resolver can work
// against any backend, including test doubles:
//
//	value, ok, err := store.ResolveSecret(ctx, "transfer-credentials")
//	switch {
//	case err != nil:
//	    // transport or permission problem; propagate
//	case !ok:
//	    // the store has no entry for this key
//	}
//
// A miss is reported through the boolean, never through an error. Errors are
// reserved for failures of the store itself.
//
// # Writing
//
// StoreSecret creates or overwrites a value; DeleteSecret removes it and
// treats a missing key as success. Both are used when temporary credentials
// are issued for a direct copy and revoked afterwards.
//
// # Errors
//
// Implementations return AuthError when the backend rejects the caller's
// identity and ValidationError for unusable configuration. Anything else is
// wrapped with the store name.
//
// # Security Considerations
//
// Implementations must never log secret values (use logging.Secret) and must
// honour context cancellation on network calls.
package secretstore
