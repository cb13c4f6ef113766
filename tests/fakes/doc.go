// Package fakes provides in-memory test doubles for the cloud SDK clients
// used by s3xfer.
//
// Fakes are manually implemented (not generated) to give precise control
// over test behavior. Each fake keeps its state in exported maps, accepts
// per-name error injection through Errors, and exposes XxxFunc hooks to
// override individual operations. All fakes are safe for concurrent use.
//
// Usage:
//
//	sm := fakes.NewFakeSecretsManagerClient()
//	sm.AddSecretString("app-token", `{"accessKeyId":"AKIA...","secretAccessKey":"..."}`)
//	store, _ := vault.NewSecretsManagerStore(nil, vault.Options{}, vault.WithSecretsManagerClient(sm))
package fakes
