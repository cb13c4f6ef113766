// Package secure keeps raw secret payloads out of ordinary heap memory while
// they are being parsed.
//
// Payloads read from a secret store are sealed into a memguard enclave
// (encrypted with XSalsa20Poly1305, mlocked where the platform allows). The
// plaintext is only exposed inside Use, in a locked buffer that is wiped as
// soon as the callback returns:
//
//	buf := secure.SealString(raw)
//	defer buf.Destroy()
//
//	err := buf.Use(func(plain []byte) error {
//	    return json.Unmarshal(plain, &payload)
//	})
//
// Callers must not retain the slice passed to the callback.
package secure
