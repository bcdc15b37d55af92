// Package signing provides the key material and signature primitives workers
// use to prove authorship of a submission.
//
// Keys are RSA-2048. Public keys travel as PEM-encoded SPKI blocks; private
// keys never leave the process that generated them. Signatures are PKCS#1
// v1.5 over the SHA-256 digest of the message bytes, hex encoded for
// transport.
//
// Verify never returns an error. A malformed key or signature simply fails
// verification, which is how the coordinator treats an unparseable key
// stored at registration.
package signing
