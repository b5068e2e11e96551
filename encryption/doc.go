// Package encryption seals small secrets, such as stored OAuth tokens, with
// XChaCha20-Poly1305.
//
//	s, err := encryption.NewSealer(os.Getenv("OIDCRP_TOKEN_KEY"))
//	box, err := s.Seal(plaintext, []byte(ref))
//	plaintext, err := s.Open(box, []byte(ref))
//
// The associated data binds a ciphertext to its owner: a box sealed for one
// account does not open for another.
package encryption
