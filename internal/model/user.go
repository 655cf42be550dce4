package model

// User is a registered account. PasswordHash holds the hex-encoded SHA-224
// of the plaintext password (or a bcrypt hash for upgraded accounts); the
// plaintext itself is never persisted.
type User struct {
	Id           int64
	Username     string
	PasswordHash string
}

// Credentials travel inside a framed request payload. The password is
// plaintext on the wire; the server hashes it before any comparison.
type Credentials struct {
	Username string
	Password string
}

// Request is one client message: a textual command with optional arguments,
// structured person payloads, and the caller's credentials.
type Request struct {
	Command     string
	Args        []string
	Persons     []Person
	Credentials Credentials
}

// Response is the server's answer. Script is non-empty only when a command
// wants the client to feed its contents back line by line.
type Response struct {
	Message string
	Persons []Person
	Script  string
}
