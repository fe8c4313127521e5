// Package localserver serves the management API on a Unix domain socket.
//
// The socket listener carries no token authentication; the socket file
// is created with owner-only permissions, so local filesystem access is
// the credential. It is intended for on-box tooling and operators with
// shell access to the tower host.
package localserver
