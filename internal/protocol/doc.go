// Package protocol owns the TCP wire contract for the directory.
//
// Ownership boundary:
// - frame/header primitives (frame)
// - tlv payload primitives (tlv)
// - command and chunk messages built from both
//
// A client sends one MessageCommand frame per command. The server answers
// with MessageChunk frames carrying the response and ends every response
// with a single empty chunk marked final.
package protocol
