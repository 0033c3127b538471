// Package resp implements the RESP2/RESP3 wire protocol: a tagged value
// model, a resumable zero-copy parser, and a size-precomputing encoder.
//
// The parser accepts binary RESP frames as well as telnet-style inline
// commands, and can be fed partial reads; feeding fragments produces the
// same values as feeding their concatenation.
package resp
