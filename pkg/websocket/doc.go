// Package websocket is a client implementation of the WebSocket protocol
// (RFC 6455), including the permessage-deflate extension (RFC 7692) with
// a hand-written DEFLATE (RFC 1951) inflater — this package never shells
// out to a general-purpose compression library for decompression, since
// RFC 7692 requires interpreting the raw DEFLATE bitstream structure
// directly (to locate block boundaries and rewrite the BFINAL bit; see
// blockwalker.go).
//
// A ConnectionManager drives one connection's lifecycle: the opening
// handshake, a ReaderTask and WriterTask running concurrently, and the
// state machine that coordinates the closing handshake between them. See
// connection.go, reader.go, and writer.go.
//
// Compression on the outbound side is delegated to
// github.com/klauspost/compress/flate (see deflate.go); the compressor's
// output is then walked with the block walker to clear BFINAL and strip or
// append the empty-block terminator (see permessagedeflate.go).
// Decompression uses the hand-written inflater (inflate.go).
package websocket
