// Package link carries API frames between an application processor and
// the node over a byte stream (e.g. serial port).
package link

// Every frame is a 3 byte header {function, frame id, payload length}
// followed by the payload. On the wire the frame and its CRC-16 trailer
// (LSB first) are SLIP encoded between END bytes, so a receiver
// resynchronises on the next END after any error.
//
// Requests carry a function code below 0x80; the confirmation uses the
// same code with 0x80 set and echoes the frame id. Frames sent by the
// node on its own (indications) have 0x80 set and a frame id unknown to
// the requester.
