// Package link carries buffer contents across process boundaries.
//
// A Bridge pairs a transmit buffer, whose messages are forwarded as
// packets, with a receive buffer fed from inbound packets. The packet
// transport is any PacketReadWriter: a length-prefixed byte stream, a
// sequence-synchronized serial line, a websocket or MQTT topics.
package link
