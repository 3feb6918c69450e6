// Package stats defines the buffer statistics message published by nodes.
package stats

import (
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/streambuf/pkg/streambuf"
)

// Stats is a snapshot of one buffer on a node.
type Stats struct {
	Node             string `protobuf:"bytes,1,opt,name=node,proto3" json:"node,omitempty"`
	Name             string `protobuf:"bytes,2,opt,name=name,proto3" json:"name,omitempty"`
	Number           uint32 `protobuf:"varint,3,opt,name=number,proto3" json:"number,omitempty"`
	Mode             string `protobuf:"bytes,4,opt,name=mode,proto3" json:"mode,omitempty"`
	Capacity         uint32 `protobuf:"varint,5,opt,name=capacity,proto3" json:"capacity,omitempty"`
	TriggerLevel     uint32 `protobuf:"varint,6,opt,name=trigger_level,json=triggerLevel,proto3" json:"trigger_level,omitempty"`
	Used             uint32 `protobuf:"varint,7,opt,name=used,proto3" json:"used,omitempty"`
	Free             uint32 `protobuf:"varint,8,opt,name=free,proto3" json:"free,omitempty"`
	WaitingToSend    string `protobuf:"bytes,9,opt,name=waiting_to_send,json=waitingToSend,proto3" json:"waiting_to_send,omitempty"`
	WaitingToReceive string `protobuf:"bytes,10,opt,name=waiting_to_receive,json=waitingToReceive,proto3" json:"waiting_to_receive,omitempty"`
	HeapFree         uint64 `protobuf:"varint,11,opt,name=heap_free,json=heapFree,proto3" json:"heap_free,omitempty"`
	TxPackets        uint64 `protobuf:"varint,12,opt,name=tx_packets,json=txPackets,proto3" json:"tx_packets,omitempty"`
	RxPackets        uint64 `protobuf:"varint,13,opt,name=rx_packets,json=rxPackets,proto3" json:"rx_packets,omitempty"`
	RxDropped        uint64 `protobuf:"varint,14,opt,name=rx_dropped,json=rxDropped,proto3" json:"rx_dropped,omitempty"`
	Timestamp        int64  `protobuf:"varint,15,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Stats) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Stats) Reset() { *m = Stats{} }

// String implements proto.Message.
func (m *Stats) String() string { return proto.CompactTextString(m) }

// FromState creates Stats from a buffer snapshot.
func FromState(node, name string, s streambuf.State) *Stats {
	return &Stats{
		Node:             node,
		Name:             name,
		Number:           s.Number,
		Mode:             s.Mode.String(),
		Capacity:         uint32(s.Capacity),
		TriggerLevel:     uint32(s.TriggerLevel),
		Used:             uint32(s.Used),
		Free:             uint32(s.Free),
		WaitingToSend:    s.WaitingToSend,
		WaitingToReceive: s.WaitingToReceive,
		Timestamp:        time.Now().UnixNano(),
	}
}

// Time returns Timestamp as time.Time.
func (m *Stats) Time() time.Time {
	return time.Unix(0, m.Timestamp)
}

// Encode marshals the message.
func (m *Stats) Encode() ([]byte, error) {
	return proto.Marshal(m)
}

// Decode unmarshals a Stats message.
func Decode(data []byte) (*Stats, error) {
	m := &Stats{}
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}
