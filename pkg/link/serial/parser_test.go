package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(p *Parser, in ...byte) (results []Result) {
	for _, b := range in {
		results = append(results, p.Parse(b))
	}
	return
}

func TestParserSyncAndReceive(t *testing.T) {
	var p Parser
	assert.Equal(t, StatusSyncing, p.Status())
	assert.Equal(t, Result{Sync: syncREQ, Status: StatusSyncing}, p.Reset())

	results := feed(&p, syncREQ, 5)
	assert.Equal(t, StatusSyncing|StatusReceiving, results[0].Status)
	assert.Equal(t, Result{Sync: syncACK, Status: StatusReady}, results[1])

	results = feed(&p, 5, 0x23, 'h', 'i')
	for _, r := range results[:3] {
		assert.Equal(t, Result{Status: StatusReady | StatusReceiving}, r)
	}
	assert.Equal(t, Result{Status: StatusReady, Frame: &Frame{Seq: 5, Kind: 3, Data: []byte("hi")}}, results[3])

	data := []byte("long payload")
	results = feed(&p, append([]byte{6, 0x70, byte(len(data))}, data...)...)
	last := results[len(results)-1]
	require.NotNil(t, last.Frame)
	assert.Equal(t, Seq(6), last.Frame.Seq)
	assert.Equal(t, data, last.Frame.Data)

	results = feed(&p, 7, 0x70, 0)
	assert.Equal(t, &Frame{Seq: 7}, results[2].Frame)
	results = feed(&p, 8, 0x00)
	assert.Equal(t, &Frame{Seq: 8}, results[1].Frame)
}

func TestParserAckFromPeer(t *testing.T) {
	var p Parser
	p.Reset()
	results := feed(&p, syncACK, 9)
	assert.Equal(t, Result{Status: StatusReady}, results[1])

	// an ACK carrying the expected sequence keeps the sync
	results = feed(&p, syncACK, 9)
	assert.Equal(t, Result{Status: StatusReady}, results[1])
	// a stale one doesn't
	results = feed(&p, syncACK, 8)
	assert.Equal(t, Result{Sync: syncREQ, Status: StatusSyncing}, results[1])
}

func TestParserResync(t *testing.T) {
	testCases := []struct {
		name string
		in   []byte
	}{
		{name: "invalid request seq", in: []byte{syncREQ, 0}},
		{name: "invalid ack seq", in: []byte{syncACK, 0xf5}},
		{name: "unexpected seq", in: []byte{syncREQ, 5, 6}},
		{name: "length too large", in: []byte{syncREQ, 5, 5, 0x70, 0x80}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var p Parser
			p.Reset()
			results := feed(&p, tc.in...)
			assert.Equal(t, Result{Sync: syncREQ, Status: StatusSyncing}, results[len(results)-1])
		})
	}
}

func TestParserIgnoresNoiseWhileSyncing(t *testing.T) {
	var p Parser
	for _, r := range feed(&p, 1, 2, 0x70) {
		assert.Equal(t, Result{Status: StatusSyncing}, r)
	}
}

func TestParserTimeout(t *testing.T) {
	var p Parser
	assert.Equal(t, Result{Sync: syncREQ, Status: StatusSyncing}, p.Timeout())

	feed(&p, syncREQ, 5)
	assert.Equal(t, Result{Status: StatusReady}, p.Timeout())

	feed(&p, 5, 0x30, 'a')
	assert.Equal(t, StatusReady|StatusReceiving, p.Status())
	assert.Equal(t, Result{Sync: syncREQ, Status: StatusSyncing}, p.Timeout())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "syncing", StatusSyncing.String())
	assert.Equal(t, "ready", StatusReady.String())
	assert.Equal(t, "receiving", (StatusReady | StatusReceiving).String())
	assert.Equal(t, "syncing+", (StatusSyncing | StatusReceiving).String())
}
