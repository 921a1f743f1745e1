package node

import (
	"fmt"
	"io"
	"net/url"

	"github.com/robotalks/meshota/pkg/mesh"
	"github.com/robotalks/meshota/pkg/mesh/mqtt"
	"github.com/robotalks/meshota/pkg/mesh/stream"
	"github.com/robotalks/meshota/pkg/mesh/websocket"
)

// DialMesh connects the node at local to the mesh at rawURL. The
// returned closer releases the connection.
func DialMesh(rawURL string, local mesh.Address) (mesh.PacketReadWriter, io.Closer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid mesh URL: %v", err)
	}
	switch u.Scheme {
	case "tcp":
		rw, err := stream.Dial(u.Host)
		if err != nil {
			return nil, nil, err
		}
		return rw, rw, nil
	case "ws", "wss":
		rw, err := websocket.Dial(rawURL)
		if err != nil {
			return nil, nil, err
		}
		return rw, rw, nil
	case "mqtt":
		q, err := mqtt.NewQueueFromURL(rawURL)
		if err != nil {
			return nil, nil, err
		}
		if token := q.Connect(); token.Wait() && token.Error() != nil {
			return nil, nil, fmt.Errorf("connect %s: %v", u.Host, token.Error())
		}
		return mqtt.NewPacketReadWriter(q, uint32(local)), q, nil
	default:
		return nil, nil, fmt.Errorf("unknown mesh URL scheme: %q", u.Scheme)
	}
}
