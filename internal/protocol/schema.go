package protocol

import (
	"github.com/invopop/jsonschema"
)

// Schemas describes the client and server message envelopes.
type Schemas struct {
	Client *jsonschema.Schema `json:"client"`
	Server *jsonschema.Schema `json:"server"`
}

func Schema() Schemas {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	client := reflector.Reflect(new(ClientMessage))
	client.Title = "Coin Chase client message"
	client.Description = "Messages sent by clients over /ws (subscribe, call, heartbeat)"

	server := reflector.Reflect(new(ServerMessage))
	server.Title = "Coin Chase server message"
	server.Description = "Messages sent by the server over /ws"
	return Schemas{Client: client, Server: server}
}
