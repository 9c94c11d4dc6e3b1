package server

import "github.com/ripplekv/ripplekv/pkg/resp"

func encodeUnknownCommand(verb string) []byte {
	return resp.Encode(resp.NewError("ERR unknown command '" + verb + "'"))
}

func encodeInternalError(detail string) []byte {
	return resp.Encode(resp.NewError("ERR internal error: " + detail))
}

func encodeProtocolError(detail string) []byte {
	return resp.Encode(resp.NewError("ERR protocol error: " + detail))
}
