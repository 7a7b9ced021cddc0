package wire

import "fmt"

// Command is the one-byte tag identifying a packet's intent on the wire.
// The numeric assignments are part of the protocol and must not change.
type Command uint8

const (
	CommandEmpty           Command = 0 // sentinel, never transmitted
	CommandRequestToSend   Command = 1 // C->S: announce file, payload = 8-byte BE file size
	CommandRequestApproved Command = 2 // S->C: payload = (total packets || chunk size), 8+8 BE
	CommandRequestRejected Command = 3 // S->C: decline, empty payload
	CommandPackageAccepted Command = 5 // S->C: per-chunk ack, payload = 8-byte BE received count
	CommandAllDataSent     Command = 6 // C->S: transfer complete, empty payload
	CommandDataPackage     Command = 7 // C->S: chunk of file bytes
	CommandChecksumError   Command = 8 // either direction: last received packet failed integrity
	CommandAbort           Command = 244 // S->C: fatal, peer must disconnect
	CommandUnknown         Command = 255 // parse sentinel
)

var commandNames = map[Command]string{
	CommandEmpty:           "EMPTY",
	CommandRequestToSend:   "REQUEST_TO_SEND",
	CommandRequestApproved: "REQUEST_APPROVED",
	CommandRequestRejected: "REQUEST_REJECTED",
	CommandPackageAccepted: "PACKAGE_ACCEPTED",
	CommandAllDataSent:     "ALL_DATA_SENT",
	CommandDataPackage:     "DATA_PACKAGE",
	CommandChecksumError:   "CHECKSUM_ERROR",
	CommandAbort:           "ABORT",
	CommandUnknown:         "UNKNOWN",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", uint8(c))
}
