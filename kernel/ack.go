package kernel

import (
	"encoding/json"

	errorsmod "cosmossdk.io/errors"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
)

// StdAck is the JSON acknowledgement format shared by ICS20 and the kernel channel.
type StdAck struct {
	Result []byte `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (a StdAck) Success() bool {
	return a.Error == "" && len(a.Result) > 0
}

func ParseAck(bz []byte) (StdAck, error) {
	var ack StdAck
	if err := json.Unmarshal(bz, &ack); err != nil {
		return StdAck{}, errorsmod.Wrapf(ErrInvalidPacket, "invalid acknowledgement: %v", err)
	}
	return ack, nil
}

func AckSuccess() []byte {
	return channeltypes.NewResultAcknowledgement([]byte{1}).Acknowledgement()
}

// AckFail encodes err the way ibc-go does, keeping only its code on the wire.
func AckFail(err error) []byte {
	return channeltypes.NewErrorAcknowledgement(err).Acknowledgement()
}
